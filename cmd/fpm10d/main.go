// Command fpm10d opens an FPM10-family fingerprint sensor, performs
// the session handshake, and drives its workflow engine from commands
// queued on a Redis list, publishing lifecycle events on a Redis channel.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/librescoot/fpm10-driver/pkg/fpm10"
	"github.com/librescoot/fpm10-driver/pkg/notify"
	"github.com/librescoot/fpm10-driver/pkg/workflow"
)

var (
	serialDevice = flag.String("serial", "/dev/ttymxc2", "Serial device path")
	baudRate     = flag.Int("baud", 57600, "Serial baud rate")
	password     = flag.Uint("password", 0, "Sensor handshake password")
	timeoutMS    = flag.Int("timeout-ms", 2000, "Default per-command timeout in milliseconds")
	redisAddr    = flag.String("redis-addr", "localhost:6379", "Redis server address")
	redisPass    = flag.String("redis-pass", "", "Redis password")
	redisDB      = flag.Int("redis-db", 0, "Redis database number")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("starting fpm10d")
	log.Printf("serial device: %s, baud: %d", *serialDevice, *baudRate)
	log.Printf("redis address: %s", *redisAddr)

	port, err := serial.Open(*serialDevice, &serial.Mode{BaudRate: *baudRate})
	if err != nil {
		log.Fatalf("failed to open serial device: %v", err)
	}
	defer port.Close()

	cfg := fpm10.DefaultConfig()
	cfg.Baud = *baudRate
	cfg.DefaultTimeoutMS = *timeoutMS
	cfg.Password = uint32(*password)

	sess, err := fpm10.Open(port, cfg)
	if err != nil {
		log.Fatalf("failed to open sensor session: %v", err)
	}
	defer sess.Close()
	log.Printf("sensor handshake complete: capacity=%d data_package_length=%d",
		sess.Params.Capacity, sess.Params.DataPackageLength)

	engine := workflow.NewEngine(sess.Sensor, sess.Params.Capacity, sess.Params.DataPackageLength, workflow.DefaultConfig())

	redisClient, err := notify.New(*redisAddr, *redisPass, *redisDB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Printf("connected to redis")

	watcher := notify.NewWatcher(redisClient, engine)
	stop := make(chan struct{})
	go watcher.Run(stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	close(stop)
	log.Printf("shutting down")
	time.Sleep(100 * time.Millisecond)
}
