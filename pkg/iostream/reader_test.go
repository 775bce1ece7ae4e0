package iostream

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// delayedPipeReader trickles bytes out one at a time on a timer, so
// ReadN has to wait across several poll intervals to assemble a run.
type delayedPipeReader struct {
	data  []byte
	pos   int
	delay time.Duration
}

func (d *delayedPipeReader) Read(p []byte) (int, error) {
	if d.pos >= len(d.data) {
		return 0, io.EOF
	}
	time.Sleep(d.delay)
	p[0] = d.data[d.pos]
	d.pos++
	return 1, nil
}

func TestReadNAssemblesTrickledBytes(t *testing.T) {
	src := &delayedPipeReader{data: []byte{0x01, 0x02, 0x03, 0x04}, delay: 2 * time.Millisecond}
	r := New(src, 9600)
	defer r.Close()

	got, err := r.ReadN(4, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, got)
}

func TestReadNTimesOutWhenStarved(t *testing.T) {
	src := &delayedPipeReader{data: nil}
	r := New(src, 9600)
	defer r.Close()

	_, err := r.ReadN(1, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestReadByteSingle(t *testing.T) {
	src := &delayedPipeReader{data: []byte{0xEF}, delay: time.Millisecond}
	r := New(src, 57600)
	defer r.Close()

	b, err := r.ReadByte(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(0xEF), b)
}

func TestBufferGrowsPastInitialCapacity(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	src := &delayedPipeReader{data: data, delay: 0}
	r := New(src, 115200)
	defer r.Close()

	got, err := r.ReadN(1000, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCloseUnblocksReadN(t *testing.T) {
	src := &delayedPipeReader{data: nil}
	r := New(src, 9600)

	done := make(chan error, 1)
	go func() {
		_, err := r.ReadN(1, 5*time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("ReadN did not unblock after Close")
	}
}

func TestPollIntervalFloor(t *testing.T) {
	assert.Equal(t, minPollInterval, pollInterval(0))
	assert.Equal(t, minPollInterval, pollInterval(-1))
	assert.True(t, pollInterval(9600) >= minPollInterval)
}
