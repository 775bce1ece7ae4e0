package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client publishes workflow lifecycle events over Redis and watches a
// Redis list for commands driving the workflow engine, so a
// fingerprint workflow can be triggered and observed by other
// processes on the scooter without a direct API call. It wraps the
// subset of Redis operations the fingerprint daemon needs: publishing
// on a status channel, and LPUSH/BRPOP on the command list.
type Client struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to addr and verifies it with a ping.
func New(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Client{client: client, ctx: ctx}, nil
}

// Publish sends a message on channel.
func (c *Client) Publish(channel string, message []byte) error {
	return c.client.Publish(c.ctx, channel, message).Err()
}

// BRPop blocks up to timeout (0 meaning indefinitely) waiting for a
// value on key, returning [key, value] or nil on timeout.
func (c *Client) BRPop(timeout time.Duration, key string) ([]string, error) {
	result, err := c.client.BRPop(c.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("brpop %s: %w", key, err)
	}
	return result, nil
}

// LPush pushes value onto the head of the list at key.
func (c *Client) LPush(key string, value []byte) error {
	return c.client.LPush(c.ctx, key, value).Err()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
