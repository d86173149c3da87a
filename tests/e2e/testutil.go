//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"sync"

	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/gateway"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Package-level shared state, set by TestMain.
var (
	testLogger   *zap.Logger
	testPGDSN    string
	testRedisURL string
)

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("birdzoo_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return dsn, cleanup, nil
}

// startRedis starts a Redis testcontainer, returns URL + cleanup func.
func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	url := "redis://" + endpoint
	cleanup := func() { container.Terminate(ctx) }
	return url, cleanup, nil
}

// CaptureAdapter is a test gateway adapter that records replies and
// narration.
type CaptureAdapter struct {
	mu        sync.Mutex
	sent      []*gateway.OutboundMessage
	published []zoo.Event
	handler   gateway.MessageHandler
}

func (c *CaptureAdapter) Platform() string                       { return "test" }
func (c *CaptureAdapter) Connect(ctx context.Context) error      { return nil }
func (c *CaptureAdapter) OnMessage(h gateway.MessageHandler)     { c.handler = h }
func (c *CaptureAdapter) Close() error                           { return nil }
func (c *CaptureAdapter) Status() gateway.AdapterStatus {
	return gateway.AdapterStatus{Platform: "test", Connected: true}
}

func (c *CaptureAdapter) Send(ctx context.Context, msg *gateway.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *CaptureAdapter) Publish(ctx context.Context, guildID string, ev zoo.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, ev)
	return nil
}

// Inject simulates an inbound message from a user.
func (c *CaptureAdapter) Inject(msg *gateway.InboundMessage) {
	msg.Platform = "test"
	if c.handler != nil {
		c.handler(msg)
	}
}

// Sent returns a copy of all captured replies.
func (c *CaptureAdapter) Sent() []*gateway.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]*gateway.OutboundMessage, len(c.sent))
	copy(cp, c.sent)
	return cp
}

// Published returns a copy of all captured narration.
func (c *CaptureAdapter) Published() []zoo.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]zoo.Event(nil), c.published...)
}

// Reset clears captured messages.
func (c *CaptureAdapter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
	c.published = nil
}
