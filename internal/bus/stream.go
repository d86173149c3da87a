// Package bus publishes zoo narration onto Redis Streams so other services
// can follow a guild's zoo without talking to a chat platform.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/zoo"
)

const streamPrefix = "birdzoo:guild:"

// StreamKey is the Redis stream that carries a guild's events.
func StreamKey(guildID string) string { return streamPrefix + guildID }

// Dial parses a redis:// URL and verifies the server answers.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// StreamSink appends every event to the guild's stream.
type StreamSink struct {
	rdb    *redis.Client
	maxLen int64
	logger *zap.Logger
}

// NewStreamSink creates a sink. maxLen caps each stream approximately;
// zero keeps 1000 entries.
func NewStreamSink(rdb *redis.Client, maxLen int64, logger *zap.Logger) *StreamSink {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &StreamSink{rdb: rdb, maxLen: maxLen, logger: logger}
}

// Publish implements gateway.Sink.
func (s *StreamSink) Publish(ctx context.Context, guildID string, ev zoo.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	stream := StreamKey(guildID)
	_, err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": ev.Type,
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	s.logger.Debug("published event",
		zap.String("guild", guildID),
		zap.String("type", ev.Type))
	return nil
}

// Recent returns up to n of the newest events in a guild's stream, newest first.
func (s *StreamSink) Recent(ctx context.Context, guildID string, n int64) ([]zoo.Event, error) {
	msgs, err := s.rdb.XRevRangeN(ctx, StreamKey(guildID), "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", StreamKey(guildID), err)
	}
	out := make([]zoo.Event, 0, len(msgs))
	for _, m := range msgs {
		if ev, ok := decodeEntry(m.Values); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Subscribe follows a guild's stream from now on. Cancel the context to stop.
func (s *StreamSink) Subscribe(ctx context.Context, guildID string) <-chan zoo.Event {
	ch := make(chan zoo.Event, 16)
	stream := StreamKey(guildID)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := s.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					s.logger.Warn("stream read failed", zap.String("stream", stream), zap.Error(err))
					select {
					case <-time.After(time.Second):
					case <-ctx.Done():
						return
					}
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					ev, ok := decodeEntry(msg.Values)
					if !ok {
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

func decodeEntry(values map[string]interface{}) (zoo.Event, bool) {
	data, ok := values["data"].(string)
	if !ok {
		return zoo.Event{}, false
	}
	var ev zoo.Event
	if json.Unmarshal([]byte(data), &ev) != nil {
		return zoo.Event{}, false
	}
	return ev, true
}
