package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "birdzoo:"

// RedisLedger keeps affinity in sorted sets and nests in one hash per guild.
type RedisLedger struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisLedger wraps an existing client.
func NewRedisLedger(rdb *redis.Client, logger *zap.Logger) *RedisLedger {
	return &RedisLedger{rdb: rdb, logger: logger}
}

func affinitySet(guildID, birdName string) string {
	return keyPrefix + "affinity:" + guildID + ":" + birdName
}

func nestHash(guildID string) string {
	return keyPrefix + "nests:" + guildID
}

func (l *RedisLedger) AddAffinity(ctx context.Context, guildID, birdName, userID string, points int) error {
	if err := l.rdb.ZIncrBy(ctx, affinitySet(guildID, birdName), float64(points), userID).Err(); err != nil {
		return fmt.Errorf("add affinity %s/%s: %w", guildID, birdName, err)
	}
	return nil
}

func (l *RedisLedger) TopSupporter(ctx context.Context, guildID, birdName string) (string, bool, error) {
	res, err := l.rdb.ZRevRangeWithScores(ctx, affinitySet(guildID, birdName), 0, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("top supporter %s/%s: %w", guildID, birdName, err)
	}
	if len(res) == 0 {
		return "", false, nil
	}
	user, _ := res[0].Member.(string)
	return user, user != "", nil
}

func (l *RedisLedger) NestOwner(ctx context.Context, guildID, birdName string) (string, bool, error) {
	owner, err := l.rdb.HGet(ctx, nestHash(guildID), birdName).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("nest owner %s/%s: %w", guildID, birdName, err)
	}
	return owner, true, nil
}

func (l *RedisLedger) SetNest(ctx context.Context, guildID, birdName, userID string) error {
	if err := l.rdb.HSet(ctx, nestHash(guildID), birdName, userID).Err(); err != nil {
		return fmt.Errorf("set nest %s/%s: %w", guildID, birdName, err)
	}
	l.logger.Debug("nest set",
		zap.String("guild", guildID),
		zap.String("bird", birdName),
		zap.String("owner", userID))
	return nil
}

func (l *RedisLedger) ClearNest(ctx context.Context, guildID, birdName string) error {
	if err := l.rdb.HDel(ctx, nestHash(guildID), birdName).Err(); err != nil {
		return fmt.Errorf("clear nest %s/%s: %w", guildID, birdName, err)
	}
	return nil
}

func (l *RedisLedger) Nests(ctx context.Context, guildID string) (map[string]string, error) {
	m, err := l.rdb.HGetAll(ctx, nestHash(guildID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list nests %s: %w", guildID, err)
	}
	return m, nil
}
