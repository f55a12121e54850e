// Package cache adds a Redis read-through layer in front of the user
// directory. Beacon clients poll client.php, and every uncached check
// costs a bcrypt compare plus a directory row.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adventuretrack/atsite/internal/repository"
)

type Directory struct {
	next   repository.UserDirectory
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDirectory(rdb *redis.Client, next repository.UserDirectory, ttl time.Duration, logger *zap.Logger) *Directory {
	return &Directory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// CheckAuthCode serves successful lookups from Redis and falls through
// to the directory otherwise. Only positive results are cached, so a
// failed credential is always re-checked. Redis failures degrade to
// the uncached path.
func (d *Directory) CheckAuthCode(ctx context.Context, userHash, authCode string) (int64, error) {
	key := cacheKey(userHash, authCode)

	val, err := d.rdb.Get(ctx, key).Result()
	if err == nil {
		if id, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return id, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.logger.Warn("auth cache read failed", zap.Error(err))
	}

	id, err := d.next.CheckAuthCode(ctx, userHash, authCode)
	if err != nil || id == 0 {
		return id, err
	}
	if err := d.rdb.Set(ctx, key, strconv.FormatInt(id, 10), d.ttl).Err(); err != nil {
		d.logger.Warn("auth cache write failed", zap.Error(err))
	}
	return id, nil
}

// cacheKey digests the credential pair so plaintext auth codes never
// appear in the keyspace.
func cacheKey(userHash, authCode string) string {
	sum := sha256.Sum256([]byte(userHash + ":" + authCode))
	return "beacon:auth:" + hex.EncodeToString(sum[:])
}
