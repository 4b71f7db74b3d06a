package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/soccervortex/skinvault-backend/internal/common/errors"
)

// RedisResolver maps opaque session tokens to Steam IDs. Tokens are written
// by the login flow with a TTL, so an expired session simply stops resolving.
type RedisResolver struct {
	rdb *redis.Client
}

func NewRedisResolver(rdb *redis.Client) *RedisResolver {
	return &RedisResolver{rdb: rdb}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func (r *RedisResolver) ResolveSteamID(ctx context.Context, token string) (string, error) {
	steamID, err := r.rdb.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewDependencyUnavailableError("redis", err)
	}
	return steamID, nil
}
