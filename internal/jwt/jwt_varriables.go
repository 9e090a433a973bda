package jwt

import (
	"time"

	"github.com/go-redis/redis/v8"

	"kingchat-backend/internal/env"
)

var (
	OPERATOR_SECRET string
	RedisClient     *redis.Client
)

const RefreshTokenTTL = 24 * 30 * time.Hour

const (
	RoleOperator Role = iota
	RoleAdmin
)

// Init wires the signing secret and the refresh-token store. Servers call
// it from main; tests set the secret directly with SetSecret.
func Init() {
	OPERATOR_SECRET = env.Get(env.OperatorSecret)

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get(env.AuthRedisURL),
		Password: env.Get(env.AuthRedisPass),
		DB:       0,
	})
}

func SetSecret(secret string) {
	OPERATOR_SECRET = secret
}

func roleSecret(role Role) (string, bool) {
	switch role {
	case RoleOperator, RoleAdmin:
		return OPERATOR_SECRET, OPERATOR_SECRET != ""
	}
	return "", false
}
