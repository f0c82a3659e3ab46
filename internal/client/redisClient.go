package client

import (
	"context"
	"log"
	"time"

	"giftbox-checkout/internal/config"

	"github.com/redis/go-redis/v9"
)

func InitRedisClient(redisCfg *config.Redis) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         redisCfg.Addr,
		Password:     redisCfg.Password,
		DB:           redisCfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		// cache outage is survivable, every read degrades to a miss
		log.Printf("redis unreachable at %s: %v", redisCfg.Addr, err)
	}

	return rdb
}
