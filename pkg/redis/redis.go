package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"os"
	"strconv"
	"time"
)

type IRedis interface {
	SetRunStatus(ctx context.Context, runID string, status string, expiration time.Duration) error
	GetRunStatus(ctx context.Context, runID string) (string, error)
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func runStatusKey(runID string) string {
	return fmt.Sprintf("layout:run:%s:status", runID)
}

func (r *redisClient) SetRunStatus(ctx context.Context, runID string, status string, expiration time.Duration) error {
	key := runStatusKey(runID)
	logrus.Debug(fmt.Sprintf("Setting run status for %s with expiration %v", runID, expiration))
	err := r.client.Set(ctx, key, status, expiration).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error setting run status for %s: %v", runID, err))
		return err
	}
	return nil
}

func (r *redisClient) GetRunStatus(ctx context.Context, runID string) (string, error) {
	key := runStatusKey(runID)
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Run status not found for %s", runID))
		return "", err
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting run status for %s: %v", runID, err))
		return "", err
	}
	return val, nil
}

func (r *redisClient) DeleteRunStatus(ctx context.Context, runID string) error {
	key := runStatusKey(runID)
	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting run status for %s: %v", runID, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Run status for %s not found for deletion", runID))
		return nil
	}

	return nil
}
