// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/config"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// QueueName is the Redis list game action records are pushed to.
var QueueName = "mighty_actions"

// GameActionRecord holds the minimal info needed by the historian microservice.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"game_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ConnectRedis initializes the global Redis client and queue name from cfg.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	Rdb = client
	if cfg.Queue != "" {
		QueueName = cfg.Queue
	}
	return nil
}

// PublishGameAction serializes the given record to JSON, then pushes it to the Redis queue.
func PublishGameAction(ctx context.Context, record GameActionRecord) error {
	if Rdb == nil {
		return fmt.Errorf("redis not connected")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	if err := Rdb.RPush(ctx, QueueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", QueueName, err)
	}
	return nil
}

// PopGameActions blocks up to timeout for the first record, then drains up to limit-1 more
// without blocking. A timeout with nothing queued returns an empty slice.
func PopGameActions(ctx context.Context, timeout time.Duration, limit int) ([]GameActionRecord, error) {
	res, err := Rdb.BLPop(ctx, timeout, QueueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw := []string{res[1]}
	if limit > 1 {
		more, err := Rdb.LPopCount(ctx, QueueName, limit-1).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		raw = append(raw, more...)
	}

	records := make([]GameActionRecord, 0, len(raw))
	for _, r := range raw {
		var rec GameActionRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			// malformed entries are dropped rather than blocking the queue
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// RequeueGameActions puts records back at the head of the queue in their original order,
// so the next pop returns them first.
func RequeueGameActions(ctx context.Context, records []GameActionRecord) error {
	if Rdb == nil {
		return fmt.Errorf("redis not connected")
	}
	if len(records) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		data, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
		}
		values = append(values, data)
	}
	if err := Rdb.LPush(ctx, QueueName, values...).Err(); err != nil {
		return fmt.Errorf("failed to LPush to Redis list '%s': %w", QueueName, err)
	}
	return nil
}

// Close shuts down the global client.
func Close() error {
	if Rdb == nil {
		return nil
	}
	err := Rdb.Close()
	Rdb = nil
	return err
}
