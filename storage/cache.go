package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

type backend interface {
	FetchBoard(ctx context.Context, projectID int) (domain.Board, error)
	UpdateTask(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.TaskChange, error)
	EnqueueTaskEvent(ctx context.Context, ev domain.TaskEvent) error
}

// Cache wraps a Storage instance with Redis-backed caching of board reads.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchBoard(ctx context.Context, projectID int) (domain.Board, error) {
	if board, ok := c.load(ctx, projectID); ok {
		return board, nil
	}

	board, err := c.base.FetchBoard(ctx, projectID)
	if err != nil {
		return domain.Board{}, err
	}

	c.store(ctx, projectID, board)
	return board, nil
}

func (c *Cache) UpdateTask(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.TaskChange, error) {
	change, err := c.base.UpdateTask(ctx, taskID, patch)
	if err != nil {
		return domain.TaskChange{}, err
	}

	c.Evict(ctx, change.Before.ProjectID)
	if change.After.ProjectID != change.Before.ProjectID {
		c.Evict(ctx, change.After.ProjectID)
	}
	return change, nil
}

func (c *Cache) EnqueueTaskEvent(ctx context.Context, ev domain.TaskEvent) error {
	return c.base.EnqueueTaskEvent(ctx, ev)
}

// Evict drops the cached board of a project.
func (c *Cache) Evict(ctx context.Context, projectID int) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardCacheKey(projectID)).Err()
}

func (c *Cache) load(ctx context.Context, projectID int) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	key := boardCacheKey(projectID)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return domain.Board{}, false
	}
	var board domain.Board
	if err := sonic.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return domain.Board{}, false
	}
	return board, true
}

func (c *Cache) store(ctx context.Context, projectID int, board domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(projectID), data, c.ttl).Err()
}

func boardCacheKey(projectID int) string {
	return "board:" + strconv.Itoa(projectID)
}
