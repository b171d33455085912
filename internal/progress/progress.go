package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// ErrNoProgress 表示 redis 中还没有该运行的进度（未开始或已过期）
var ErrNoProgress = errors.New("暂无排课进度")

// Store 使用 redis 保存每次排课的最新进度以及停止标记
type Store struct {
	rdb        *redis.Client
	expiration time.Duration
}

func NewStore(rdb *redis.Client, expiration time.Duration) *Store {
	return &Store{
		rdb:        rdb,
		expiration: expiration,
	}
}

func progressKey(runID int64) string {
	return fmt.Sprintf("run_%d_progress", runID)
}

func stopKey(runID int64) string {
	return fmt.Sprintf("run_%d_stop", runID)
}

func (s *Store) Publish(ctx context.Context, p domain.GenerationProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, progressKey(p.RunID), data, s.expiration).Err()
}

func (s *Store) Get(ctx context.Context, runID int64) (*domain.GenerationProgress, error) {
	data, err := s.rdb.Get(ctx, progressKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoProgress
		}
		return nil, err
	}

	p := &domain.GenerationProgress{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RequestStop 设置停止标记，worker 会在下一代开始前停止
func (s *Store) RequestStop(ctx context.Context, runID int64) error {
	return s.rdb.Set(ctx, stopKey(runID), 1, s.expiration).Err()
}

func (s *Store) StopRequested(ctx context.Context, runID int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, stopKey(runID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ClearStop(ctx context.Context, runID int64) error {
	return s.rdb.Del(ctx, stopKey(runID)).Err()
}
