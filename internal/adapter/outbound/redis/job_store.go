package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uniedit/videogen/internal/domain/video"
)

const jobKeyPrefix = "videogen:job:"

// JobStore keeps tracked jobs in Redis so status queries survive a restart
// of the HTTP layer. Records expire after ttl.
type JobStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewJobStore creates a Redis-backed job store.
func NewJobStore(client redis.UniversalClient, ttl time.Duration) *JobStore {
	return &JobStore{client: client, ttl: ttl}
}

func (s *JobStore) Save(ctx context.Context, job video.GenerationJob) error {
	data, err := json.Marshal(job.Record())
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID(), err)
	}
	return s.client.Set(ctx, jobKeyPrefix+job.ID(), data, s.ttl).Err()
}

func (s *JobStore) Get(ctx context.Context, id string) (video.GenerationJob, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return video.GenerationJob{}, video.ErrJobNotFound
	}
	if err != nil {
		return video.GenerationJob{}, err
	}

	var record video.JobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return video.GenerationJob{}, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return video.RestoreJob(record)
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, jobKeyPrefix+id).Err()
}

var _ video.JobStore = (*JobStore)(nil)
