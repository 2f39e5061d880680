package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	reconcileDueKey  = "reconcile:due"
	reconcileJobsKey = "reconcile:jobs"
)

// ReconcileJob is the polling state for one pending transaction. It holds
// the transaction id only; the row itself is always re-read.
type ReconcileJob struct {
	TransactionID int64     `json:"transaction_id"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	Attempts      int       `json:"attempts"`
	Deadline      time.Time `json:"deadline"`
}

// JobQueue holds reconciliation jobs ordered by next attempt. Claim removes a
// job and succeeds for exactly one caller.
type JobQueue interface {
	Push(ctx context.Context, job ReconcileJob) error
	Due(ctx context.Context, now time.Time, limit int) ([]int64, error)
	Claim(ctx context.Context, transactionID int64) (*ReconcileJob, bool, error)
	Remove(ctx context.Context, transactionID int64) error
	Contains(ctx context.Context, transactionID int64) (bool, error)
}

// RedisJobQueue keeps due times in a sorted set and job state in a hash, so
// jobs survive a restart of any single instance.
type RedisJobQueue struct {
	rdb *redis.Client
}

func NewRedisJobQueue(rdb *redis.Client) *RedisJobQueue {
	return &RedisJobQueue{rdb: rdb}
}

func (q *RedisJobQueue) Push(ctx context.Context, job ReconcileJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	member := strconv.FormatInt(job.TransactionID, 10)

	if err := q.rdb.HSet(ctx, reconcileJobsKey, member, data).Err(); err != nil {
		return err
	}
	return q.rdb.ZAdd(ctx, reconcileDueKey, &redis.Z{
		Score:  float64(job.NextAttemptAt.UnixMilli()),
		Member: member,
	}).Err()
}

func (q *RedisJobQueue) Due(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	members, err := q.rdb.ZRangeByScore(ctx, reconcileDueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *RedisJobQueue) Claim(ctx context.Context, transactionID int64) (*ReconcileJob, bool, error) {
	member := strconv.FormatInt(transactionID, 10)

	removed, err := q.rdb.ZRem(ctx, reconcileDueKey, member).Result()
	if err != nil {
		return nil, false, err
	}
	if removed == 0 {
		return nil, false, nil
	}

	data, err := q.rdb.HGet(ctx, reconcileJobsKey, member).Result()
	if errors.Is(err, redis.Nil) {
		return &ReconcileJob{TransactionID: transactionID}, true, nil
	}
	if err != nil {
		return nil, true, err
	}
	if err := q.rdb.HDel(ctx, reconcileJobsKey, member).Err(); err != nil {
		return nil, true, err
	}

	var job ReconcileJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return &ReconcileJob{TransactionID: transactionID}, true, nil
	}
	return &job, true, nil
}

func (q *RedisJobQueue) Remove(ctx context.Context, transactionID int64) error {
	member := strconv.FormatInt(transactionID, 10)
	if err := q.rdb.ZRem(ctx, reconcileDueKey, member).Err(); err != nil {
		return err
	}
	return q.rdb.HDel(ctx, reconcileJobsKey, member).Err()
}

func (q *RedisJobQueue) Contains(ctx context.Context, transactionID int64) (bool, error) {
	err := q.rdb.ZScore(ctx, reconcileDueKey, strconv.FormatInt(transactionID, 10)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}

// MemoryJobQueue is the single-process fallback used when Redis is absent.
type MemoryJobQueue struct {
	mu   sync.Mutex
	jobs map[int64]ReconcileJob
}

func NewMemoryJobQueue() *MemoryJobQueue {
	return &MemoryJobQueue{jobs: make(map[int64]ReconcileJob)}
}

func (q *MemoryJobQueue) Push(_ context.Context, job ReconcileJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.TransactionID] = job
	return nil
}

func (q *MemoryJobQueue) Due(_ context.Context, now time.Time, limit int) ([]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]ReconcileJob, 0)
	for _, job := range q.jobs {
		if !job.NextAttemptAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	ids := make([]int64, len(due))
	for i, job := range due {
		ids[i] = job.TransactionID
	}
	return ids, nil
}

func (q *MemoryJobQueue) Claim(_ context.Context, transactionID int64) (*ReconcileJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[transactionID]
	if !ok {
		return nil, false, nil
	}
	delete(q.jobs, transactionID)
	return &job, true, nil
}

func (q *MemoryJobQueue) Remove(_ context.Context, transactionID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, transactionID)
	return nil
}

func (q *MemoryJobQueue) Contains(_ context.Context, transactionID int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.jobs[transactionID]
	return ok, nil
}

func (q *MemoryJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
