package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"autoeden/internal/util"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Task kinds handled by background workers.
const (
	KindApprovalEmail  = "approval_email"
	KindRejectionEmail = "rejection_email"
	KindWhatsAppAlert  = "whatsapp_alert"
	KindDraftCleanup   = "draft_cleanup"
)

// Task is one unit of background work with its delivery status.
type Task struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Payload      string    `json:"payload"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler processes one task. A non-nil error triggers a retry until the
// attempt budget is spent.
type Handler func(context.Context, Task) error

// RedisTaskQueue is a redis-streams task queue with at-least-once delivery,
// bounded retries and per-task status tracking.
type RedisTaskQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	taskTTL      time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	once         sync.Once
}

// RedisQueueConfig configures the task queue. Zero values get safe defaults.
type RedisQueueConfig struct {
	Client     *redis.Client
	Stream     string
	Group      string
	Consumer   string
	TaskTTL    time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

// NewRedisTaskQueue validates config and builds a queue.
func NewRedisTaskQueue(cfg RedisQueueConfig) (*RedisTaskQueue, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "workers"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	taskTTL := cfg.TaskTTL
	if taskTTL <= 0 {
		taskTTL = 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}

	return &RedisTaskQueue{
		client:       cfg.Client,
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		taskTTL:      taskTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
	}, nil
}

// Enqueue records a task and publishes it to the stream.
func (q *RedisTaskQueue) Enqueue(ctx context.Context, kind, payload string) (Task, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Task{}, errors.New("task kind required")
	}
	now := time.Now().UTC()
	task := Task{
		ID:        util.NewID(),
		Kind:      kind,
		Payload:   payload,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.writeStatus(ctx, task); err != nil {
		return Task{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"task_id": task.ID,
			"kind":    task.Kind,
			"payload": task.Payload,
		},
	}).Err(); err != nil {
		return Task{}, err
	}
	return task, nil
}

// GetTask returns the recorded status of a task.
func (q *RedisTaskQueue) GetTask(ctx context.Context, taskID string) (Task, bool, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return Task{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.taskKey(taskID)).Result()
	if err != nil {
		return Task{}, false, err
	}
	if len(data) == 0 {
		return Task{}, false, nil
	}
	return decodeTask(taskID, data), true, nil
}

// Start launches worker goroutines that consume until ctx is cancelled.
func (q *RedisTaskQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisTaskQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			// best-effort; errors will surface on consume
		}
	})
}

func (q *RedisTaskQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisTaskQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisTaskQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	taskID, _ := msg.Values["task_id"].(string)
	kind, _ := msg.Values["kind"].(string)
	payload, _ := msg.Values["payload"].(string)
	if taskID == "" || kind == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	task, err := q.markProcessing(ctx, taskID, kind, payload)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if err := handler(ctx, task); err == nil {
		_ = q.markDone(ctx, taskID)
		q.ackAndDel(ctx, msg.ID)
		return
	} else {
		if task.Attempts >= q.maxRetries {
			_ = q.markFailed(ctx, taskID, err.Error())
			q.ackAndDel(ctx, msg.ID)
			return
		}
		_ = q.markQueued(ctx, taskID, err.Error())
	}
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	_ = q.requeueAndAck(ctx, msg.ID, taskID, kind, payload)
}

func (q *RedisTaskQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisTaskQueue) requeueAndAck(ctx context.Context, msgID, taskID, kind, payload string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"task_id": taskID,
			"kind":    kind,
			"payload": payload,
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisTaskQueue) markProcessing(ctx context.Context, taskID, kind, payload string) (Task, error) {
	task, _, err := q.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.ID == "" {
		task = Task{ID: taskID}
	}
	if kind != "" {
		task.Kind = kind
	}
	if payload != "" {
		task.Payload = payload
	}
	task.Attempts++
	task.Status = StatusProcessing
	task.UpdatedAt = time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = task.UpdatedAt
	}
	if err := q.writeStatus(ctx, task); err != nil {
		return Task{}, err
	}
	return task, nil
}

func (q *RedisTaskQueue) markQueued(ctx context.Context, taskID, errMsg string) error {
	return q.setStatus(ctx, taskID, StatusQueued, errMsg)
}

func (q *RedisTaskQueue) markDone(ctx context.Context, taskID string) error {
	return q.setStatus(ctx, taskID, StatusDone, "")
}

func (q *RedisTaskQueue) markFailed(ctx context.Context, taskID, errMsg string) error {
	return q.setStatus(ctx, taskID, StatusFailed, errMsg)
}

func (q *RedisTaskQueue) setStatus(ctx context.Context, taskID, status, errMsg string) error {
	task, _, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.Status = status
	task.ErrorMessage = errMsg
	task.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, task)
}

func (q *RedisTaskQueue) writeStatus(ctx context.Context, task Task) error {
	key := q.taskKey(task.ID)
	payload := map[string]any{
		"id":        task.ID,
		"kind":      task.Kind,
		"payload":   task.Payload,
		"status":    task.Status,
		"error":     task.ErrorMessage,
		"attempts":  strconv.Itoa(task.Attempts),
		"createdAt": task.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": task.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.taskTTL).Err()
	return nil
}

func (q *RedisTaskQueue) taskKey(taskID string) string {
	return fmt.Sprintf("task:%s:%s", q.stream, taskID)
}

func decodeTask(taskID string, data map[string]string) Task {
	task := Task{ID: taskID}
	task.Kind = data["kind"]
	task.Payload = data["payload"]
	task.Status = data["status"]
	task.ErrorMessage = data["error"]
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			task.Attempts = n
		}
	}
	if v := data["createdAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			task.CreatedAt = t
		}
	}
	if v := data["updatedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			task.UpdatedAt = t
		}
	}
	return task
}
