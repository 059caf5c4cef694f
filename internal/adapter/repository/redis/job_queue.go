package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/tenant-provisioner/internal/adapter/scrub"
	"github.com/user/tenant-provisioner/internal/domain"
)

const (
	jobStreamKey  = "provisioning_jobs"
	deadStreamKey = "provisioning_jobs_dead"

	readBlockTimeout = 2 * time.Second
)

// JobQueue implements the domain.JobQueue interface on Redis Streams. The
// consumer group gives at-least-once delivery; handlers are expected to be
// idempotent.
type JobQueue struct {
	client   *redis.Client
	logger   *slog.Logger
	scrubber *scrub.Scrubber
}

// NewJobQueue creates a Redis-backed JobQueue and ensures the consumer group
// exists. The scrubber removes secret payload fields before anything is
// written to the dead-letter stream.
func NewJobQueue(client *redis.Client, logger *slog.Logger, group string, scrubber *scrub.Scrubber) (*JobQueue, error) {
	q := &JobQueue{
		client:   client,
		logger:   logger.With("component", "job_queue"),
		scrubber: scrubber,
	}

	if err := q.setupConsumerGroup(context.Background(), group); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *JobQueue) setupConsumerGroup(ctx context.Context, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, jobStreamKey, group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Enqueue appends a job to the stream.
func (q *JobQueue) Enqueue(ctx context.Context, job domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: jobStreamKey,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD job to stream: %w", err)
	}
	return nil
}

// ReadBatch reads a batch of jobs from the stream for a consumer group.
func (q *JobQueue) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.Job, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{jobStreamKey, ">"},
		Count:    int64(count),
		Block:    readBlockTimeout,
	}

	streams, err := q.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	messages := streams[0].Messages
	jobs := make([]domain.Job, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			q.logger.Warn("invalid message format in stream, skipping", "message_id", msg.ID)
			continue
		}

		var job domain.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			q.logger.Warn("failed to unmarshal job from stream, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		job.StreamMessageID = msg.ID
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Acknowledge marks processed jobs in the stream.
func (q *JobQueue) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, jobStreamKey, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages: %w", err)
	}
	return nil
}

// MoveToDead parks jobs on the dead-letter stream. Secret payload fields are
// scrubbed: a dead letter outlives the job's execution window.
func (q *JobQueue) MoveToDead(ctx context.Context, jobs []domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	for _, job := range jobs {
		payload, err := json.Marshal(job)
		if err != nil {
			q.logger.Error("failed to marshal job for dead-letter stream", "job_id", job.ID, "error", err)
			continue
		}
		if q.scrubber != nil {
			if scrubbed, err := q.scrubber.Payload(payload); err == nil {
				payload = scrubbed
			}
		}
		args := &redis.XAddArgs{
			Stream: deadStreamKey,
			Values: map[string]interface{}{
				"payload":         payload,
				"original_stream": jobStreamKey,
				"original_msg_id": job.StreamMessageID,
				"failed_at":       time.Now().UTC().Format(time.RFC3339),
			},
		}
		pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute dead-letter pipeline: %w", err)
	}
	q.logger.Warn("moved jobs to dead-letter stream", "count", len(jobs))
	return nil
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
