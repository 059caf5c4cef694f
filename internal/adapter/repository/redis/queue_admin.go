package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/tenant-provisioner/internal/domain"
)

// QueueAdmin implements the domain.JobQueueAdmin interface for the
// provisioning job stream.
type QueueAdmin struct {
	client *redis.Client
	logger *slog.Logger
}

func NewQueueAdmin(client *redis.Client, logger *slog.Logger) *QueueAdmin {
	return &QueueAdmin{
		client: client,
		logger: logger,
	}
}

// GetGroupInfo retrieves information about all consumer groups on the job stream.
func (a *QueueAdmin) GetGroupInfo(ctx context.Context) ([]domain.ConsumerGroupInfo, error) {
	groups, err := a.client.XInfoGroups(ctx, jobStreamKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", jobStreamKey, err)
	}

	result := make([]domain.ConsumerGroupInfo, len(groups))
	for i, g := range groups {
		result[i] = domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		}
	}
	return result, nil
}

// GetConsumerInfo retrieves information about workers in a specific group.
func (a *QueueAdmin) GetConsumerInfo(ctx context.Context, group string) ([]domain.ConsumerInfo, error) {
	consumers, err := a.client.XInfoConsumers(ctx, jobStreamKey, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer info for group %s: %w", group, err)
	}

	result := make([]domain.ConsumerInfo, len(consumers))
	for i, c := range consumers {
		result[i] = domain.ConsumerInfo{
			Name:    c.Name,
			Pending: c.Pending,
			Idle:    time.Duration(c.Idle) * time.Millisecond,
		}
	}
	return result, nil
}

// GetPendingSummary summarizes delivered-but-unacknowledged jobs for a group.
func (a *QueueAdmin) GetPendingSummary(ctx context.Context, group string) (*domain.PendingJobSummary, error) {
	pending, err := a.client.XPending(ctx, jobStreamKey, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending summary for group %s: %w", group, err)
	}

	return &domain.PendingJobSummary{
		Total:          pending.Count,
		FirstMessageID: pending.Lower,
		LastMessageID:  pending.Higher,
		ConsumerTotals: pending.Consumers,
	}, nil
}
