package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

// NotificationRepository publishes team notifications over Redis pub/sub.
type NotificationRepository struct {
	client *redis.Client
	prefix string
}

// NewNotificationRepository constructs the publisher. Channels are named
// "<prefix>:team:<teamID>".
func NewNotificationRepository(client *redis.Client, prefix string) *NotificationRepository {
	if prefix == "" {
		prefix = "facility:notifications"
	}
	return &NotificationRepository{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for a team.
func (r *NotificationRepository) Channel(teamID string) string {
	return fmt.Sprintf("%s:team:%s", r.prefix, teamID)
}

// Publish sends the notification to the team channel.
func (r *NotificationRepository) Publish(ctx context.Context, n models.Notification) error {
	if r.client == nil {
		return fmt.Errorf("publish notification: redis client not configured")
	}
	if n.TeamID == "" {
		return fmt.Errorf("publish notification: team id required")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.Channel(n.TeamID), payload).Err(); err != nil {
		return fmt.Errorf("publish notification to %s: %w", r.Channel(n.TeamID), err)
	}
	return nil
}
