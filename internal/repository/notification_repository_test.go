package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

func TestNotificationRepositoryPublish(t *testing.T) {
	_, client := newRedis(t)
	repo := NewNotificationRepository(client, "test")
	ctx := context.Background()

	sub := client.Subscribe(ctx, "test:team:team-1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := models.Notification{
		Event:         models.NotificationWorkOrderReassigned,
		HospitalID:    "hosp-1",
		TeamID:        "team-1",
		WorkOrderID:   "wo-1",
		WorkOrderCode: "WO-RSU-20240101-0001",
		OccurredAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Publish(ctx, n))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test:team:team-1", msg.Channel)

	var got models.Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "wo-1", got.WorkOrderID)
	assert.Equal(t, models.NotificationWorkOrderReassigned, got.Event)
}

func TestNotificationRepositoryRequiresTeam(t *testing.T) {
	_, client := newRedis(t)
	repo := NewNotificationRepository(client, "")
	assert.Equal(t, "facility:notifications:team:x", repo.Channel("x"))
	assert.Error(t, repo.Publish(context.Background(), models.Notification{WorkOrderID: "wo-1"}))
}
