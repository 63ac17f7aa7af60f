//go:build integration

package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/messaging"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

func TestRabbitPublisher(t *testing.T) {
	ctx := context.Background()
	container, err := rabbitmq.Run(ctx, "rabbitmq:3.13-management-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	pub, err := messaging.Dial(url, "contract_deployments", zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	event := models.DeploymentEvent{
		EventID:        "evt-1",
		Status:         "confirmed",
		TransactionID:  "TXID",
		ProgramID:      42,
		ConfirmedRound: 1001,
		OccurredAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, pub.PublishDeployment(ctx, event))

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var msg amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok, err = ch.Get("contract_deployments", true)
		return err == nil && ok
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, "deployment.confirmed", msg.Type)
	assert.Equal(t, "evt-1", msg.MessageId)
	var got models.DeploymentEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.True(t, event.OccurredAt.Equal(got.OccurredAt))
	got.OccurredAt = event.OccurredAt
	assert.Equal(t, event, got)
}
