package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishQueuesEventOnce(t *testing.T) {
	client, mock := redismock.NewClientMock()
	p := NewRedisPublisher(client)

	evt := Event{
		EventID:    "e-1",
		EntityType: EntityBooking,
		EntityID:   42,
		OwnerID:    5,
		OldStatus:  "pending",
		NewStatus:  "confirmed",
		OccurredAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(evt)
	require.NoError(t, err)

	mock.ExpectSetNX("notify:booking:42:confirmed", "e-1", dedupeTTL).SetVal(true)
	mock.ExpectLPush(notificationsQueue, data).SetVal(1)

	require.NoError(t, p.Publish(context.Background(), evt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishRedeliveryIsNoop(t *testing.T) {
	client, mock := redismock.NewClientMock()
	p := NewRedisPublisher(client)

	evt := Event{EventID: "e-1", EntityType: EntityBooking, EntityID: 42, NewStatus: "confirmed"}

	// Dedupe key already set: no second push for the same transition.
	mock.ExpectSetNX("notify:booking:42:confirmed", "e-1", dedupeTTL).SetVal(false)

	require.NoError(t, p.Publish(context.Background(), evt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishSurfacesRedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	p := NewRedisPublisher(client)

	evt := Event{EventID: "e-1", EntityType: EntityBooking, EntityID: 42, NewStatus: "confirmed"}

	mock.ExpectSetNX("notify:booking:42:confirmed", "e-1", dedupeTTL).SetErr(assert.AnError)

	err := p.Publish(context.Background(), evt)
	require.Error(t, err)
}
