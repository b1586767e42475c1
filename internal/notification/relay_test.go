package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	published []Notification
	failFor   map[uuid.UUID]bool
}

func (p *recordingPublisher) Publish(_ context.Context, n Notification) error {
	if p.failFor[n.ID] {
		return errors.New("channel closed")
	}
	p.published = append(p.published, n)
	return nil
}

func TestRelayDrainPublishesAndMarksSent(t *testing.T) {
	repo := &memRepo{}
	d := NewDispatcher(repo, nil, nil)
	d.NotifyUser(context.Background(), Message{RecipientID: uuid.New(), Type: TypeRescheduleRequest})
	d.NotifyProvider(context.Background(), Message{RecipientID: uuid.New(), Type: TypeRescheduleDeclined})

	pub := &recordingPublisher{}
	relay := NewRelay(repo, pub, nil, nil).WithBatchSize(10)

	assert.Equal(t, 2, relay.Drain(context.Background()))
	assert.Len(t, pub.published, 2)

	// already sent rows are not picked up again
	assert.Equal(t, 0, relay.Drain(context.Background()))
	assert.Len(t, pub.published, 2)
}

func TestRelayLeavesFailedPublishUnsent(t *testing.T) {
	repo := &memRepo{}
	d := NewDispatcher(repo, nil, nil)
	d.NotifyUser(context.Background(), Message{RecipientID: uuid.New(), Type: TypeRescheduleRequest})
	d.NotifyUser(context.Background(), Message{RecipientID: uuid.New(), Type: TypeRescheduleExpired})

	pub := &recordingPublisher{failFor: map[uuid.UUID]bool{repo.rows[0].ID: true}}
	relay := NewRelay(repo, pub, nil, nil)

	assert.Equal(t, 1, relay.Drain(context.Background()))
	assert.Nil(t, repo.rows[0].SentAt)
	assert.NotNil(t, repo.rows[1].SentAt)
}

func TestRelayStartStopsOnCancel(t *testing.T) {
	relay := NewRelay(&memRepo{}, &recordingPublisher{}, nil, nil).WithInterval(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		relay.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestEnvelopeJSON(t *testing.T) {
	n := Notification{
		ID:          uuid.New(),
		Audience:    AudienceProvider,
		RecipientID: uuid.New(),
		Type:        TypeRescheduleDeclined,
		Title:       "Reschedule declined",
		Message:     "Refund of 400.00 issued",
	}

	body, err := json.Marshal(NewEnvelope(n))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "provider", decoded["audience"])
	assert.Equal(t, n.RecipientID.String(), decoded["recipient_id"])
	assert.NotContains(t, decoded, "reference_id")
}
