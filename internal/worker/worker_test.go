package worker

import (
	"context"
	"errors"
	"testing"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersister struct {
	sessions []string
	err      error
}

func (f *fakePersister) PersistFromSession(ctx context.Context, session *models.CheckoutSession) (*service.PersistResult, error) {
	f.sessions = append(f.sessions, session.ID)
	if f.err != nil {
		return nil, f.err
	}
	return &service.PersistResult{Order: &models.Order{ID: "o-" + session.ID}}, nil
}

func TestCheckoutWorker_HandleCheckoutCompleted(t *testing.T) {
	event := &models.CheckoutCompletedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt_1", EventType: models.EventTypeCheckoutCompleted},
		Session:   models.CheckoutSession{ID: "cs_1"},
	}

	t.Run("Persists", func(t *testing.T) {
		p := &fakePersister{}
		w := NewCheckoutWorker(nil, p)

		require.NoError(t, w.HandleCheckoutCompleted(context.Background(), event))
		assert.Equal(t, []string{"cs_1"}, p.sessions)
	})

	t.Run("ErrorIsReturnedForRetry", func(t *testing.T) {
		p := &fakePersister{err: errors.New("db down")}
		w := NewCheckoutWorker(nil, p)

		assert.Error(t, w.HandleCheckoutCompleted(context.Background(), event))
	})
}
