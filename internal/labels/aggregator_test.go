package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"fulfillment-service/internal/carrier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	batch   func(ids []string) ([]byte, error)
	single  func(id string) ([]byte, error)
	batches [][]string
	singles []string
}

func (f *fakeFetcher) PacketLabelPdf(ctx context.Context, packetID, format string, offset int) ([]byte, error) {
	f.mu.Lock()
	f.singles = append(f.singles, packetID)
	f.mu.Unlock()
	return f.single(packetID)
}

func (f *fakeFetcher) PacketsLabelsPdf(ctx context.Context, packetIDs []string, format string, offset int) ([]byte, error) {
	f.mu.Lock()
	f.batches = append(f.batches, packetIDs)
	f.mu.Unlock()
	return f.batch(packetIDs)
}

// joinMerger concatenates documents with a separator so tests can see order.
type joinMerger struct {
	calls int
}

func (m *joinMerger) Merge(docs [][]byte) ([]byte, error) {
	m.calls++
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = string(d)
	}
	return []byte(strings.Join(parts, "|")), nil
}

func labelFor(id string) ([]byte, error) {
	return []byte("label-" + id), nil
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("BatchSuccess", func(t *testing.T) {
		f := &fakeFetcher{
			batch: func(ids []string) ([]byte, error) { return []byte("batch"), nil },
		}
		m := &joinMerger{}
		agg := NewAggregator(f, m, 2)

		res, err := agg.Aggregate(ctx, []string{"1", "2"}, "A6 on A4")
		require.NoError(t, err)
		assert.Equal(t, []byte("batch"), res.Document)
		assert.True(t, res.Batch)
		assert.False(t, res.Partial())
		assert.Empty(t, f.singles)
		assert.Equal(t, 0, m.calls)
	})

	t.Run("FaultFallsBackInInputOrder", func(t *testing.T) {
		f := &fakeFetcher{
			batch:  func(ids []string) ([]byte, error) { return nil, &carrier.FaultError{Fault: "PacketIdsFault"} },
			single: labelFor,
		}
		agg := NewAggregator(f, &joinMerger{}, 3)

		ids := []string{"5", "3", "9", "1", "7"}
		res, err := agg.Aggregate(ctx, ids, "A6 on A6")
		require.NoError(t, err)
		assert.False(t, res.Batch)
		assert.Equal(t, "label-5|label-3|label-9|label-1|label-7", string(res.Document))
		assert.Equal(t, ids, res.Included)
		assert.ElementsMatch(t, ids, f.singles)
	})

	t.Run("UnrecognizedBatchFallsBack", func(t *testing.T) {
		f := &fakeFetcher{
			batch:  func(ids []string) ([]byte, error) { return nil, &carrier.FormatError{StatusCode: 200} },
			single: labelFor,
		}
		res, err := NewAggregator(f, &joinMerger{}, 1).Aggregate(ctx, []string{"1", "2"}, "")
		require.NoError(t, err)
		assert.Equal(t, "label-1|label-2", string(res.Document))
	})

	t.Run("FailedShipmentsAreSkipped", func(t *testing.T) {
		f := &fakeFetcher{
			batch: func(ids []string) ([]byte, error) { return nil, &carrier.FaultError{Fault: "x"} },
			single: func(id string) ([]byte, error) {
				if id == "2" {
					return nil, &carrier.StatusError{StatusCode: 404}
				}
				return labelFor(id)
			},
		}
		res, err := NewAggregator(f, &joinMerger{}, 2).Aggregate(ctx, []string{"1", "2", "3"}, "")
		require.NoError(t, err)
		assert.True(t, res.Partial())
		assert.Equal(t, 3, res.Requested)
		assert.Equal(t, []string{"1", "3"}, res.Included)
		assert.Equal(t, []string{"2"}, res.Failed)
		assert.Equal(t, "label-1|label-3", string(res.Document))
	})

	t.Run("AllShipmentsFail", func(t *testing.T) {
		f := &fakeFetcher{
			batch:  func(ids []string) ([]byte, error) { return nil, &carrier.FaultError{Fault: "x"} },
			single: func(id string) ([]byte, error) { return nil, errors.New("connection refused") },
		}
		res, err := NewAggregator(f, &joinMerger{}, 2).Aggregate(ctx, []string{"1", "2"}, "")
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrNoLabels)
	})

	t.Run("TransportErrorIsNotAFallback", func(t *testing.T) {
		exhausted := &carrier.RetryError{Operation: "packetsLabelsPdf", Attempts: 3, Last: errors.New("timeout")}
		f := &fakeFetcher{
			batch: func(ids []string) ([]byte, error) { return nil, exhausted },
		}
		_, err := NewAggregator(f, &joinMerger{}, 2).Aggregate(ctx, []string{"1"}, "")
		assert.ErrorIs(t, err, carrier.ErrRetriesExhausted)
		assert.Empty(t, f.singles)
	})

	t.Run("NoShipments", func(t *testing.T) {
		_, err := NewAggregator(&fakeFetcher{}, &joinMerger{}, 2).Aggregate(ctx, []string{"", "  "}, "")
		assert.ErrorIs(t, err, ErrNoShipments)
	})

	t.Run("PoolIsBounded", func(t *testing.T) {
		var mu sync.Mutex
		running, peak := 0, 0
		release := make(chan struct{})
		f := &fakeFetcher{
			batch: func(ids []string) ([]byte, error) { return nil, &carrier.FaultError{Fault: "x"} },
			single: func(id string) ([]byte, error) {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()
				<-release
				mu.Lock()
				running--
				mu.Unlock()
				return labelFor(id)
			},
		}

		ids := make([]string, 8)
		for i := range ids {
			ids[i] = fmt.Sprint(i)
		}
		go func() {
			for range ids {
				release <- struct{}{}
			}
		}()

		res, err := NewAggregator(f, &joinMerger{}, 2).Aggregate(ctx, ids, "")
		require.NoError(t, err)
		assert.Len(t, res.Included, 8)
		assert.LessOrEqual(t, peak, 2)
	})
}
