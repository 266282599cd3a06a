package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/roster/models"
)

func records(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.Record{ID: fmt.Sprintf("r%d", i), Location: fmt.Sprintf("L%d", i%3), Status: models.StatusPending}
	}
	return out
}

// trackingResolver records page sizes and peak concurrency.
type trackingResolver struct {
	mu        sync.Mutex
	pageSizes []int
	inFlight  atomic.Int32
	peak      atomic.Int32
	failOn    string
}

func (r *trackingResolver) ResolveLocations(_ context.Context, page []models.Record) (map[string]string, error) {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		old := r.peak.Load()
		if cur <= old || r.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.pageSizes = append(r.pageSizes, len(page))
	r.mu.Unlock()

	out := make(map[string]string, len(page))
	for _, rec := range page {
		if rec.ID == r.failOn {
			return nil, errors.New("upstream rejected page")
		}
		out[rec.ID] = "label-" + rec.Location
	}
	return out, nil
}

func TestEnricher_PagesAndWaves(t *testing.T) {
	resolver := &trackingResolver{}
	e := NewEnricher(resolver, WithPageSize(10), WithWaveWidth(2))

	labels, err := e.Labels(context.Background(), records(45))
	require.NoError(t, err)

	assert.Len(t, labels, 45)
	assert.Equal(t, "label-L1", labels["r4"])
	assert.ElementsMatch(t, []int{10, 10, 10, 10, 5}, resolver.pageSizes)
	assert.LessOrEqual(t, resolver.peak.Load(), int32(2))
}

func TestEnricher_FailingPageStopsLaterWaves(t *testing.T) {
	resolver := &trackingResolver{failOn: "r12"}
	e := NewEnricher(resolver, WithPageSize(5), WithWaveWidth(2))

	labels, err := e.Labels(context.Background(), records(30))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")
	assert.Len(t, labels, 10, "only the first wave resolved")
}

func TestEnricher_Empty(t *testing.T) {
	labels, err := NewEnricher(&trackingResolver{}).Labels(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestPending(t *testing.T) {
	in := []models.Record{
		{ID: "a", Status: models.StatusPending},
		{ID: "b", Status: models.StatusCompleted},
		{ID: "c", Status: models.StatusPending},
	}
	out := Pending(in)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[1].ID)
}

func TestStaticResolver(t *testing.T) {
	s := StaticResolver{"BER-01": "Berlin"}
	got, err := s.ResolveLocations(context.Background(), []models.Record{
		{ID: "1", Location: "BER-01"},
		{ID: "2", Location: "MUC-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "Berlin"}, got)
}
