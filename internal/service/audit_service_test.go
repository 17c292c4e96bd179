package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain"
	"github.com/iterahealth/activation-engine/internal/repository/memory"
	"github.com/iterahealth/activation-engine/pkg/metrics"
)

// newTestCollector builds a collector on a private registry so every fixture
// gets fresh counters without colliding on the default registry.
func newTestCollector() *metrics.Collector {
	return metrics.NewCollectorWith(prometheus.NewRegistry(), "test")
}

func TestAuditCountsPersistedEntries(t *testing.T) {
	collector := newTestCollector()
	repo := memory.NewAuditRepository()
	svc := NewAuditService(repo, collector, zap.NewNop())

	for i := 0; i < 3; i++ {
		svc.LogAsync(context.Background(), AuditEntry{
			Action:       "approve",
			ResourceType: "patient",
		})
	}
	svc.Shutdown()

	if got := len(repo.Entries()); got != 3 {
		t.Fatalf("persisted entries = %d, want 3", got)
	}
	if got := testutil.ToFloat64(collector.AuditEntriesTotal); got != 3 {
		t.Errorf("AuditEntriesTotal = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.AuditBufferDropped); got != 0 {
		t.Errorf("AuditBufferDropped = %v, want 0", got)
	}
}

type blockingAuditRepo struct {
	release chan struct{}
}

func (r *blockingAuditRepo) Create(ctx context.Context, _ *domain.AuditLog) error {
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return nil
}

func TestAuditCountsDroppedEntries(t *testing.T) {
	collector := newTestCollector()
	repo := &blockingAuditRepo{release: make(chan struct{})}
	svc := NewAuditService(repo, collector, zap.NewNop())

	// The worker blocks on its first entry, so the channel can absorb at
	// most the buffer plus the one in flight. Everything past that drops.
	for i := 0; i < auditBufferSize+2; i++ {
		svc.LogAsync(context.Background(), AuditEntry{Action: "approve"})
	}

	if got := testutil.ToFloat64(collector.AuditBufferDropped); got < 1 {
		t.Errorf("AuditBufferDropped = %v, want at least 1", got)
	}

	close(repo.release)
	svc.Shutdown()
}
