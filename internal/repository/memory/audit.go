package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/iterahealth/activation-engine/internal/domain"
)

// AuditRepository keeps the audit trail in memory. It is append-only; the
// reference deployment inspects it through logs rather than an API.
type AuditRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

// Entries returns a snapshot of the recorded trail, oldest first.
func (r *AuditRepository) Entries() []*domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}
