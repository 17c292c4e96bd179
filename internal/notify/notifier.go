// Package notify is the boundary to the surrounding application's SaaS
// collaborators (CRM, e-signature, telephony). The engine never calls those
// APIs itself; it announces status changes here and the application decides
// what to send where.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
)

// Notifier receives funnel status changes. Implementations must not block
// the transition: deliverability is the collaborator's problem, not the
// state machine's.
type Notifier interface {
	StatusChanged(ctx context.Context, p *patient.Patient, from, to patient.Status)
}

// LogNotifier is the default implementation: it records which collaborator
// would be contacted and does nothing else.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) StatusChanged(_ context.Context, p *patient.Patient, from, to patient.Status) {
	fields := []zap.Field{
		zap.String("patient_id", p.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	}

	switch to {
	case patient.StatusApproved:
		n.log.Info("status change: would sync approved patient to CRM", fields...)
	case patient.StatusConsentSent:
		n.log.Info("status change: would request consent e-signature", fields...)
	case patient.StatusScheduledWithCM:
		n.log.Info("status change: would queue telephony appointment reminder", fields...)
	default:
		n.log.Debug("status change", fields...)
	}
}
