package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrSlotTaken is the booking race loser's answer: another patient
	// committed the same care-manager slot between check and commit.
	ErrSlotTaken = errors.New("slot is already booked for this care manager")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Changes      string
}
