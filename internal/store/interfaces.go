package store

import (
	"context"
	"errors"
	"time"

	"kwik.app/dispatch/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// CallStore persists emergency call records.
type CallStore interface {
	// Save inserts the call or replaces the stored record with the same ID.
	// created_at of an existing record is kept.
	Save(ctx context.Context, call *model.EmergencyCall) error
	GetByID(ctx context.Context, id string) (*model.EmergencyCall, error)
	// List returns up to limit calls, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]model.EmergencyCall, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, callStatus model.CallStatus, at time.Time) (*model.EmergencyCall, error)
}
