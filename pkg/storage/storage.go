package storage

import (
	"context"
	"time"

	"github.com/rhuss/modelapi/pkg/api"
)

// Call outcomes recorded in CallRecord.Status.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// CallRecord is one audited generate attempt.
type CallRecord struct {
	Call          *api.ModelCall
	Provider      string
	Model         string
	ConnectionKey string
	Status        string
	// Error holds the failure text for StatusError records.
	Error string
	Usage *api.ModelUsage
}

// ID returns the id of the underlying ModelCall.
func (r *CallRecord) ID() string {
	if r.Call == nil {
		return ""
	}
	return r.Call.ID()
}

// ListOptions filters and pages ListCalls results. Results are ordered
// newest first.
type ListOptions struct {
	Provider string
	Model    string
	Status   string
	Since    time.Time
	// After is a call id cursor: only calls older than it are returned.
	After string
	Limit int
}

// DefaultListLimit and MaxListLimit bound ListOptions.Limit.
const (
	DefaultListLimit = 20
	MaxListLimit     = 1000
)

// EffectiveLimit clamps Limit to [1, MaxListLimit].
func (o ListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	}
	return o.Limit
}

// CallStore persists ModelCall audit records. Implementations must be
// safe for concurrent use. Records are scoped by the tenant in the
// context (see WithTenant) when one is present.
type CallStore interface {
	SaveCall(ctx context.Context, rec *CallRecord) error
	GetCall(ctx context.Context, id string) (*CallRecord, error)
	ListCalls(ctx context.Context, opts ListOptions) ([]*CallRecord, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
