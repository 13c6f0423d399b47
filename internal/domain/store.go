package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// DeploymentStore persists deployment run history.
type DeploymentStore interface {
	Create(ctx context.Context, d Deployment) error
	GetByID(ctx context.Context, id string) (Deployment, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Deployment, error)
	ListByAddress(ctx context.Context, contractAddress string) ([]Deployment, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
