package staffdir

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("staff directory entry not found")

// Entry is a provisioned non-patient account. A non-empty Role overrides
// any identity-derived role claim.
type Entry struct {
	ExternalID string
	Name       string
	Role       string
	Status     string
}

type Directory interface {
	FindByExternalID(ctx context.Context, externalID string) (*Entry, error)
}
