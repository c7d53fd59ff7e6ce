package exchange

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the lifetime of a pending record. Records older than the
// TTL are treated as not found even when still present.
const DefaultTTL = 5 * time.Minute

var ErrNotFound = errors.New("exchange code not found")

// UserInfo is the identity snapshot carried from the redirect-handling leg
// to the exchange API leg.
type UserInfo struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Birthdate  string `json:"birthdate"`
}

// Record is the pending, single-use handoff keyed by exchange code.
type Record struct {
	Code      string    `json:"code"`
	Role      string    `json:"role"`
	User      UserInfo  `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, record *Record) error
	// TakeOnce removes and returns the record stored under code. Exactly
	// one of any number of callers racing on the same code succeeds, all
	// others get ErrNotFound.
	TakeOnce(ctx context.Context, code string) (*Record, error)
}
