package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/umodzirx/auth-relay/pkg/exchange"
	"github.com/umodzirx/auth-relay/pkg/relay"
)

func TestSessionTokenLifetime(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	store := exchange.NewMemoryStore(5 * time.Minute)

	rs, err := relay.NewServer(
		&relay.Config{TokenTTL: 5 * time.Minute},
		relay.WithRandomSigningKey(),
		relay.WithExchangeStore(store),
		relay.WithClock(clock),
	)
	if err != nil {
		t.Fatalf("creating relay server: %v", err)
	}

	ctx := context.Background()
	record := &exchange.Record{
		Code:      "token-test-code",
		Role:      "doctor",
		User:      exchange.UserInfo{ExternalID: "265990000001", Email: "doctor@gmail.com"},
		CreatedAt: now,
	}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("putting record: %v", err)
	}

	grant, err := rs.ExchangeCode(ctx, "token-test-code", "doctor")
	if err != nil {
		t.Fatalf("exchanging code: %v", err)
	}

	token, err := rs.ParseSessionToken(grant.Token)
	if err != nil {
		t.Fatalf("expected fresh token to verify: %v", err)
	}
	if role, _ := token.Get("role"); role != "doctor" {
		t.Errorf("unexpected role claim: %v", role)
	}
	if token.Subject() != "265990000001" {
		t.Errorf("unexpected subject: %s", token.Subject())
	}

	// still inside the lifetime
	now = now.Add(4 * time.Minute)
	if _, err := rs.ParseSessionToken(grant.Token); err != nil {
		t.Fatalf("expected token to verify before expiry: %v", err)
	}

	// beyond expiry plus skew
	now = now.Add(time.Minute + 10*time.Second)
	if _, err := rs.ParseSessionToken(grant.Token); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestExchangeCodeSentinels(t *testing.T) {
	store := exchange.NewMemoryStore(5 * time.Minute)

	rs, err := relay.NewServer(nil,
		relay.WithRandomSigningKey(),
		relay.WithExchangeStore(store),
	)
	if err != nil {
		t.Fatalf("creating relay server: %v", err)
	}

	ctx := context.Background()

	if _, err := rs.ExchangeCode(ctx, "", "doctor"); err != relay.ErrInvalidExchangeCode {
		t.Fatalf("expected ErrInvalidExchangeCode for empty code, got %v", err)
	}
	if _, err := rs.ExchangeCode(ctx, "missing", "doctor"); err != relay.ErrInvalidExchangeCode {
		t.Fatalf("expected ErrInvalidExchangeCode for unknown code, got %v", err)
	}

	if err := store.Put(ctx, &exchange.Record{Code: "role-check"}); err != nil {
		t.Fatalf("putting record: %v", err)
	}
	if _, err := rs.ExchangeCode(ctx, "role-check", ""); err != relay.ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole for empty role, got %v", err)
	}

	// the record was consumed by the failed attempt
	if _, err := rs.ExchangeCode(ctx, "role-check", "doctor"); err != relay.ErrInvalidExchangeCode {
		t.Fatalf("expected record to be consumed, got %v", err)
	}
}
