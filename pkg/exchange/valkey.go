package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

const valkeyKeyPrefix = "exchange:"

// ValkeyStore keeps pending records in Valkey with server-side expiry.
// GETDEL gives the take-once guarantee across replicas.
type ValkeyStore struct {
	valkeyClient valkey.Client
	ttl          time.Duration
}

func NewValkeyStore(valkeyClient valkey.Client, ttl time.Duration) *ValkeyStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ValkeyStore{
		valkeyClient: valkeyClient,
		ttl:          ttl,
	}
}

func (s *ValkeyStore) Put(ctx context.Context, record *Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshalling record: %w", err)
	}

	cmd := s.valkeyClient.B().Set().Key(valkeyKeyPrefix + record.Code).Value(string(data)).Ex(s.ttl).Build()
	if err := s.valkeyClient.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("storing record in Valkey: %w", err)
	}
	return nil
}

func (s *ValkeyStore) TakeOnce(ctx context.Context, code string) (*Record, error) {
	cmd := s.valkeyClient.B().Getdel().Key(valkeyKeyPrefix + code).Build()
	data, err := s.valkeyClient.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("taking record from Valkey: %w", err)
	}

	record := new(Record)
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("unmarshalling record: %w", err)
	}
	return record, nil
}
