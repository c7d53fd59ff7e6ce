package states

import (
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/nonceutil"
)

// Service issues and redeems the single-use state values binding a login
// round trip to this server. A state redeems at most once.
type Service interface {
	Issue() (string, error)
	Redeem(state string) error
}

type hashicorpService struct {
	nonceService nonceutil.NonceService
}

func NewService() (Service, error) {
	nonceService := nonceutil.NewNonceService()
	err := nonceService.Initialize()
	if err != nil {
		return nil, fmt.Errorf("could not initialize state service: %w", err)
	}
	return &hashicorpService{nonceService}, nil
}

func (s *hashicorpService) Issue() (string, error) {
	state, _, err := s.nonceService.Get()
	if err != nil {
		return "", err
	}
	return state, nil
}

func (s *hashicorpService) Redeem(state string) error {
	ok := s.nonceService.Redeem(state)
	if !ok {
		return fmt.Errorf("state not found")
	}
	return nil
}
