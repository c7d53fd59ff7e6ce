package relay

import (
	"context"
	"crypto"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/umodzirx/auth-relay/pkg/exchange"
	"github.com/umodzirx/auth-relay/pkg/idp"
	"github.com/umodzirx/auth-relay/pkg/staffdir"
	"github.com/umodzirx/auth-relay/pkg/states"
	"github.com/umodzirx/auth-relay/pkg/util"
	"github.com/valkey-io/valkey-go"
)

type ErrorTolerance bool

const (
	UseMockIfNotAvailable ErrorTolerance = true
	FailIfNotAvailable    ErrorTolerance = false
)

func WithIdentityProvider(provider *idp.Client) Option {
	return func(s *Server) error {
		s.provider = provider
		slog.Info("Using identity provider", "issuer", provider.Issuer(), "client_id", provider.ClientID())
		return nil
	}
}

func WithExchangeStore(store exchange.Store) Option {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

func WithValkeyExchangeStore(addr string) Option {
	return func(s *Server) error {
		valkeyClient, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{addr},
		})
		if err != nil {
			return fmt.Errorf("unable to connect to Valkey: %w", err)
		}
		s.store = exchange.NewValkeyStore(valkeyClient, s.config.CodeTTL)
		slog.Info("Using Valkey exchange store", "addr", addr)
		return nil
	}
}

func WithDirectory(directory staffdir.Directory) Option {
	return func(s *Server) error {
		s.directory = directory
		return nil
	}
}

func WithPostgresDirectory(dsn string) Option {
	return func(s *Server) error {
		directory, err := staffdir.NewPostgresDirectory(context.Background(), dsn)
		if err != nil {
			return err
		}
		if err := directory.EnsureSchema(context.Background()); err != nil {
			return err
		}
		s.directory = directory
		slog.Info("Using Postgres staff directory")
		return nil
	}
}

func WithStateService(stateService states.Service) Option {
	return func(s *Server) error {
		s.states = stateService
		return nil
	}
}

// WithClock overrides the server time source, used in tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) error {
		s.clock = clock
		return nil
	}
}

func WithSigningKey(sigPrK jwk.Key) Option {
	return func(s *Server) error {
		if sigPrK.KeyID() == "" {
			thumbprint, err := sigPrK.Thumbprint(crypto.SHA256)
			if err != nil {
				return fmt.Errorf("unable to compute key thumbprint: %w", err)
			}
			sigPrK.Set(jwk.KeyIDKey, base64.RawURLEncoding.EncodeToString(thumbprint))
		}
		sigPrK.Set(jwk.AlgorithmKey, idp.SigningAlg(sigPrK))

		sigPuK, err := sigPrK.PublicKey()
		if err != nil {
			return fmt.Errorf("unable to derive public key: %w", err)
		}

		jwks := jwk.NewSet()
		jwks.AddKey(sigPuK)

		s.sigPrK = sigPrK
		s.jwks = jwks
		return nil
	}
}

func WithSigningKeyFromJWK(path string, tolerance ErrorTolerance) Option {
	return func(s *Server) error {
		data, err := os.ReadFile(path)
		if err != nil {
			if tolerance == UseMockIfNotAvailable {
				slog.Warn("Failed to read key file", "path", path, "error", err)
				return WithRandomSigningKey()(s)
			} else {
				return fmt.Errorf("unable to read key file: %w", err)
			}
		}
		privateKey, err := jwk.ParseKey(data)
		if err != nil {
			if tolerance == UseMockIfNotAvailable {
				slog.Warn("Failed to parse key file", "path", path, "error", err)
				return WithRandomSigningKey()(s)
			} else {
				return fmt.Errorf("unable to parse key file: %w", err)
			}
		}
		return WithSigningKey(privateKey)(s)
	}
}

func WithRandomSigningKey() Option {
	return func(s *Server) error {
		sigPrK, err := util.RandomJWK()
		if err != nil {
			return fmt.Errorf("unable to generate keys: %w", err)
		}
		sigPrK.Set(jwk.KeyUsageKey, "sig")

		slog.Debug("Generated random session signing key")

		return WithSigningKey(sigPrK)(s)
	}
}
