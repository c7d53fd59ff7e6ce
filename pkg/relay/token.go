package relay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/segmentio/ksuid"
	"github.com/umodzirx/auth-relay/pkg/exchange"
	"github.com/umodzirx/auth-relay/pkg/idp"
	"github.com/umodzirx/auth-relay/pkg/util"
)

// DefaultTokenTTL bounds how long a minted session token verifies.
const DefaultTokenTTL = 5 * time.Minute

// TokenSkew is the clock skew tolerated when verifying exp and iat.
const TokenSkew = 5 * time.Second

func (s *Server) issueSessionToken(record *exchange.Record, role string) (string, error) {
	now := s.clock()

	token := jwt.New()
	token.Set(jwt.SubjectKey, record.User.ExternalID)
	token.Set("email", record.User.Email)
	token.Set("role", role)
	token.Set(jwt.IssuedAtKey, now.Unix())
	token.Set(jwt.ExpirationKey, now.Add(s.config.TokenTTL).Unix())
	token.Set(jwt.JwtIDKey, ksuid.New().String())

	signed, err := jwt.Sign(token, jwt.WithKey(idp.SigningAlg(s.sigPrK), s.sigPrK))
	if err != nil {
		return "", fmt.Errorf("unable to sign session token: %w", err)
	}

	slog.Debug("Session token issued", "details", util.JWSToText(string(signed)))

	return string(signed), nil
}

// ParseSessionToken verifies a session token against the server JWKS.
// Tokens older than their exp fail beyond the skew tolerance.
func (s *Server) ParseSessionToken(serialized string) (jwt.Token, error) {
	token, err := jwt.ParseString(
		serialized,
		jwt.WithKeySet(s.jwks),
		jwt.WithRequiredClaim("role"),
		jwt.WithRequiredClaim("exp"),
		jwt.WithAcceptableSkew(TokenSkew),
		jwt.WithClock(jwt.ClockFunc(s.clock)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse session token: %w", err)
	}
	return token, nil
}
