package idp

import (
	"fmt"
	"os"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/segmentio/ksuid"
)

// AssertionLifetime limits how long a client assertion is accepted by the
// token endpoint.
const AssertionLifetime = 300 * time.Second

// AssertionSigner mints the private-key JWTs which authenticate this
// relying party at the token endpoint. No shared secret is transmitted.
type AssertionSigner struct {
	clientID string
	audience string
	key      jwk.Key

	now   func() time.Time
	newID func() string
}

func NewAssertionSigner(clientID, audience string, key jwk.Key) (*AssertionSigner, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("audience is required")
	}
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}

	return &AssertionSigner{
		clientID: clientID,
		audience: audience,
		key:      key,
		now:      time.Now,
		newID:    func() string { return ksuid.New().String() },
	}, nil
}

// Sign produces a compact JWS with iss and sub set to the client ID, aud
// set to the token endpoint URL and a fresh jti. Each call mints a new
// single-use assertion.
func (s *AssertionSigner) Sign() (string, error) {
	now := s.now()

	assertion := jwt.New()
	assertion.Set(jwt.IssuerKey, s.clientID)
	assertion.Set(jwt.SubjectKey, s.clientID)
	assertion.Set(jwt.AudienceKey, s.audience)
	assertion.Set(jwt.JwtIDKey, s.newID())
	assertion.Set(jwt.IssuedAtKey, now.Unix())
	assertion.Set(jwt.ExpirationKey, now.Add(AssertionLifetime).Unix())

	signed, err := jwt.Sign(assertion, jwt.WithKey(SigningAlg(s.key), s.key))
	if err != nil {
		return "", fmt.Errorf("unable to sign client assertion: %w", err)
	}

	return string(signed), nil
}

// SigningAlg picks the JWS algorithm matching the key type. Registered
// relying party keys are RSA, mock keys are EC.
func SigningAlg(key jwk.Key) jwa.SignatureAlgorithm {
	if key.KeyType() == jwa.RSA {
		return jwa.RS256
	}
	return jwa.ES256
}

// LoadSigningKey reads a private JWK from disk. The relay must not start
// without a usable signing key, so callers treat errors as fatal.
func LoadSigningKey(path string) (jwk.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read key file: %w", err)
	}
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse key file: %w", err)
	}
	return key, nil
}
