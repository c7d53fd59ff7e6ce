package idp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Endpoint paths of an esignet deployment, used when the provider does
// not publish a discovery document.
const (
	DefaultAuthorizePath = "/authorize"
	DefaultTokenPath     = "/v1/esignet/oauth/v2/token"
	DefaultUserinfoPath  = "/v1/esignet/oidc/userinfo"
	DefaultJwksPath      = "/v1/esignet/oauth/.well-known/jwks.json"
)

// Config of the identity provider client. Endpoint fields override the
// discovery document when set, which also allows running against
// deployments without one.
type Config struct {
	Issuer                string   `yaml:"issuer"`
	ClientID              string   `yaml:"client-id"`
	RedirectURI           string   `yaml:"redirect-uri"`
	Scopes                []string `yaml:"scopes"`
	AuthorizationEndpoint string   `yaml:"authorization-endpoint"`
	TokenEndpoint         string   `yaml:"token-endpoint"`
	UserinfoEndpoint      string   `yaml:"userinfo-endpoint"`
	JwksURI               string   `yaml:"jwks-uri"`
}

// OpenID Connect metadata of the identity provider.
type Metadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	IdTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

func FetchMetadata(issuer string) (*Metadata, error) {
	url := issuer + "/.well-known/openid-configuration"
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("unable to get discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to get discovery document: status %d", resp.StatusCode)
	}

	var metadata Metadata
	err = json.NewDecoder(resp.Body).Decode(&metadata)
	if err != nil {
		return nil, fmt.Errorf("unable to decode discovery document: %w", err)
	}

	return &metadata, nil
}

func (c Config) metadata() *Metadata {
	metadata := &Metadata{
		Issuer:                c.Issuer,
		AuthorizationEndpoint: c.AuthorizationEndpoint,
		TokenEndpoint:         c.TokenEndpoint,
		UserinfoEndpoint:      c.UserinfoEndpoint,
		JwksURI:               c.JwksURI,
	}

	if metadata.complete() {
		return metadata
	}

	fetched, err := FetchMetadata(c.Issuer)
	if err != nil {
		slog.Warn("No discovery document, falling back to esignet default paths", "issuer", c.Issuer, "error", err)
		fetched = &Metadata{
			Issuer:                c.Issuer,
			AuthorizationEndpoint: c.Issuer + DefaultAuthorizePath,
			TokenEndpoint:         c.Issuer + DefaultTokenPath,
			UserinfoEndpoint:      c.Issuer + DefaultUserinfoPath,
			JwksURI:               c.Issuer + DefaultJwksPath,
		}
	}

	if metadata.AuthorizationEndpoint == "" {
		metadata.AuthorizationEndpoint = fetched.AuthorizationEndpoint
	}
	if metadata.TokenEndpoint == "" {
		metadata.TokenEndpoint = fetched.TokenEndpoint
	}
	if metadata.UserinfoEndpoint == "" {
		metadata.UserinfoEndpoint = fetched.UserinfoEndpoint
	}
	if metadata.JwksURI == "" {
		metadata.JwksURI = fetched.JwksURI
	}

	return metadata
}

func (m *Metadata) complete() bool {
	return m.AuthorizationEndpoint != "" && m.TokenEndpoint != "" && m.UserinfoEndpoint != "" && m.JwksURI != ""
}
