package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/umodzirx/auth-relay/pkg/oauth2"
	"github.com/umodzirx/auth-relay/pkg/util"
)

// Timeout of outbound calls to the identity provider. Authorization codes
// are single-use upstream, so failed exchanges are not retried.
const RequestTimeout = 10 * time.Second

// Claims extracted from the verified userinfo response. The phone number
// doubles as the external identity used for staff directory lookups.
type Claims struct {
	Subject    string `json:"sub"`
	ExternalID string `json:"phone_number"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Birthdate  string `json:"birthdate"`
}

type Client struct {
	config     Config
	metadata   *Metadata
	signer     *AssertionSigner
	keyCache   *jwk.Cache
	httpClient *http.Client
}

// NewClient resolves the provider metadata, prepares the assertion signer
// and primes the auto-refreshing provider key cache. The key cache is
// required: userinfo responses are only accepted with a verified signature.
func NewClient(config Config, signingKey jwk.Key) (*Client, error) {
	if config.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if config.RedirectURI == "" {
		return nil, fmt.Errorf("redirect URI is required")
	}
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"openid", "profile", "email"}
	}

	metadata := config.metadata()

	signer, err := NewAssertionSigner(config.ClientID, metadata.TokenEndpoint, signingKey)
	if err != nil {
		return nil, err
	}

	keyCache := jwk.NewCache(context.Background())
	keyCache.Register(metadata.JwksURI, jwk.WithMinRefreshInterval(15*time.Minute))
	_, err = keyCache.Refresh(context.Background(), metadata.JwksURI)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider signing keys: %w", err)
	}

	return &Client{
		config:     config,
		metadata:   metadata,
		signer:     signer,
		keyCache:   keyCache,
		httpClient: &http.Client{Timeout: RequestTimeout},
	}, nil
}

func (c *Client) Issuer() string {
	return c.metadata.Issuer
}

func (c *Client) ClientID() string {
	return c.config.ClientID
}

func (c *Client) Metadata() *Metadata {
	return c.metadata
}

func (c *Client) AuthCodeURL(state, nonce string, opts ...oauth2.ParameterOption) string {
	query := url.Values{}
	query.Add("client_id", c.config.ClientID)
	query.Add("redirect_uri", c.config.RedirectURI)
	query.Add("response_type", "code")
	query.Add("scope", strings.Join(c.config.Scopes, " "))
	query.Add("state", state)
	query.Add("nonce", nonce)

	for _, opt := range opts {
		opt(query)
	}

	return fmt.Sprintf("%s?%s", c.metadata.AuthorizationEndpoint, query.Encode())
}

// Exchange swaps the authorization code for tokens, authenticating with a
// freshly minted client assertion.
func (c *Client) Exchange(ctx context.Context, code string, opts ...oauth2.ParameterOption) (*oauth2.TokenResponse, error) {
	assertion, err := c.signer.Sign()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("client_id", c.config.ClientID)
	params.Set("client_assertion_type", oauth2.ClientAssertionTypeJWTBearer)
	params.Set("client_assertion", assertion)
	params.Set("redirect_uri", c.config.RedirectURI)

	for _, opt := range opts {
		opt(params)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.metadata.TokenEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("unable to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange code for token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oidcErr oauth2.Error
		if err := json.Unmarshal(body, &oidcErr); err != nil || oidcErr.Code == "" {
			return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
		}
		return nil, &oidcErr
	}

	var tokenResponse oauth2.TokenResponse
	err = json.Unmarshal(body, &tokenResponse)
	if err != nil {
		return nil, fmt.Errorf("unable to decode token response: %w", err)
	}

	if tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("no access token in response")
	}

	return &tokenResponse, nil
}

// Userinfo fetches the identity claims for the access token. The response
// body is a JWS and is verified against the provider key set before any
// claim is trusted.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (*Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metadata.UserinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read userinfo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	keySet, err := c.keyCache.Get(ctx, c.metadata.JwksURI)
	if err != nil {
		return nil, fmt.Errorf("unable to get provider key set: %w", err)
	}

	token, err := jwt.ParseString(
		strings.TrimSpace(string(body)),
		jwt.WithKeySet(keySet),
		jwt.WithIssuer(c.metadata.Issuer),
		jwt.WithRequiredClaim("sub"),
		jwt.WithAcceptableSkew(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to verify userinfo response: %w", err)
	}

	claimsMap, err := token.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to read userinfo claims: %w", err)
	}

	claims, err := util.AnyToStruct[Claims](claimsMap)
	if err != nil {
		return nil, fmt.Errorf("unable to map userinfo claims: %w", err)
	}

	slog.Debug("Userinfo claims verified", "sub", claims.Subject)

	return claims, nil
}
