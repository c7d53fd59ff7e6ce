package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/umodzirx/auth-relay/pkg/idp"
	"github.com/umodzirx/auth-relay/pkg/oauth2"
	"github.com/umodzirx/auth-relay/pkg/util"
)

type fakeIDP struct {
	server *httptest.Server
	key    jwk.Key

	lastTokenRequest url.Values
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	key, err := util.RandomJWK()
	if err != nil {
		t.Fatalf("generating provider key: %v", err)
	}
	key.Set(jwk.KeyIDKey, "idp-key-1")
	key.Set(jwk.AlgorithmKey, jwa.ES256)

	f := &fakeIDP{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		publicKey, err := key.PublicKey()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		set := jwk.NewSet()
		set.AddKey(publicKey)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(set)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.lastTokenRequest = r.PostForm

		if r.PostForm.Get("grant_type") != "authorization_code" {
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != "code-1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(oauth2.Error{Code: "invalid_grant", Description: "unknown code"})
			return
		}
		if r.PostForm.Get("client_assertion_type") != oauth2.ClientAssertionTypeJWTBearer {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("client_assertion") == "" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(oauth2.TokenResponse{
			AccessToken: "at-1",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		token := jwt.New()
		token.Set(jwt.IssuerKey, f.server.URL)
		token.Set(jwt.SubjectKey, "sub-1")
		token.Set(jwt.IssuedAtKey, time.Now())
		token.Set("phone_number", "265991234567")
		token.Set("email", "doctor@gmail.com")
		token.Set("name", "Test Doctor")
		token.Set("birthdate", "1990/01/15")
		signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, f.key))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/jwt")
		w.Write(signed)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIDP) config() idp.Config {
	return idp.Config{
		Issuer:                f.server.URL,
		ClientID:              "relay-client",
		RedirectURI:           "https://relay.example/auth/login",
		AuthorizationEndpoint: f.server.URL + "/authorize",
		TokenEndpoint:         f.server.URL + "/token",
		UserinfoEndpoint:      f.server.URL + "/userinfo",
		JwksURI:               f.server.URL + "/jwks",
	}
}

func newTestClient(t *testing.T, provider *fakeIDP) *idp.Client {
	t.Helper()
	signingKey, err := util.RandomJWK()
	if err != nil {
		t.Fatalf("generating client key: %v", err)
	}
	client, err := idp.NewClient(provider.config(), signingKey)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return client
}

func TestAuthCodeURL(t *testing.T) {
	provider := newFakeIDP(t)
	client := newTestClient(t, provider)

	authURL := client.AuthCodeURL("state-1", "nonce-1")

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	if !strings.HasPrefix(authURL, provider.server.URL+"/authorize?") {
		t.Errorf("unexpected authorization endpoint: %s", authURL)
	}
	query := parsed.Query()
	if query.Get("client_id") != "relay-client" {
		t.Errorf("unexpected client_id: %s", query.Get("client_id"))
	}
	if query.Get("response_type") != "code" {
		t.Errorf("unexpected response_type: %s", query.Get("response_type"))
	}
	if query.Get("state") != "state-1" || query.Get("nonce") != "nonce-1" {
		t.Errorf("state/nonce not carried: %s", authURL)
	}
	if query.Get("scope") != "openid profile email" {
		t.Errorf("unexpected scope: %s", query.Get("scope"))
	}
}

func TestExchangeAndUserinfo(t *testing.T) {
	provider := newFakeIDP(t)
	client := newTestClient(t, provider)

	ctx := context.Background()

	tokenResponse, err := client.Exchange(ctx, "code-1")
	if err != nil {
		t.Fatalf("exchanging code: %v", err)
	}
	if tokenResponse.AccessToken != "at-1" {
		t.Errorf("unexpected access token: %s", tokenResponse.AccessToken)
	}
	if provider.lastTokenRequest.Get("redirect_uri") != "https://relay.example/auth/login" {
		t.Errorf("unexpected redirect_uri: %s", provider.lastTokenRequest.Get("redirect_uri"))
	}

	claims, err := client.Userinfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		t.Fatalf("fetching userinfo: %v", err)
	}
	if claims.Subject != "sub-1" {
		t.Errorf("unexpected subject: %s", claims.Subject)
	}
	if claims.ExternalID != "265991234567" {
		t.Errorf("unexpected external id: %s", claims.ExternalID)
	}
	if claims.Email != "doctor@gmail.com" || claims.Name != "Test Doctor" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestExchangeAlternateRedirectURI(t *testing.T) {
	provider := newFakeIDP(t)
	client := newTestClient(t, provider)

	_, err := client.Exchange(context.Background(), "code-1",
		oauth2.WithAlternateRedirectURI("https://relay.example/auth/verify-patient/callback"))
	if err != nil {
		t.Fatalf("exchanging code: %v", err)
	}
	if got := provider.lastTokenRequest.Get("redirect_uri"); got != "https://relay.example/auth/verify-patient/callback" {
		t.Errorf("alternate redirect_uri not applied: %s", got)
	}
}

func TestExchangeProviderError(t *testing.T) {
	provider := newFakeIDP(t)
	client := newTestClient(t, provider)

	_, err := client.Exchange(context.Background(), "wrong-code")
	if err == nil {
		t.Fatal("expected error for unknown code")
	}
	oidcErr, ok := err.(*oauth2.Error)
	if !ok {
		t.Fatalf("expected *oauth2.Error, got %T: %v", err, err)
	}
	if oidcErr.Code != "invalid_grant" {
		t.Errorf("unexpected error code: %s", oidcErr.Code)
	}
}

func TestUserinfoRejectsUnknownSigner(t *testing.T) {
	provider := newFakeIDP(t)
	client := newTestClient(t, provider)

	// swap the provider signing key after the client primed its key cache
	rogue, err := util.RandomJWK()
	if err != nil {
		t.Fatalf("generating rogue key: %v", err)
	}
	rogue.Set(jwk.KeyIDKey, "idp-key-1")
	rogue.Set(jwk.AlgorithmKey, jwa.ES256)
	provider.key = rogue

	if _, err := client.Userinfo(context.Background(), "at-1"); err == nil {
		t.Fatal("expected verification failure for unknown signer")
	}
}
