package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/umodzirx/auth-relay/pkg/exchange"
	"github.com/umodzirx/auth-relay/pkg/idp"
	"github.com/umodzirx/auth-relay/pkg/roles"
	"github.com/umodzirx/auth-relay/pkg/staffdir"
	"github.com/umodzirx/auth-relay/pkg/util"
)

// StartEndpoint begins a login round trip. The state is server-generated
// and single-use, the callback rejects anything it did not issue.
func (s *Server) StartEndpoint(c echo.Context) error {
	state, err := s.states.Issue()
	if err != nil {
		slog.Error("Unable to issue login state", "error", err)
		return redirectWithError(c, s.config.ErrorURL, ErrorCodeAuthenticationFailed)
	}

	nonce := util.GenerateRandomString(64)
	authURL := s.provider.AuthCodeURL(state, nonce)

	slog.Info("Redirecting to identity provider", "auth_url", authURL)

	return c.Redirect(http.StatusFound, authURL)
}

// LoginEndpoint is the redirect target of the identity provider. It runs
// the full relay leg: state redemption, code exchange, verified userinfo,
// role resolution and exchange code issuance. Every failure collapses to
// the same generic browser redirect.
func (s *Server) LoginEndpoint(c echo.Context) error {
	var code string
	var state string
	binderr := echo.FormFieldBinder(c).
		MustString("code", &code).
		String("state", &state).
		BindError()
	if binderr != nil {
		slog.Error("Login callback rejected", "reason", reasonMissingCode, "error", binderr)
		return redirectWithError(c, s.config.ErrorURL, ErrorCodeAuthenticationFailed)
	}

	if err := s.states.Redeem(state); err != nil {
		slog.Error("Login callback rejected", "reason", reasonUnknownState, "error", err)
		return redirectWithError(c, s.config.ErrorURL, ErrorCodeAuthenticationFailed)
	}

	ctx := c.Request().Context()

	tokenResponse, err := s.provider.Exchange(ctx, code)
	if err != nil {
		slog.Error("Login callback rejected", "reason", reasonTokenExchangeFailed, "error", err)
		return redirectWithError(c, s.config.ErrorURL, ErrorCodeAuthenticationFailed)
	}

	claims, err := s.provider.Userinfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		slog.Error("Login callback rejected", "reason", reasonUserinfoFailed, "error", err)
		return redirectWithError(c, s.config.ErrorURL, ErrorCodeAuthenticationFailed)
	}

	role := s.resolveRole(ctx, claims)

	record := &exchange.Record{
		Code: util.GenerateRandomString(128),
		Role: string(role),
		User: exchange.UserInfo{
			ExternalID: claims.ExternalID,
			Email:      claims.Email,
			Name:       claims.Name,
			Birthdate:  claims.Birthdate,
		},
		CreatedAt: s.clock(),
	}

	if err := s.store.Put(ctx, record); err != nil {
		slog.Error("Login callback rejected", "reason", reasonStoreFailed, "error", err)
		return redirectWithError(c, s.config.ErrorURL, ErrorCodeAuthenticationFailed)
	}

	slog.Info("Login relayed", "sub", claims.Subject, "role", role)

	params := url.Values{}
	params.Set("code", record.Code)
	params.Set("role", record.Role)

	return c.Redirect(http.StatusFound, s.config.FrontendCallbackURL+"?"+params.Encode())
}

func (s *Server) resolveRole(ctx context.Context, claims *idp.Claims) roles.Role {
	entry, err := s.directory.FindByExternalID(ctx, claims.ExternalID)
	if err != nil {
		if !errors.Is(err, staffdir.ErrNotFound) {
			slog.Warn("Staff directory lookup failed", "error", err)
		}
		entry = nil
	}
	return roles.Resolve(claims.Email, entry)
}
