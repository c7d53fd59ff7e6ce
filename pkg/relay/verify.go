package relay

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/umodzirx/auth-relay/pkg/oauth2"
	"github.com/umodzirx/auth-relay/pkg/util"
)

// verifiedPatient is transient, display-only context for an already
// authenticated staff member, not a new principal.
type verifiedPatient struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
}

// PatientVerifyStartEndpoint begins the single-shot verification round
// trip a staff member triggers mid-session.
func (s *Server) PatientVerifyStartEndpoint(c echo.Context) error {
	state, err := s.states.Issue()
	if err != nil {
		slog.Error("Unable to issue verification state", "error", err)
		return redirectWithError(c, s.config.PatientVerify.DashboardURL, ErrorCodeAuthenticationFailed)
	}

	nonce := util.GenerateRandomString(64)
	authURL := s.provider.AuthCodeURL(state, nonce,
		oauth2.WithAlternateRedirectURI(s.config.PatientVerify.RedirectURI))

	return c.Redirect(http.StatusFound, authURL)
}

// PatientVerifyCallbackEndpoint collapses the two-stage protocol: the
// verified identity goes straight back to the staff dashboard in the
// redirect query, no exchange code and no second leg.
func (s *Server) PatientVerifyCallbackEndpoint(c echo.Context) error {
	dashboardURL := s.config.PatientVerify.DashboardURL

	var code string
	var state string
	binderr := echo.FormFieldBinder(c).
		MustString("code", &code).
		String("state", &state).
		BindError()
	if binderr != nil {
		slog.Error("Verification callback rejected", "reason", reasonMissingCode, "error", binderr)
		return redirectWithError(c, dashboardURL, ErrorCodeAuthenticationFailed)
	}

	if err := s.states.Redeem(state); err != nil {
		slog.Error("Verification callback rejected", "reason", reasonUnknownState, "error", err)
		return redirectWithError(c, dashboardURL, ErrorCodeAuthenticationFailed)
	}

	ctx := c.Request().Context()

	tokenResponse, err := s.provider.Exchange(ctx, code,
		oauth2.WithAlternateRedirectURI(s.config.PatientVerify.RedirectURI))
	if err != nil {
		slog.Error("Verification callback rejected", "reason", reasonTokenExchangeFailed, "error", err)
		return redirectWithError(c, dashboardURL, ErrorCodeAuthenticationFailed)
	}

	claims, err := s.provider.Userinfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		slog.Error("Verification callback rejected", "reason", reasonUserinfoFailed, "error", err)
		return redirectWithError(c, dashboardURL, ErrorCodeAuthenticationFailed)
	}

	patient := verifiedPatient{
		ID:       claims.ExternalID,
		Name:     claims.Name,
		Birthday: claims.Birthdate,
	}

	data, err := json.Marshal(patient)
	if err != nil {
		slog.Error("Unable to encode verified patient", "error", err)
		return redirectWithError(c, dashboardURL, ErrorCodeAuthenticationFailed)
	}

	slog.Info("Patient verified", "sub", claims.Subject)

	params := url.Values{}
	params.Set("patient", base64.StdEncoding.EncodeToString(data))

	return c.Redirect(http.StatusFound, dashboardURL+"?"+params.Encode())
}
