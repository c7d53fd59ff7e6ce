package webui

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/umodzirx/auth-relay/pkg/relay"
	"github.com/umodzirx/auth-relay/pkg/roles"
)

var (
	//go:embed *.html
	templatesFS embed.FS
)

// SessionLiveness is how long a browser session stays usable after the
// token exchange, independent of the token's own expiry.
const SessionLiveness = 1800 * time.Second

var (
	ErrNoSession     = errors.New("no session")
	ErrSessionStale  = errors.New("session stale")
	ErrRoleForbidden = errors.New("role not allowed on this route")
)

type SessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
}

// Session is what the browser holds after a completed login. The token is
// opaque to the frontend beyond carrying it along, freshness is tracked
// via ReceivedAt. One cookie per role, so a doctor and an admin session
// can coexist in separate tabs.
type Session struct {
	Token      string      `json:"token"`
	User       SessionUser `json:"user"`
	Role       string      `json:"role"`
	ReceivedAt time.Time   `json:"receivedAt"`
}

var roleDashboards = map[roles.Role]string{
	roles.Admin:      "/admin-dashboard",
	roles.Doctor:     "/doctor-dashboard",
	roles.Pharmacist: "/pharmacist-dashboard",
	roles.Patient:    "/patient-dashboard",
}

var routeRoles = map[string][]roles.Role{
	"/admin-dashboard":      {roles.Admin},
	"/doctor-dashboard":     {roles.Doctor},
	"/pharmacist-dashboard": {roles.Pharmacist},
	"/patient-dashboard":    {roles.Patient},
}

// GuardRoute decides whether a session may render a protected route.
func GuardRoute(path string, session *Session, now time.Time) error {
	if session == nil || session.Token == "" {
		return ErrNoSession
	}
	if now.Sub(session.ReceivedAt) > SessionLiveness {
		return ErrSessionStale
	}

	allowed, ok := routeRoles[path]
	if !ok {
		return fmt.Errorf("unknown protected route: %s", path)
	}
	for _, role := range allowed {
		if session.Role == string(role) {
			return nil
		}
	}
	return ErrRoleForbidden
}

func sessionCookieName(role string) string {
	return "session_" + role
}

func readSession(c echo.Context, role string) (*Session, error) {
	cookie, err := c.Cookie(sessionCookieName(role))
	if err != nil {
		return nil, ErrNoSession
	}

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("unable to decode session cookie: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unable to unmarshal session cookie: %w", err)
	}

	return &session, nil
}

func writeSession(c echo.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("unable to marshal session: %w", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName(session.Role),
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   int(SessionLiveness.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearSession(c echo.Context, role string) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName(role),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func MountRoutes(g *echo.Group, rs *relay.Server) {
	g.Use(relay.ErrorLogMiddleware)
	g.GET("/login", login())
	g.GET("/callback", callback(rs))
	g.GET("/error", showError())
	g.GET("/session-expired", sessionExpired())
	g.GET("/logout", logout())
	for path, allowed := range routeRoles {
		g.GET(path, dashboard(path, allowed))
	}
}

func login() echo.HandlerFunc {
	template := template.Must(template.ParseFS(templatesFS, "login.html", "layout.html"))

	return func(c echo.Context) error {
		return template.Execute(c.Response().Writer, map[string]interface{}{
			"startURL": "/auth/start",
		})
	}
}

// callback is the browser-facing second leg. It consumes the exchange
// code server-side and hands the browser a role session cookie instead of
// exposing the token in a JSON response.
func callback(rs *relay.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var code string
		var role string
		binderr := echo.QueryParamsBinder(c).
			MustString("code", &code).
			MustString("role", &role).
			BindError()
		if binderr != nil {
			slog.Warn("Callback rejected", "error", binderr)
			return c.Redirect(http.StatusFound, "/web/error?error=authentication_failed")
		}

		grant, err := rs.ExchangeCode(c.Request().Context(), code, role)
		if err != nil {
			slog.Warn("Callback exchange rejected", "error", err)
			return c.Redirect(http.StatusFound, "/web/error?error=authentication_failed")
		}

		session := &Session{
			Token: grant.Token,
			User: SessionUser{
				ID:       grant.User.ExternalID,
				Email:    grant.User.Email,
				Name:     grant.User.Name,
				Birthday: grant.User.Birthdate,
			},
			Role:       grant.Role,
			ReceivedAt: time.Now(),
		}
		if err := writeSession(c, session); err != nil {
			slog.Error("Unable to write session cookie", "error", err)
			return c.Redirect(http.StatusFound, "/web/error?error=authentication_failed")
		}

		slog.Info("Session established", "role", grant.Role)

		return c.Redirect(http.StatusFound, "/web"+roleDashboards[roles.Role(grant.Role)])
	}
}

func dashboard(path string, allowed []roles.Role) echo.HandlerFunc {
	template := template.Must(template.ParseFS(templatesFS, "dashboard.html", "layout.html"))

	return func(c echo.Context) error {
		var session *Session
		for _, role := range allowed {
			if s, err := readSession(c, string(role)); err == nil {
				session = s
				break
			}
		}

		err := GuardRoute(path, session, time.Now())
		switch {
		case err == nil:
		case errors.Is(err, ErrNoSession), errors.Is(err, ErrSessionStale):
			params := url.Values{}
			params.Set("return", "/web"+path)
			return c.Redirect(http.StatusFound, "/web/session-expired?"+params.Encode())
		case errors.Is(err, ErrRoleForbidden):
			return c.Redirect(http.StatusFound, "/web/error?error=access_denied")
		default:
			return err
		}

		return template.Execute(c.Response().Writer, map[string]interface{}{
			"session": session,
			"path":    path,
		})
	}
}

func showError() echo.HandlerFunc {
	template := template.Must(template.ParseFS(templatesFS, "error.html", "layout.html"))

	return func(c echo.Context) error {
		return template.Execute(c.Response().Writer, map[string]interface{}{
			"error": c.QueryParam("error"),
		})
	}
}

func sessionExpired() echo.HandlerFunc {
	template := template.Must(template.ParseFS(templatesFS, "session-expired.html", "layout.html"))

	return func(c echo.Context) error {
		return template.Execute(c.Response().Writer, map[string]interface{}{
			"return": c.QueryParam("return"),
		})
	}
}

func logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		role := c.QueryParam("role")
		if roles.IsCanonical(role) {
			clearSession(c, role)
		}
		return c.Redirect(http.StatusFound, "/web/login")
	}
}
