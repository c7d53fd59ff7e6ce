package relay

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/umodzirx/auth-relay/pkg/exchange"
	"github.com/umodzirx/auth-relay/pkg/idp"
	"github.com/umodzirx/auth-relay/pkg/staffdir"
	"github.com/umodzirx/auth-relay/pkg/states"
)

// Server relays logins between the national identity provider and the
// application frontend.
type Server struct {
	provider  *idp.Client
	store     exchange.Store
	directory staffdir.Directory
	states    states.Service
	config    *Config
	sigPrK    jwk.Key
	jwks      jwk.Set
	clock     func() time.Time
}

type Option func(*Server) error

func NewServer(config *Config, opts ...Option) (*Server, error) {
	if config == nil {
		config = &Config{}
	}
	if config.CodeTTL <= 0 {
		config.CodeTTL = exchange.DefaultTTL
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}

	s := &Server{
		config: config,
		clock:  time.Now,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.sigPrK == nil {
		return nil, errors.New("no session signing key configured")
	}
	if s.store == nil {
		s.store = exchange.NewMemoryStore(config.CodeTTL)
	}
	if s.directory == nil {
		slog.Warn("No staff directory configured, using empty mock directory")
		s.directory = staffdir.NewMockDirectory()
	}
	if s.states == nil {
		stateService, err := states.NewService()
		if err != nil {
			return nil, err
		}
		s.states = stateService
	}

	return s, nil
}

func ErrorLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			slog.Error("Error", "error", err, "path", c.Path(), "remote_addr", c.RealIP())
		}
		return err
	}
}

func (s *Server) MountRoutes(group *echo.Group) {
	group.Use(ErrorLogMiddleware)
	group.GET("/start", s.StartEndpoint)
	group.GET("/login", s.LoginEndpoint)
	group.POST("/exchange", s.ExchangeEndpoint)
	group.GET("/jwks", s.JWKSEndpoint)
	group.GET("/verify-patient", s.PatientVerifyStartEndpoint)
	group.GET("/verify-patient/callback", s.PatientVerifyCallbackEndpoint)
}

func (s *Server) JWKSEndpoint(c echo.Context) error {
	return c.JSON(http.StatusOK, s.jwks)
}

func redirectWithError(c echo.Context, redirectUri string, errorCode string) error {
	params := url.Values{}
	params.Add("error", errorCode)

	return c.Redirect(http.StatusFound, redirectUri+"?"+params.Encode())
}
