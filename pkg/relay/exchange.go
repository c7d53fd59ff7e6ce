package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/umodzirx/auth-relay/pkg/exchange"
	"github.com/umodzirx/auth-relay/pkg/roles"
)

type exchangeRequest struct {
	Code string `json:"code" form:"code" validate:"required"`
	Role string `json:"role" form:"role" validate:"required"`
}

type exchangeUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
}

type exchangeResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    exchangeUser `json:"user"`
	Role    string       `json:"role"`
}

// SessionGrant is the outcome of a successful exchange.
type SessionGrant struct {
	Token string
	User  exchange.UserInfo
	Role  string
}

// ExchangeCode consumes the pending record exactly once and mints the
// session token for the confirmed role. The record is destroyed before
// the role check, replaying the code always fails.
func (s *Server) ExchangeCode(ctx context.Context, code, role string) (*SessionGrant, error) {
	if code == "" {
		return nil, ErrInvalidExchangeCode
	}

	record, err := s.store.TakeOnce(ctx, code)
	if err != nil {
		if !errors.Is(err, exchange.ErrNotFound) {
			slog.Error("Exchange store failure", "error", err)
		}
		return nil, ErrInvalidExchangeCode
	}

	if !roles.IsCanonical(role) {
		return nil, ErrInvalidRole
	}

	token, err := s.issueSessionToken(record, role)
	if err != nil {
		return nil, fmt.Errorf("unable to issue session token: %w", err)
	}

	return &SessionGrant{
		Token: token,
		User:  record.User,
		Role:  role,
	}, nil
}

// ExchangeEndpoint is the second leg consumed by the frontend after the
// browser returns from the relay with an exchange code.
func (s *Server) ExchangeEndpoint(c echo.Context) error {
	var req exchangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidCode})
	}

	grant, err := s.ExchangeCode(c.Request().Context(), req.Code, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidExchangeCode):
			slog.Warn("Exchange rejected", "error", err)
			return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidCode})
		case errors.Is(err, ErrInvalidRole):
			slog.Warn("Exchange rejected", "error", err, "role", req.Role)
			return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidRole})
		default:
			slog.Error("Exchange failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "token issuance failed")
		}
	}

	return c.JSON(http.StatusOK, exchangeResponse{
		Success: true,
		Token:   grant.Token,
		User: exchangeUser{
			ID:       grant.User.ExternalID,
			Email:    grant.User.Email,
			Name:     grant.User.Name,
			Birthday: grant.User.Birthdate,
		},
		Role: grant.Role,
	})
}
