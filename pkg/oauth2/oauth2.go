package oauth2

import (
	"fmt"
	"net/url"
)

// ClientAssertionTypeJWTBearer is the assertion type for private-key JWT
// client authentication at the token endpoint.
const ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

type ParameterOption func(params url.Values)

func WithAlternateRedirectURI(redirectUri string) ParameterOption {
	return func(params url.Values) {
		if redirectUri != "" {
			params.Set("redirect_uri", redirectUri)
		}
	}
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
}

type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}
