// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parent-portal/internal/common/errors"
	apphttp "parent-portal/internal/common/http"
	"parent-portal/internal/models"
)

// KeycloakClient signs parents in through Keycloak's OpenID Connect endpoints.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *apphttp.Client
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, httpClient *apphttp.Client) *KeycloakClient {
	if httpClient == nil {
		httpClient = apphttp.NewClient(30 * time.Second)
	}
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}
}

func (k *KeycloakClient) endpoint(name string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/%s", k.baseURL, k.realm, name)
}

// Login exchanges a parent's email and password for tokens (password grant).
func (k *KeycloakClient) Login(ctx context.Context, username, password string) (*models.TokenSet, error) {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)
	data.Set("scope", "openid")

	status, oauthErr, tokens, err := k.tokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("keycloak rejected credentials for %s: %s", username, oauthErr))
	}
	if status != http.StatusOK {
		return nil, k.apiError("login", status)
	}
	return tokens, nil
}

// Refresh trades a refresh token for a new token set. A rejected refresh
// token means the session is over.
func (k *KeycloakClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error) {
	if refreshToken == "" {
		return nil, errors.NewSessionExpiredError("no refresh token")
	}
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	status, oauthErr, tokens, err := k.tokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || apphttp.IsAuthFailure(status) {
		return nil, errors.NewSessionExpiredError(fmt.Sprintf("refresh rejected with status %d: %s", status, oauthErr))
	}
	if status != http.StatusOK {
		return nil, k.apiError("refresh", status)
	}
	return tokens, nil
}

// tokenRequest returns the status and, for non-200 replies, the OAuth error code.
func (k *KeycloakClient) tokenRequest(ctx context.Context, data url.Values) (int, string, *models.TokenSet, error) {
	data.Set("client_id", k.clientID)
	if k.clientSecret != "" {
		data.Set("client_secret", k.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint("token"), strings.NewReader(data.Encode()))
	if err != nil {
		return 0, "", nil, &errors.StandardError{
			Code:      errors.ErrCodeAuthenticationFailed,
			Message:   "Sign-in is unavailable right now",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, &errors.StandardError{
			Code:      errors.ErrCodeAuthenticationFailed,
			Message:   "Could not reach the sign-in service",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, ParseTokenError(body), nil, nil
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return 0, "", nil, &errors.StandardError{
			Code:      errors.ErrCodeAuthenticationFailed,
			Message:   "Sign-in is unavailable right now",
			Details:   fmt.Sprintf("failed to decode token response: %v", err),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	return resp.StatusCode, "", toTokenSet(tokenResp, time.Now()), nil
}

func toTokenSet(tr TokenResponse, now time.Time) *models.TokenSet {
	ts := &models.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	if tr.RefreshExpiresIn > 0 {
		ts.RefreshExpiresAt = now.Add(time.Duration(tr.RefreshExpiresIn) * time.Second)
	}
	return ts
}

// Logout revokes a user's refresh token. This is a standard OAuth2/OpenID Connect logout mechanism.
func (k *KeycloakClient) Logout(ctx context.Context, refreshToken string) error {
	data := url.Values{}
	data.Set("client_id", k.clientID)
	if k.clientSecret != "" {
		data.Set("client_secret", k.clientSecret)
	}
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint("logout"), strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute logout request: %w", err)
	}
	defer resp.Body.Close()

	// Keycloak returns 204 No Content on successful logout
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return k.apiError("logout", resp.StatusCode)
	}
	return nil
}

func (k *KeycloakClient) apiError(op string, status int) *errors.StandardError {
	return &errors.StandardError{
		Code:      errors.ErrCodeAuthenticationFailed,
		Message:   "Sign-in is unavailable right now",
		Details:   fmt.Sprintf("keycloak %s failed with status %d", op, status),
		Retryable: apphttp.IsTransient(status),
		Timestamp: time.Now().UTC(),
	}
}

// ParseTokenError extracts the OAuth error code from a token endpoint body.
func ParseTokenError(body []byte) string {
	var te tokenError
	if err := json.Unmarshal(body, &te); err != nil {
		return ""
	}
	return te.Error
}
