package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// AuthUser is the subset of the Supabase auth user record we consume.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GetUserFromToken verifies a user's access token against the Supabase
// auth endpoint and returns the authenticated user. Used during sign-in
// to exchange the provider token for a local session.
func (c *Client) GetUserFromToken(ctx context.Context, accessToken string) (AuthUser, error) {
	if accessToken == "" {
		return AuthUser{}, fmt.Errorf("access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/auth/v1/user", nil)
	if err != nil {
		return AuthUser{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AuthUser{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return AuthUser{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return AuthUser{}, &Error{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var user AuthUser
	if err := json.Unmarshal(body, &user); err != nil {
		return AuthUser{}, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return AuthUser{}, fmt.Errorf("auth response missing user id")
	}
	return user, nil
}
