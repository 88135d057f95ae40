package httpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/pixelhaven/marketplace/internal/database"
)

// Authenticator verifies an identity-provider access token during
// sign-in and returns the stable user ID it belongs to.
type Authenticator interface {
	VerifyToken(ctx context.Context, accessToken string) (string, error)
}

// SupabaseAuthenticator verifies tokens against the Supabase auth API.
type SupabaseAuthenticator struct {
	Client *database.Client
}

func (a SupabaseAuthenticator) VerifyToken(ctx context.Context, accessToken string) (string, error) {
	user, err := a.Client.GetUserFromToken(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// StaticAuthenticator accepts tokens of the form "user:<id>". It exists
// for development and tests only.
type StaticAuthenticator struct{}

func (StaticAuthenticator) VerifyToken(_ context.Context, accessToken string) (string, error) {
	id, ok := strings.CutPrefix(accessToken, "user:")
	if !ok || id == "" {
		return "", fmt.Errorf("unrecognized token")
	}
	return id, nil
}
