package client

import (
	"context"
	"net/http"

	"github.com/campushub/campushub-api/internal/models"
)

// Login authenticates and stores the issued token pair on the client.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*models.LoginResponse, error) {
	var out models.LoginResponse
	_, err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{
		Email:      email,
		Password:   password,
		RememberMe: rememberMe,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	c.cache.clear()
	return &out, nil
}

// Refresh rotates the stored refresh token. The old token is consumed
// server-side whether or not the response arrives.
func (c *Client) Refresh(ctx context.Context) (*models.RefreshResponse, error) {
	_, refresh := c.Tokens()
	var out models.RefreshResponse
	_, err := c.do(ctx, http.MethodPost, "/auth/refresh", models.RefreshRequest{RefreshToken: refresh}, &out)
	if err != nil {
		return nil, err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return &out, nil
}

// Logout ends all of the user's sessions and clears local state.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetTokens("", "")
	c.cache.clear()
	return nil
}

// Register creates a user with its role profile.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	var out models.RegisterResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the authenticated user with its role profile.
func (c *Client) Me(ctx context.Context) (*models.UserWithProfile, error) {
	return getCached[models.UserWithProfile](ctx, c, "/auth/me")
}

// ForgotPassword starts the password reset flow.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/forgot-password", models.ForgotPasswordRequest{Email: email}, nil)
	return err
}

// ResetPassword completes the password reset flow.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/reset-password", models.ResetPasswordRequest{Token: token, NewPassword: newPassword}, nil)
	return err
}

// VerifyEmail confirms the registered address with a mailed token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/verify-email", models.VerifyEmailRequest{Token: token}, nil)
	return err
}
