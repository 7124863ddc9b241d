package studio

import (
	"context"
	"net/http"

	"github.com/virail/studio/internal/model"
)

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Register creates an account and returns its first session token.
func (c *Client) Register(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", creds)
}

// Logout invalidates the current session token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
}

func (c *Client) authenticate(ctx context.Context, path string, creds model.Credentials) (*model.AuthResponse, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, invalidInput(err)
	}

	req, err := jsonRequest(http.MethodPost, path, creds)
	if err != nil {
		return nil, err
	}

	var out model.AuthResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
