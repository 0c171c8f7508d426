package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/atinyakov/GigBid/internal/models"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges e-mail and password for a credential.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	var out tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, pathLogin, "", req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return out.Token, nil
}

// Signup creates an account and returns its credential.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (string, error) {
	var out tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, pathSignup, "", req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("signup response carried no token")
	}
	return out.Token, nil
}

// Me resolves the identity behind token.
func (c *Client) Me(ctx context.Context, token string) (models.Identity, error) {
	var out struct {
		User *models.Identity `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, pathMe, token, nil, &out); err != nil {
		return models.Identity{}, err
	}
	if out.User == nil {
		return models.Identity{}, errors.New("whoami response carried no user")
	}
	return *out.User, nil
}
