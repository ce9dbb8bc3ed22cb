// Package client is the terminal-side chat controller. It keeps the local
// state (selected vehicle, session id, theme and text size) and talks to the
// AutoGenius server through the API interface.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/chat"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrForbidden    = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx response other than 401, 403 and 404.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Detail)
}

// API is every network call the controller makes.
type API interface {
	// CurrentUser returns the signed-in user or ErrAuthRequired.
	CurrentUser(ctx context.Context) (*auth.User, error)
	CreateSession(ctx context.Context, v catalog.Vehicle) (*chat.Created, error)
	SendMessage(ctx context.Context, sessionID, text string) (*chat.Reply, error)
	ListHistory(ctx context.Context) ([]chat.HistoryItem, error)
	GetSession(ctx context.Context, id string) (*chat.SessionDetail, error)
	ClearHistory(ctx context.Context) error
	// UploadImage stores an image for the session and returns its URL.
	UploadImage(ctx context.Context, sessionID, name string, r io.Reader) (string, error)
	SetTextSize(ctx context.Context, sessionID, size string) error
	// Logout ends the server-side auth session.
	Logout(ctx context.Context) error
	// LoginURL is where a browser starts sign-in. A non-empty cliRedirect
	// receives the session token once sign-in completes.
	LoginURL(cliRedirect string) string
	LogoutURL() string
}
