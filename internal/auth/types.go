package auth

import "time"

// SessionCookie is the name of the cookie carrying the auth session token.
const SessionCookie = "autogenius_session"

// User is a signed-in Google account.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Picture         string    `json:"picture,omitempty"`
	IsAuthenticated bool      `json:"is_authenticated"`
	CreatedAt       time.Time `json:"-"`
	LastLogin       time.Time `json:"-"`
}
