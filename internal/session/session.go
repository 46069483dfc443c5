// Package session carries the authenticated caller through request handling.
package session

import "context"

// Session is the per-request view of the caller. A nil *Session means anonymous.
type Session struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	PhotoURL      string `json:"photo_url,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	IsAdmin       bool   `json:"is_admin"`
}

// Authenticated reports whether s belongs to a signed-in user.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// Owns reports whether s is the owner identified by ownerID.
func (s *Session) Owns(ownerID string) bool {
	return s.Authenticated() && ownerID != "" && s.UserID == ownerID
}

type ctxKey struct{}

// With returns ctx carrying s.
func With(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the session in ctx, or nil.
func From(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
