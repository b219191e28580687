package auth

import "context"

// User is the shop customer resolved from a validated API key.
type User struct {
	ID    string
	Email string
	Name  string
}

// KeyInfo holds the stored credential data for an API key.
type KeyInfo struct {
	ID      string
	KeyHash string
	User    User
	Active  bool
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*KeyInfo, error)
}

type userKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext extracts the authenticated user from the context.
// It returns nil when the request is unauthenticated.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}
