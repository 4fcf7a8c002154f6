// Package auth defines API key identities used to authenticate callers.
package auth

import "context"

// APIKeyInfo is the identity behind a validated API key. The key id doubles
// as the user id recorded on promotion tracking rows.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
