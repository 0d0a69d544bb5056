// Package auth turns bearer credentials into user ids.
package auth

import "context"

// Verifier validates a bearer token and returns the subject it was issued to.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}
