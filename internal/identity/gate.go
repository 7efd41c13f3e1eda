// Package identity resolves the claimed user identity a client presents at
// connect time. The relay trusts the claim; cryptographic or session
// verification belongs to an optional external collaborator.
package identity

import (
	"context"
	"net/http"
	"strconv"

	"github.com/stg-network/chat-relay/internal/errors"
)

// Verifier checks a claimed identity against an external source of truth
// (for example the backend's session store). It is invoked synchronously
// before the connection is accepted.
type Verifier interface {
	Verify(ctx context.Context, userID int64, r *http.Request) error
}

// Gate validates claimed identities during the connection handshake.
type Gate struct {
	verifier Verifier // nil means accept the claim as-is
}

// NewGate builds a gate. Pass a nil verifier to trust claimed identities
// without external verification.
func NewGate(verifier Verifier) *Gate {
	return &Gate{verifier: verifier}
}

// Authenticate extracts and validates the claimed identity from the
// handshake request. On failure the connection must not proceed to any
// event handling.
func (g *Gate) Authenticate(ctx context.Context, r *http.Request) (int64, *errors.AppError) {
	claimed := r.URL.Query().Get("user_id")
	if claimed == "" {
		return 0, errors.AuthenticationError("no user ID provided")
	}

	userID, err := strconv.ParseInt(claimed, 10, 64)
	if err != nil || userID < 0 {
		return 0, errors.AuthenticationError("invalid user ID format")
	}

	if g.verifier != nil {
		if err := g.verifier.Verify(ctx, userID, r); err != nil {
			return 0, errors.AuthenticationError("identity verification failed")
		}
	}

	return userID, nil
}
