package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context, userID int64) error

func (f verifierFunc) Verify(ctx context.Context, userID int64, r *http.Request) error {
	return f(ctx, userID)
}

func TestGate_Authenticate(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantUserID int64
		wantErr    string
	}{
		{
			name:       "valid numeric identity",
			target:     "/?user_id=7",
			wantUserID: 7,
		},
		{
			name:       "zero is a valid identity",
			target:     "/?user_id=0",
			wantUserID: 0,
		},
		{
			name:    "missing identity",
			target:  "/",
			wantErr: "no user ID provided",
		},
		{
			name:    "empty identity",
			target:  "/?user_id=",
			wantErr: "no user ID provided",
		},
		{
			name:    "non-numeric identity",
			target:  "/?user_id=alice",
			wantErr: "invalid user ID format",
		},
		{
			name:    "negative identity",
			target:  "/?user_id=-3",
			wantErr: "invalid user ID format",
		},
		{
			name:    "fractional identity",
			target:  "/?user_id=7.5",
			wantErr: "invalid user ID format",
		},
	}

	gate := NewGate(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			userID, err := gate.Authenticate(context.Background(), r)

			if tt.wantErr != "" {
				require.NotNil(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.wantUserID, userID)
		})
	}
}

func TestGate_VerifierRejection(t *testing.T) {
	gate := NewGate(verifierFunc(func(ctx context.Context, userID int64) error {
		if userID == 13 {
			return fmt.Errorf("no session for user %d", userID)
		}
		return nil
	}))

	r := httptest.NewRequest("GET", "/?user_id=13", nil)
	_, err := gate.Authenticate(context.Background(), r)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "identity verification failed")

	r = httptest.NewRequest("GET", "/?user_id=7", nil)
	userID, err := gate.Authenticate(context.Background(), r)
	require.Nil(t, err)
	assert.Equal(t, int64(7), userID)
}
