package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steviee/go-mcl/internal/retry"
)

// chainBackend simulates all five auth endpoints on one httptest server.
type chainBackend struct {
	mux       *http.ServeMux
	server    *httptest.Server
	tokenHits atomic.Int32

	// pendingPolls is how many token polls answer authorization_pending
	// before the grant succeeds.
	pendingPolls int32

	brokerStatus  int
	loginStatus   int
	profileStatus int
}

func newChainBackend(t *testing.T) *chainBackend {
	t.Helper()

	b := &chainBackend{
		mux:           http.NewServeMux(),
		brokerStatus:  http.StatusOK,
		loginStatus:   http.StatusOK,
		profileStatus: http.StatusOK,
	}

	b.mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"device_code":      "device-123",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://example.com/link",
			"expires_in":       900,
			"interval":         0,
		})
	})

	b.mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		hit := b.tokenHits.Add(1)
		if r.FormValue("grant_type") == "refresh_token" {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token":  "identity-refreshed",
				"refresh_token": "refresh-fragment-2",
				"expires_in":    3600,
			})
			return
		}
		if hit <= b.pendingPolls {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": "authorization_pending",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "identity-token",
			"refresh_token": "refresh-fragment",
			"expires_in":    3600,
		})
	})

	b.mux.HandleFunc("/broker", func(w http.ResponseWriter, r *http.Request) {
		if b.brokerStatus != http.StatusOK {
			w.WriteHeader(b.brokerStatus)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token":    "broker-token",
			"userHash": "userhash",
		})
	})

	b.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if b.loginStatus != http.StatusOK {
			w.WriteHeader(b.loginStatus)
			return
		}
		var payload struct {
			IdentityToken string `json:"identityToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, "XBL3.0 x=userhash;broker-token", payload.IdentityToken)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "game-token",
			"expires_in":   86400,
		})
	})

	b.mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		if b.profileStatus != http.StatusOK {
			w.WriteHeader(b.profileStatus)
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":   "069a79f444e94726a5befca90e38aaf5",
			"name": "Notch",
		})
	})

	b.server = httptest.NewServer(b.mux)
	t.Cleanup(b.server.Close)

	return b
}

func (b *chainBackend) chain(prompt func(DeviceCodePrompt)) *Chain {
	return NewChain(&ChainConfig{
		DeviceCodeURL: b.server.URL + "/devicecode",
		TokenURL:      b.server.URL + "/token",
		BrokerURL:     b.server.URL + "/broker",
		GameLoginURL:  b.server.URL + "/login",
		ProfileURL:    b.server.URL + "/profile",
		Retry:         retry.Policy{MaxAttempts: 1, Delay: time.Millisecond},
		PollInterval:  5 * time.Millisecond,
		Prompt:        prompt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestChain_Authenticate(t *testing.T) {
	backend := newChainBackend(t)
	backend.pendingPolls = 2

	var prompt DeviceCodePrompt
	chain := backend.chain(func(p DeviceCodePrompt) { prompt = p })

	rec, err := chain.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ABCD-1234", prompt.UserCode)
	assert.Equal(t, "https://example.com/link", prompt.VerificationURI)

	assert.Equal(t, "game-token", rec.AccessToken)
	assert.Equal(t, "refresh-fragment", rec.IdentityRefreshToken)
	assert.Equal(t, "broker-token", rec.BrokerToken)
	assert.Equal(t, "userhash", rec.BrokerUserHash)
	assert.Equal(t, "Notch", rec.PlayerName)
	assert.Equal(t, "069a79f444e94726a5befca90e38aaf5", rec.PlayerID)
	assert.NotEmpty(t, rec.ClientToken)
	assert.False(t, rec.SavedAt.IsZero())

	// Two pending answers plus the successful poll.
	assert.Equal(t, int32(3), backend.tokenHits.Load())
}

func TestChain_Authenticate_BrokerHopFails(t *testing.T) {
	backend := newChainBackend(t)
	backend.brokerStatus = http.StatusUnauthorized

	chain := backend.chain(nil)

	_, err := chain.Authenticate(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrBrokerHop)

	var hopErr *HopError
	require.ErrorAs(t, err, &hopErr)
	assert.Equal(t, StateIdentityOk, hopErr.State)
}

func TestChain_Authenticate_GameServiceHopFails(t *testing.T) {
	backend := newChainBackend(t)
	backend.loginStatus = http.StatusForbidden

	chain := backend.chain(nil)

	_, err := chain.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrGameServiceHop)

	var hopErr *HopError
	require.ErrorAs(t, err, &hopErr)
	assert.Equal(t, StateBrokerOk, hopErr.State)
}

func TestChain_Refresh(t *testing.T) {
	backend := newChainBackend(t)
	chain := backend.chain(nil)

	savedAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := &Record{
		AccessToken:          "stale-token",
		IdentityRefreshToken: "refresh-fragment",
		ClientToken:          "stable-client-token",
		PlayerName:           "Notch",
		SavedAt:              savedAt,
	}

	refreshed, err := chain.Refresh(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "game-token", refreshed.AccessToken)
	assert.Equal(t, "refresh-fragment-2", refreshed.IdentityRefreshToken)
	assert.Equal(t, "stable-client-token", refreshed.ClientToken)
	assert.Equal(t, savedAt, refreshed.SavedAt)
}

func TestChain_Refresh_NoFragment(t *testing.T) {
	backend := newChainBackend(t)
	chain := backend.chain(nil)

	_, err := chain.Refresh(context.Background(), &Record{AccessToken: "token"})
	require.ErrorIs(t, err, ErrIdentityHop)
}

func TestChain_Validate(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		backend := newChainBackend(t)
		chain := backend.chain(nil)

		require.NoError(t, chain.Validate(context.Background(), "game-token"))
	})

	t.Run("rejected token", func(t *testing.T) {
		backend := newChainBackend(t)
		backend.profileStatus = http.StatusUnauthorized
		chain := backend.chain(nil)

		err := chain.Validate(context.Background(), "game-token")
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("server error is transient", func(t *testing.T) {
		backend := newChainBackend(t)
		backend.profileStatus = http.StatusInternalServerError
		chain := backend.chain(nil)

		err := chain.Validate(context.Background(), "game-token")
		require.Error(t, err)
		assert.True(t, retry.IsTransient(err))
		assert.NotErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestChain_Authenticate_GrantRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"device_code": "device-123",
			"user_code":   "ABCD-1234",
			"expires_in":  900,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "access_denied",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	chain := NewChain(&ChainConfig{
		DeviceCodeURL: server.URL + "/devicecode",
		TokenURL:      server.URL + "/token",
		Retry:         retry.Policy{MaxAttempts: 1, Delay: time.Millisecond},
		PollInterval:  5 * time.Millisecond,
	})

	_, err := chain.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrIdentityHop)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "NotAuthenticated", StateNotAuthenticated.String())
	assert.Equal(t, "IdentityOk", StateIdentityOk.String())
	assert.Equal(t, "BrokerOk", StateBrokerOk.String())
	assert.Equal(t, "GameServiceOk", StateGameServiceOk.String())
}

func TestHopError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &HopError{State: StateBrokerOk, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "BrokerOk")
}
