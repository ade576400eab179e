package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/steviee/go-mcl/internal/events"
)

const (
	// FreshWindow is the age below which a token is trusted without any
	// network call. Product-chosen constant.
	FreshWindow = 30 * 24 * time.Hour

	// ExpiryWindow is the hard expiry: at or past this age the record is
	// discarded and interactive re-authentication is required, even if the
	// cached token would still validate.
	ExpiryWindow = 90 * 24 * time.Hour
)

// EnsureResult reports the outcome of EnsureValid.
type EnsureResult struct {
	Success      bool
	Refreshed    bool
	UsedCache    bool
	RequiresAuth bool
	PlayerName   string
}

// Manager owns the credential lifecycle: acquisition, validation, refresh
// and persistence. It is constructed explicitly and injected into callers;
// there is no process-wide instance.
type Manager struct {
	flow  Flow
	store *Store
	bus   *events.Bus
	group singleflight.Group

	// now is swapped in tests to step through the trust windows.
	now func() time.Time
}

// NewManager creates a Manager. bus may be nil when nobody listens.
func NewManager(flow Flow, store *Store, bus *events.Bus) *Manager {
	return &Manager{
		flow:  flow,
		store: store,
		bus:   bus,
		now:   time.Now,
	}
}

// Authenticate runs the interactive chain and returns the new record. The
// record is not stored; persisting it is the caller's explicit step, via
// Persist.
func (m *Manager) Authenticate(ctx context.Context) (*Record, error) {
	rec, err := m.flow.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("authenticated", "player", rec.PlayerName)
	return rec, nil
}

// Persist saves rec as the stored credential record.
func (m *Manager) Persist(rec *Record) error {
	return m.store.Save(rec)
}

// Current returns the stored record without any validation.
func (m *Manager) Current() (*Record, error) {
	return m.store.Load()
}

// Logout clears the stored record entirely.
func (m *Manager) Logout() error {
	return m.store.Clear()
}

// EnsureValid is the credential state machine.
//
//   - FRESH (age < FreshWindow, no force): trust the cached token, zero
//     network calls.
//   - STALE (FreshWindow..ExpiryWindow, or force): one single-flight silent
//     refresh; if any hop fails, fall back to validating the existing token
//     against the game service and keep it on success. The record is only
//     discarded when refresh and validation both fail.
//   - EXPIRED (>= ExpiryWindow): discard and require re-authentication,
//     whatever the cached token would say.
//
// Concurrent callers share one in-flight refresh and its outcome.
func (m *Manager) EnsureValid(ctx context.Context, forceRefresh bool) (*EnsureResult, error) {
	rec, err := m.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoCredentials) {
			return &EnsureResult{RequiresAuth: true}, nil
		}
		return nil, err
	}

	age := rec.Age(m.now())

	if age >= ExpiryWindow {
		slog.Info("credentials past hard expiry, clearing",
			"age_days", int(age.Hours()/24))
		if err := m.store.Clear(); err != nil {
			return nil, err
		}
		return &EnsureResult{RequiresAuth: true}, nil
	}

	if age < FreshWindow && !forceRefresh {
		return &EnsureResult{Success: true, PlayerName: rec.PlayerName}, nil
	}

	// STALE path. The singleflight key is constant: every concurrent caller
	// of this installation awaits the same attempt.
	v, err, _ := m.group.Do("ensure-valid", func() (interface{}, error) {
		return m.refreshOrFallback(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	return v.(*EnsureResult), nil
}

// refreshOrFallback attempts the silent refresh, falling back to direct
// token validation. Availability wins: a transient network failure during
// refresh never evicts a token that is still inside its trust window.
func (m *Manager) refreshOrFallback(ctx context.Context, rec *Record) (*EnsureResult, error) {
	if rec.CanRefresh() {
		refreshed, err := m.flow.Refresh(ctx, rec)
		if err == nil {
			refreshed.LastRefresh = m.now().UTC()
			if err := m.store.Save(refreshed); err != nil {
				return nil, err
			}

			m.publishRefreshed(refreshed.PlayerName, false)
			return &EnsureResult{
				Success:    true,
				Refreshed:  true,
				PlayerName: refreshed.PlayerName,
			}, nil
		}

		slog.Warn("silent refresh failed, validating cached token", "error", err)
	} else {
		slog.Debug("no refresh fragment stored, validate-only path")
	}

	if err := m.flow.Validate(ctx, rec.AccessToken); err == nil {
		m.publishRefreshed(rec.PlayerName, true)
		return &EnsureResult{
			Success:    true,
			UsedCache:  true,
			PlayerName: rec.PlayerName,
		}, nil
	} else if !errors.Is(err, ErrTokenInvalid) {
		// The validation call itself failed for network reasons. The token
		// is still within its trust window; keep it.
		slog.Warn("token validation unreachable, keeping cached token", "error", err)
		return &EnsureResult{
			Success:    true,
			UsedCache:  true,
			PlayerName: rec.PlayerName,
		}, nil
	}

	// Refresh failed and the game service rejected the cached token.
	slog.Info("cached token rejected, clearing credentials")
	if err := m.store.Clear(); err != nil {
		return nil, err
	}

	return &EnsureResult{RequiresAuth: true}, nil
}

func (m *Manager) publishRefreshed(player string, usedCache bool) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.TopicAuthRefreshed, events.AuthRefreshed{
		PlayerName: player,
		UsedCache:  usedCache,
	})
}
