package auth

import "time"

// Record is the persisted representation of a successful authentication:
// the game-service access token plus the provider-chain fragments needed to
// attempt a silent refresh later. All fields are serializable scalars; the
// on-disk credential file is exactly this shape.
type Record struct {
	AccessToken          string    `json:"accessToken"`
	IdentityRefreshToken string    `json:"identityRefreshToken,omitempty"`
	BrokerToken          string    `json:"brokerToken,omitempty"`
	BrokerUserHash       string    `json:"brokerUserHash,omitempty"`
	ClientToken          string    `json:"clientToken"`
	PlayerID             string    `json:"playerId"`
	PlayerName           string    `json:"playerName"`
	SavedAt              time.Time `json:"savedAt"`
	LastRefresh          time.Time `json:"lastRefresh"`
}

// Age returns how long ago the record was last refreshed. A record that was
// never refreshed ages from SavedAt; a token without either timestamp is
// unusable and reports an age past every window.
func (r *Record) Age(now time.Time) time.Duration {
	anchor := r.LastRefresh
	if anchor.IsZero() {
		anchor = r.SavedAt
	}
	if anchor.IsZero() {
		return ExpiryWindow + time.Hour
	}
	return now.Sub(anchor)
}

// CanRefresh reports whether the record carries the refresh fragment the
// identity provider needs. Without it only the validate-only fallback path
// is available.
func (r *Record) CanRefresh() bool {
	return r.IdentityRefreshToken != ""
}
