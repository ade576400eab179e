package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steviee/go-mcl/internal/retry"
)

const (
	// DefaultClientID is the public OAuth client id the launcher presents to
	// the identity provider.
	DefaultClientID = "d41d2b33-67cd-4a3a-9e7a-1fc5e2b0a9d4"

	// DefaultScope requests offline access so a refresh token comes back.
	DefaultScope = "XboxLive.signin offline_access"

	// Default endpoints of the three hops.
	DefaultDeviceCodeURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode"
	DefaultTokenURL      = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"
	DefaultBrokerURL     = "https://xsts.auth.xboxlive.com/xsts/authorize"
	DefaultGameLoginURL  = "https://api.minecraftservices.com/authentication/login_with_xbox"
	DefaultProfileURL    = "https://api.minecraftservices.com/minecraft/profile"

	// DefaultTimeout is the per-request timeout for auth calls.
	DefaultTimeout = 15 * time.Second

	// DevicePollInterval is the fallback polling interval while waiting for
	// the user to approve the device code.
	DevicePollInterval = 5 * time.Second
)

// State names how far the delegated-authorization chain has progressed.
// Each hop exchanges the previous hop's token for the next provider's.
type State int

const (
	StateNotAuthenticated State = iota
	StateIdentityOk
	StateBrokerOk
	StateGameServiceOk
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotAuthenticated:
		return "NotAuthenticated"
	case StateIdentityOk:
		return "IdentityOk"
	case StateBrokerOk:
		return "BrokerOk"
	case StateGameServiceOk:
		return "GameServiceOk"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DeviceCodePrompt is handed to the prompt callback so the caller can show
// the user where to enter which code.
type DeviceCodePrompt struct {
	UserCode        string
	VerificationURI string
	ExpiresIn       time.Duration
}

// Flow is the credential acquisition capability the manager depends on.
// Chain is the production implementation; tests substitute their own.
type Flow interface {
	// Authenticate runs the full interactive chain and returns a new record.
	Authenticate(ctx context.Context) (*Record, error)

	// Refresh silently re-runs the chain from the stored refresh fragment.
	Refresh(ctx context.Context, rec *Record) (*Record, error)

	// Validate checks an existing access token against the game service
	// profile endpoint without touching the earlier hops.
	Validate(ctx context.Context, accessToken string) error
}

// Chain runs the three-hop delegated-authorization flow:
//
//	NotAuthenticated -> IdentityOk -> BrokerOk -> GameServiceOk
//
// Hop 1 is the identity provider (device-code or refresh-token grant),
// hop 2 the intermediate authorization broker, hop 3 the game service
// login plus profile lookup. Any hop failure aborts the chain with a
// HopError naming the state that was reached.
type Chain struct {
	clientID      string
	scope         string
	deviceCodeURL string
	tokenURL      string
	brokerURL     string
	gameLoginURL  string
	profileURL    string
	httpClient    *http.Client
	policy        retry.Policy
	prompt        func(DeviceCodePrompt)
	pollInterval  time.Duration
}

// ChainConfig holds Chain configuration. Zero values take defaults; tests
// point the URLs at httptest servers.
type ChainConfig struct {
	ClientID      string
	Scope         string
	DeviceCodeURL string
	TokenURL      string
	BrokerURL     string
	GameLoginURL  string
	ProfileURL    string
	Timeout       time.Duration
	Retry         retry.Policy
	PollInterval  time.Duration

	// Prompt is invoked once with the device code the user must enter.
	Prompt func(DeviceCodePrompt)
}

// NewChain creates a Chain.
func NewChain(config *ChainConfig) *Chain {
	if config == nil {
		config = &ChainConfig{}
	}

	c := &Chain{
		clientID:      config.ClientID,
		scope:         config.Scope,
		deviceCodeURL: config.DeviceCodeURL,
		tokenURL:      config.TokenURL,
		brokerURL:     config.BrokerURL,
		gameLoginURL:  config.GameLoginURL,
		profileURL:    config.ProfileURL,
		policy:        config.Retry,
		prompt:        config.Prompt,
		pollInterval:  config.PollInterval,
	}

	if c.clientID == "" {
		c.clientID = DefaultClientID
	}
	if c.scope == "" {
		c.scope = DefaultScope
	}
	if c.deviceCodeURL == "" {
		c.deviceCodeURL = DefaultDeviceCodeURL
	}
	if c.tokenURL == "" {
		c.tokenURL = DefaultTokenURL
	}
	if c.brokerURL == "" {
		c.brokerURL = DefaultBrokerURL
	}
	if c.gameLoginURL == "" {
		c.gameLoginURL = DefaultGameLoginURL
	}
	if c.profileURL == "" {
		c.profileURL = DefaultProfileURL
	}
	if c.policy.MaxAttempts == 0 {
		c.policy = retry.DefaultPolicy()
	}
	if c.pollInterval == 0 {
		c.pollInterval = DevicePollInterval
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}

	return c
}

// identityToken is the identity provider's token response.
type identityToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

// brokerToken is the authorization broker's response.
type brokerToken struct {
	Token    string `json:"token"`
	UserHash string `json:"userHash"`
}

// gameToken is the game service login response.
type gameToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// gameProfile is the game service profile response.
type gameProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Authenticate implements Flow. It runs the interactive device-code grant
// for hop 1, then the broker and game-service hops. Nothing is persisted;
// that is the caller's explicit step.
func (c *Chain) Authenticate(ctx context.Context) (*Record, error) {
	state := StateNotAuthenticated

	identity, err := c.deviceCodeGrant(ctx)
	if err != nil {
		return nil, &HopError{State: state, Err: fmt.Errorf("%w: %v", ErrIdentityHop, err)}
	}
	state = StateIdentityOk

	return c.completeChain(ctx, state, identity)
}

// Refresh implements Flow. It re-requests an identity token from the stored
// refresh fragment and re-runs the second and third hops.
func (c *Chain) Refresh(ctx context.Context, rec *Record) (*Record, error) {
	if !rec.CanRefresh() {
		return nil, &HopError{
			State: StateNotAuthenticated,
			Err:   fmt.Errorf("%w: no refresh fragment", ErrIdentityHop),
		}
	}

	state := StateNotAuthenticated

	identity, err := c.refreshGrant(ctx, rec.IdentityRefreshToken)
	if err != nil {
		return nil, &HopError{State: state, Err: fmt.Errorf("%w: %v", ErrIdentityHop, err)}
	}
	state = StateIdentityOk

	refreshed, err := c.completeChain(ctx, state, identity)
	if err != nil {
		return nil, err
	}

	// Keep the caller's client token stable across refreshes.
	if rec.ClientToken != "" {
		refreshed.ClientToken = rec.ClientToken
	}
	refreshed.SavedAt = rec.SavedAt

	return refreshed, nil
}

// completeChain runs hops 2 and 3 from a fresh identity token.
func (c *Chain) completeChain(ctx context.Context, state State, identity *identityToken) (*Record, error) {
	broker, err := c.brokerExchange(ctx, identity.AccessToken)
	if err != nil {
		return nil, &HopError{State: state, Err: fmt.Errorf("%w: %v", ErrBrokerHop, err)}
	}
	state = StateBrokerOk

	game, profile, err := c.gameServiceLogin(ctx, broker)
	if err != nil {
		return nil, &HopError{State: state, Err: fmt.Errorf("%w: %v", ErrGameServiceHop, err)}
	}
	state = StateGameServiceOk

	slog.Info("authentication chain complete",
		"state", state.String(),
		"player", profile.Name)

	now := time.Now().UTC()
	return &Record{
		AccessToken:          game.AccessToken,
		IdentityRefreshToken: identity.RefreshToken,
		BrokerToken:          broker.Token,
		BrokerUserHash:       broker.UserHash,
		ClientToken:          uuid.NewString(),
		PlayerID:             profile.ID,
		PlayerName:           profile.Name,
		SavedAt:              now,
		LastRefresh:          now,
	}, nil
}

// Validate implements Flow: a direct profile check with the cached token.
func (c *Chain) Validate(ctx context.Context, accessToken string) error {
	var profile gameProfile
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.getProfile(ctx, accessToken, &profile)
	})
	return err
}

// deviceCodeGrant runs the interactive device-code flow against hop 1.
func (c *Chain) deviceCodeGrant(ctx context.Context) (*identityToken, error) {
	form := url.Values{
		"client_id": {c.clientID},
		"scope":     {c.scope},
	}

	var dc struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
	}
	if err := c.postForm(ctx, c.deviceCodeURL, form, &dc); err != nil {
		return nil, err
	}

	if c.prompt != nil {
		c.prompt(DeviceCodePrompt{
			UserCode:        dc.UserCode,
			VerificationURI: dc.VerificationURI,
			ExpiresIn:       time.Duration(dc.ExpiresIn) * time.Second,
		})
	}

	interval := c.pollInterval
	if dc.Interval > 0 {
		interval = time.Duration(dc.Interval) * time.Second
	}

	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)
	if dc.ExpiresIn == 0 {
		deadline = time.Now().Add(15 * time.Minute)
	}

	pollForm := url.Values{
		"client_id":   {c.clientID},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {dc.DeviceCode},
	}

	for time.Now().Before(deadline) {
		var token identityToken
		err := c.postForm(ctx, c.tokenURL, pollForm, &token)
		if err == nil && token.AccessToken != "" {
			return &token, nil
		}
		if err == nil && token.Error != "" && token.Error != "authorization_pending" && token.Error != "slow_down" {
			return nil, fmt.Errorf("device code grant rejected: %s", token.Error)
		}
		if err != nil && !retry.IsTransient(err) {
			return nil, err
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, ErrDeviceCodeExpired
}

// refreshGrant exchanges the stored refresh fragment for a new identity
// token without user interaction.
func (c *Chain) refreshGrant(ctx context.Context, refreshToken string) (*identityToken, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"scope":         {c.scope},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	var token identityToken
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.postForm(ctx, c.tokenURL, form, &token)
	})
	if err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("identity provider returned no access token")
	}

	return &token, nil
}

// brokerExchange is hop 2: identity token in, broker token out.
func (c *Chain) brokerExchange(ctx context.Context, identityAccessToken string) (*brokerToken, error) {
	payload := map[string]string{"identityToken": identityAccessToken}

	var token brokerToken
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.postJSON(ctx, c.brokerURL, payload, &token)
	})
	if err != nil {
		return nil, err
	}
	if token.Token == "" {
		return nil, fmt.Errorf("broker returned no token")
	}

	return &token, nil
}

// gameServiceLogin is hop 3: broker token in, game access token plus the
// player profile out.
func (c *Chain) gameServiceLogin(ctx context.Context, broker *brokerToken) (*gameToken, *gameProfile, error) {
	payload := map[string]string{
		"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", broker.UserHash, broker.Token),
	}

	var token gameToken
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.postJSON(ctx, c.gameLoginURL, payload, &token)
	})
	if err != nil {
		return nil, nil, err
	}
	if token.AccessToken == "" {
		return nil, nil, fmt.Errorf("game service returned no access token")
	}

	var profile gameProfile
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		return c.getProfile(ctx, token.AccessToken, &profile)
	})
	if err != nil {
		return nil, nil, err
	}

	return &token, &profile, nil
}

// getProfile fetches the player profile with a bearer token. A 401/403 is
// ErrTokenInvalid (terminal); server errors are transient.
func (c *Chain) getProfile(ctx context.Context, accessToken string, out *gameProfile) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Transient(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrTokenInvalid
	case resp.StatusCode >= http.StatusInternalServerError:
		return retry.Transient(fmt.Errorf("profile endpoint status %d", resp.StatusCode))
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("profile endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// postForm POSTs a form-encoded body and decodes the JSON response.
// Identity providers answer device-code polling with 400 plus an error
// field, so 4xx bodies are decoded rather than discarded.
func (c *Chain) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Transient(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return retry.Transient(fmt.Errorf("%s: status %d", endpoint, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// postJSON POSTs a JSON body and decodes the JSON response.
func (c *Chain) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Transient(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return retry.Transient(fmt.Errorf("%s: status %d", endpoint, resp.StatusCode))
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}
