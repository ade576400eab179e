// Package launcher is the facade consumed by presentation layers (CLI, a
// future control panel). One Launcher instance is constructed explicitly
// and injected into callers; there is no process-wide implicit state.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/steviee/go-mcl/internal/auth"
	"github.com/steviee/go-mcl/internal/download"
	"github.com/steviee/go-mcl/internal/events"
	"github.com/steviee/go-mcl/internal/launch"
	"github.com/steviee/go-mcl/internal/meta"
	"github.com/steviee/go-mcl/internal/natives"
	"github.com/steviee/go-mcl/internal/retry"
	"github.com/steviee/go-mcl/internal/state"
)

const (
	// ProvisionMaxAttempts bounds top-level provisioning retries.
	ProvisionMaxAttempts = 2

	// ProvisionRetryDelay is the fixed delay between provisioning attempts.
	ProvisionRetryDelay = 5 * time.Second
)

// Launcher wires the credential manager, resolver, fetcher, extractor and
// supervisor behind the operations the presentation layer consumes.
type Launcher struct {
	layout     *state.Layout
	cfg        *state.Config
	manager    *auth.Manager
	resolver   *meta.Resolver
	fetcher    *download.Fetcher
	extractor  *natives.Extractor
	supervisor *launch.Supervisor
	bus        *events.Bus
}

// Config holds Launcher construction options.
type Config struct {
	Layout *state.Layout
	Config *state.Config
	Bus    *events.Bus

	// Prompt shows the interactive device code to the user.
	Prompt func(auth.DeviceCodePrompt)

	// Flow overrides the production auth chain (tests).
	Flow auth.Flow
}

// New constructs a Launcher and creates the on-disk directory skeleton.
func New(config *Config) (*Launcher, error) {
	layout := config.Layout
	if layout == nil {
		var err error
		layout, err = state.DefaultLayout()
		if err != nil {
			return nil, err
		}
	}

	if err := layout.InitDirs(); err != nil {
		return nil, err
	}

	cfg := config.Config
	if cfg == nil {
		var err error
		cfg, err = state.LoadConfig(layout.ConfigPath())
		if err != nil {
			return nil, err
		}
	}

	bus := config.Bus
	if bus == nil {
		bus = events.NewBus()
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Network.MaxRetries,
		Delay:       2 * time.Second,
	}

	flow := config.Flow
	if flow == nil {
		flow = auth.NewChain(&auth.ChainConfig{
			Timeout: cfg.Network.Timeout,
			Retry:   policy,
			Prompt:  config.Prompt,
		})
	}

	store := auth.NewStore(layout.CredentialsPath())
	manager := auth.NewManager(flow, store, bus)

	metaClient := meta.NewClient(&meta.Config{
		Timeout: cfg.Network.Timeout,
		Retry:   policy,
	})

	downloader := download.NewHTTPDownloader(&download.HTTPConfig{
		Retry: policy,
	})

	fetcher := download.NewFetcher(&download.FetcherConfig{
		Layout:      layout,
		Downloader:  downloader,
		Concurrency: cfg.Network.Concurrency,
	})

	supervisor := launch.NewSupervisor(&launch.SupervisorConfig{
		Layout: layout,
		Bus:    bus,
	})

	return &Launcher{
		layout:     layout,
		cfg:        cfg,
		manager:    manager,
		resolver:   meta.NewResolver(metaClient),
		fetcher:    fetcher,
		extractor:  natives.NewExtractor(layout),
		supervisor: supervisor,
		bus:        bus,
	}, nil
}

// Bus exposes the lifecycle event channel for subscribers.
func (l *Launcher) Bus() *events.Bus {
	return l.bus
}

// Result is the minimal outcome shape shared by every operation.
type Result struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
}

// AuthResult reports an authentication or validation outcome.
type AuthResult struct {
	Result
	PlayerName string `json:"playerName,omitempty"`
	PlayerID   string `json:"playerId,omitempty"`
	Refreshed  bool   `json:"refreshed,omitempty"`
	UsedCache  bool   `json:"usedCache,omitempty"`
}

// ProvisionResult reports a provisioning outcome, including the per-item
// failures that did not abort the batch.
type ProvisionResult struct {
	Result
	VersionID  string   `json:"versionId,omitempty"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Extracted  int      `json:"extracted"`
	ItemErrors []string `json:"itemErrors,omitempty"`
}

// LaunchResult reports a launch outcome.
type LaunchResult struct {
	Result
	PID       int    `json:"pid,omitempty"`
	VersionID string `json:"versionId,omitempty"`
}

// StatusResult reports the client process state.
type StatusResult struct {
	Result
	Running   bool   `json:"running"`
	PID       int    `json:"pid,omitempty"`
	VersionID string `json:"versionId,omitempty"`
}

// Authenticate runs the interactive chain and persists the credentials.
// The chain itself only yields a record; storing it is this facade's call.
func (l *Launcher) Authenticate(ctx context.Context) *AuthResult {
	rec, err := l.manager.Authenticate(ctx)
	if err != nil {
		return &AuthResult{Result: Result{Error: err.Error(), RequiresAuth: true}}
	}

	if err := l.manager.Persist(rec); err != nil {
		return &AuthResult{Result: Result{Error: err.Error()}}
	}

	return &AuthResult{
		Result:     Result{Success: true},
		PlayerName: rec.PlayerName,
		PlayerID:   rec.PlayerID,
	}
}

// EnsureValid runs the credential state machine.
func (l *Launcher) EnsureValid(ctx context.Context, forceRefresh bool) *AuthResult {
	res, err := l.manager.EnsureValid(ctx, forceRefresh)
	if err != nil {
		return &AuthResult{Result: Result{Error: err.Error()}}
	}

	return &AuthResult{
		Result: Result{
			Success:      res.Success,
			RequiresAuth: res.RequiresAuth,
		},
		PlayerName: res.PlayerName,
		Refreshed:  res.Refreshed,
		UsedCache:  res.UsedCache,
	}
}

// Logout clears the stored credentials.
func (l *Launcher) Logout() *Result {
	if err := l.manager.Logout(); err != nil {
		return &Result{Error: err.Error()}
	}
	return &Result{Success: true}
}

// CurrentAccount returns the stored credential record, if any.
func (l *Launcher) CurrentAccount() (*auth.Record, error) {
	return l.manager.Current()
}

// Provision resolves a version (plus optional loader), fetches every file
// the merged profile references and stages the native libraries. The whole
// attempt is retried a bounded number of times with a fixed delay; per-item
// download and extraction failures are aggregated, never fatal.
func (l *Launcher) Provision(ctx context.Context, versionID string, loader *meta.LoaderSpec) *ProvisionResult {
	var lastErr error

	for attempt := 0; attempt < ProvisionMaxAttempts; attempt++ {
		if attempt > 0 {
			slog.Info("retrying provisioning",
				"attempt", attempt+1,
				"delay", ProvisionRetryDelay)
			select {
			case <-time.After(ProvisionRetryDelay):
			case <-ctx.Done():
				return &ProvisionResult{Result: Result{Error: ctx.Err().Error()}}
			}
		}

		result, err := l.provisionOnce(ctx, versionID, loader)
		if err == nil {
			return result
		}
		lastErr = err
	}

	return &ProvisionResult{Result: Result{Error: lastErr.Error()}}
}

func (l *Launcher) provisionOnce(ctx context.Context, versionID string, loader *meta.LoaderSpec) (*ProvisionResult, error) {
	profile, err := l.resolver.Resolve(ctx, versionID, loader)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", versionID, err)
	}

	fetchResult, err := l.fetcher.FetchAll(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", profile.ID, err)
	}

	extractResult, err := l.extractor.Extract(profile, l.layout.NativesDir(profile.ID))
	if err != nil {
		return nil, fmt.Errorf("extract natives for %s: %w", profile.ID, err)
	}

	result := &ProvisionResult{
		Result:     Result{Success: true},
		VersionID:  profile.ID,
		Downloaded: fetchResult.Succeeded,
		Skipped:    fetchResult.Skipped,
		Extracted:  extractResult.Extracted,
	}
	for _, e := range fetchResult.Errors {
		result.ItemErrors = append(result.ItemErrors, e.Error())
	}
	for _, e := range extractResult.Errors {
		result.ItemErrors = append(result.ItemErrors, e.Error())
	}

	return result, nil
}

// Launch ensures a valid credential, builds the launch plan and spawns the
// client. The session lock guards the critical section so two launches of
// the same installation cannot race.
func (l *Launcher) Launch(ctx context.Context, versionID string, loader *meta.LoaderSpec, opts launch.Options) *LaunchResult {
	lock, err := state.AcquireSessionLock(l.layout.SessionLockPath())
	if err != nil {
		return &LaunchResult{Result: Result{Error: err.Error()}}
	}
	defer func() { _ = lock.Release() }()

	ensure, err := l.manager.EnsureValid(ctx, false)
	if err != nil {
		return &LaunchResult{Result: Result{Error: err.Error()}}
	}
	if !ensure.Success {
		return &LaunchResult{Result: Result{
			Error:        "authentication required before launch",
			RequiresAuth: true,
		}}
	}

	rec, err := l.manager.Current()
	if err != nil {
		return &LaunchResult{Result: Result{Error: err.Error(), RequiresAuth: errors.Is(err, auth.ErrNoCredentials)}}
	}

	profile, err := l.resolver.Resolve(ctx, versionID, loader)
	if err != nil {
		return &LaunchResult{Result: Result{Error: fmt.Sprintf("resolve %s: %v", versionID, err)}}
	}

	if opts.JavaExecutable == "" {
		opts.JavaExecutable = l.cfg.Java.Executable
	}
	if opts.Memory == "" {
		opts.Memory = l.cfg.Java.Memory
	}

	plan, err := launch.BuildPlan(l.layout, profile, rec, opts)
	if err != nil {
		return &LaunchResult{Result: Result{Error: err.Error()}}
	}

	pid, err := l.supervisor.Launch(ctx, plan)
	if err != nil {
		return &LaunchResult{Result: Result{Error: err.Error()}}
	}

	return &LaunchResult{
		Result:    Result{Success: true},
		PID:       pid,
		VersionID: profile.ID,
	}
}

// Stop terminates the tracked client process.
func (l *Launcher) Stop(ctx context.Context) *Result {
	if err := l.supervisor.Stop(ctx); err != nil {
		return &Result{Error: err.Error()}
	}
	return &Result{Success: true}
}

// Status probes the tracked client process.
func (l *Launcher) Status() *StatusResult {
	st := l.supervisor.CurrentStatus()
	return &StatusResult{
		Result:    Result{Success: true},
		Running:   st.Running,
		PID:       st.PID,
		VersionID: st.VersionID,
	}
}
