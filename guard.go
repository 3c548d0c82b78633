package raidguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oarkflow/log"
)

// State-conflict and precondition errors reported to callers. No mutation is
// performed when one of these is returned.
var (
	ErrAlreadyLocked         = errors.New("community is already in lockdown")
	ErrNotLocked             = errors.New("community is not in lockdown")
	ErrMuteRoleNotConfigured = errors.New("mute role is not configured")
	ErrMuteRoleNotFound      = errors.New("configured mute role no longer exists")
)

// DefaultScamDomains seeds the phishing blocklist. A message link matching any
// entry as a substring is treated as a scam regardless of link count.
var DefaultScamDomains = []string{
	"discord-nitro.com",
	"discordgift.com",
	"discord-app.com",
	"steamcommunlty.com",
	"steamcornmunity.com",
}

const (
	defaultNukeThreshold = 5
	defaultNukeWindow    = 60 * time.Second

	scamTimeout    = 10 * time.Minute
	linkTimeout    = 5 * time.Minute
	mentionTimeout = 10 * time.Minute
)

// Options configures the parts of the engine that come from process
// configuration rather than the mutable security policy document.
type Options struct {
	// StaffRoleRef is the elevated role whose holders the abuse detector
	// watches. Empty disables anti-nuke attribution entirely.
	StaffRoleRef string
	// ImmuneRoleRef exempts its holders from all protective logic.
	ImmuneRoleRef string
	// LogChannelRef receives security audit messages. Empty skips channel
	// logging; structured logs and notifications still fire.
	LogChannelRef string

	ScamDomains   []string
	NukeThreshold int
	NukeWindow    time.Duration

	Logger        *log.Logger
	Metrics       MetricsCollector
	Notifications *NotificationRegistry
}

// Guard is the security/anti-raid engine. One Guard serves any number of
// communities; all shared state is keyed by community and guarded here rather
// than exposed as raw maps.
type Guard struct {
	gateway  Gateway
	store    StateStore
	config   *ConfigStore
	warnings WarningStore
	counters ActionCounterStore
	metrics  MetricsCollector
	notify   *NotificationRegistry
	ledger   *SecurityLedger
	logger   *log.Logger
	opts     Options

	mu             sync.Mutex
	lockdowns      map[string]*LockdownRecord
	communityLocks map[string]*sync.Mutex
}

// New loads persisted state and returns a ready engine.
func New(gateway Gateway, store StateStore, warnings WarningStore, counters ActionCounterStore, opts Options) (*Guard, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if counters == nil {
		counters = NewInMemoryCounterStore()
	}
	if opts.NukeThreshold <= 0 {
		opts.NukeThreshold = defaultNukeThreshold
	}
	if opts.NukeWindow <= 0 {
		opts.NukeWindow = defaultNukeWindow
	}
	if opts.ScamDomains == nil {
		opts.ScamDomains = DefaultScamDomains
	}
	if opts.Logger == nil {
		opts.Logger = &log.DefaultLogger
	}
	if opts.Metrics == nil {
		opts.Metrics = NewInMemoryMetricsCollector()
	}
	if opts.Notifications == nil {
		opts.Notifications = NewNotificationRegistry(opts.Logger)
	}

	config, err := NewConfigStore(store)
	if err != nil {
		return nil, err
	}
	lockdowns, err := store.LoadLockdowns()
	if err != nil {
		return nil, fmt.Errorf("load lockdown state: %w", err)
	}

	return &Guard{
		gateway:        gateway,
		store:          store,
		config:         config,
		warnings:       warnings,
		counters:       counters,
		metrics:        opts.Metrics,
		notify:         opts.Notifications,
		ledger:         NewSecurityLedger(0),
		logger:         opts.Logger,
		opts:           opts,
		lockdowns:      lockdowns,
		communityLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Config exposes the mutable security policy store.
func (g *Guard) Config() *ConfigStore { return g.config }

// Ledger exposes the in-memory record of recent protective actions.
func (g *Guard) Ledger() *SecurityLedger { return g.ledger }

// Locked reports whether the community currently has an active lockdown.
func (g *Guard) Locked(communityID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.lockdowns[communityID]
	return ok
}

// communityLock returns the mutex serializing lockdown/unlock transitions for
// one community. Two concurrent transitions must never race to write the same
// record.
func (g *Guard) communityLock(communityID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	mu, ok := g.communityLocks[communityID]
	if !ok {
		mu = &sync.Mutex{}
		g.communityLocks[communityID] = mu
	}
	return mu
}

// saveLockdowns rewrites the lockdown document in full under g.mu.
func (g *Guard) saveLockdowns() error {
	g.mu.Lock()
	snapshot := make(map[string]*LockdownRecord, len(g.lockdowns))
	for id, rec := range g.lockdowns {
		snapshot[id] = rec
	}
	g.mu.Unlock()
	return g.store.SaveLockdowns(snapshot)
}

// isImmune reports whether the member holds the configured immune role. A
// missing or unconfigured role means nobody is immune.
func (g *Guard) isImmune(ctx context.Context, communityID string, m *Member) bool {
	if m == nil || g.opts.ImmuneRoleRef == "" {
		return false
	}
	exists, err := g.gateway.RoleExists(ctx, communityID, g.opts.ImmuneRoleRef)
	if err != nil || !exists {
		return false
	}
	return m.HasRole(g.opts.ImmuneRoleRef)
}

// isStaff reports whether the member holds the configured elevated role.
func (g *Guard) isStaff(ctx context.Context, communityID string, m *Member) bool {
	if m == nil || g.opts.StaffRoleRef == "" {
		return false
	}
	exists, err := g.gateway.RoleExists(ctx, communityID, g.opts.StaffRoleRef)
	if err != nil || !exists {
		return false
	}
	return m.HasRole(g.opts.StaffRoleRef)
}
