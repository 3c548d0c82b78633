package raidguard

import (
	"fmt"
	"sync"
)

// SecurityConfig holds the mutable security policy for the engine. Every
// recognized key always has a value: missing keys are filled from defaults
// when the document is loaded, so no field is ever absent at runtime.
type SecurityConfig struct {
	MinAccountAgeDays      int    `json:"min_account_age_days"`
	QuarantineRoleRef      string `json:"quarantine_role_id,omitempty"`
	MuteRoleRef            string `json:"mute_role_id,omitempty"`
	WelcomeChannelRef      string `json:"welcome_channel_id,omitempty"`
	VerificationChannelRef string `json:"verification_channel_id,omitempty"`
	LinkSpamThreshold      int    `json:"link_spam_threshold"`
	MentionSpamThreshold   int    `json:"mention_spam_threshold"`
	AutoQuarantineEnabled  bool   `json:"auto_quarantine_enabled"`
	AutoAgeCheckEnabled    bool   `json:"auto_age_check_enabled"`
	LinkFilterEnabled      bool   `json:"link_filter_enabled"`
	MentionFilterEnabled   bool   `json:"mention_filter_enabled"`
	AntiNukeEnabled        bool   `json:"anti_nuke_enabled"`
}

// securityConfigDoc mirrors SecurityConfig with optional fields so a partial
// document can be merged over the defaults without zeroing absent keys.
type securityConfigDoc struct {
	MinAccountAgeDays      *int    `json:"min_account_age_days"`
	QuarantineRoleRef      *string `json:"quarantine_role_id"`
	MuteRoleRef            *string `json:"mute_role_id"`
	WelcomeChannelRef      *string `json:"welcome_channel_id"`
	VerificationChannelRef *string `json:"verification_channel_id"`
	LinkSpamThreshold      *int    `json:"link_spam_threshold"`
	MentionSpamThreshold   *int    `json:"mention_spam_threshold"`
	AutoQuarantineEnabled  *bool   `json:"auto_quarantine_enabled"`
	AutoAgeCheckEnabled    *bool   `json:"auto_age_check_enabled"`
	LinkFilterEnabled      *bool   `json:"link_filter_enabled"`
	MentionFilterEnabled   *bool   `json:"mention_filter_enabled"`
	AntiNukeEnabled        *bool   `json:"anti_nuke_enabled"`
}

// DefaultSecurityConfig returns the policy applied on first run.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MinAccountAgeDays:     7,
		LinkSpamThreshold:     3,
		MentionSpamThreshold:  5,
		AutoQuarantineEnabled: true,
		AutoAgeCheckEnabled:   true,
		LinkFilterEnabled:     true,
		MentionFilterEnabled:  true,
		AntiNukeEnabled:       true,
	}
}

func (d *securityConfigDoc) merge(cfg *SecurityConfig) {
	if d.MinAccountAgeDays != nil {
		cfg.MinAccountAgeDays = *d.MinAccountAgeDays
	}
	if d.QuarantineRoleRef != nil {
		cfg.QuarantineRoleRef = *d.QuarantineRoleRef
	}
	if d.MuteRoleRef != nil {
		cfg.MuteRoleRef = *d.MuteRoleRef
	}
	if d.WelcomeChannelRef != nil {
		cfg.WelcomeChannelRef = *d.WelcomeChannelRef
	}
	if d.VerificationChannelRef != nil {
		cfg.VerificationChannelRef = *d.VerificationChannelRef
	}
	if d.LinkSpamThreshold != nil {
		cfg.LinkSpamThreshold = *d.LinkSpamThreshold
	}
	if d.MentionSpamThreshold != nil {
		cfg.MentionSpamThreshold = *d.MentionSpamThreshold
	}
	if d.AutoQuarantineEnabled != nil {
		cfg.AutoQuarantineEnabled = *d.AutoQuarantineEnabled
	}
	if d.AutoAgeCheckEnabled != nil {
		cfg.AutoAgeCheckEnabled = *d.AutoAgeCheckEnabled
	}
	if d.LinkFilterEnabled != nil {
		cfg.LinkFilterEnabled = *d.LinkFilterEnabled
	}
	if d.MentionFilterEnabled != nil {
		cfg.MentionFilterEnabled = *d.MentionFilterEnabled
	}
	if d.AntiNukeEnabled != nil {
		cfg.AntiNukeEnabled = *d.AntiNukeEnabled
	}
}

// normalize clamps values into their valid ranges before persisting.
func (c *SecurityConfig) normalize() {
	if c.MinAccountAgeDays < 0 {
		c.MinAccountAgeDays = 0
	}
	if c.MinAccountAgeDays > 365 {
		c.MinAccountAgeDays = 365
	}
	if c.LinkSpamThreshold < 1 {
		c.LinkSpamThreshold = 1
	}
	if c.MentionSpamThreshold < 1 {
		c.MentionSpamThreshold = 1
	}
}

// ConfigStore keeps the active SecurityConfig cached behind a lock and writes
// the full document through the StateStore on every mutation.
type ConfigStore struct {
	mu    sync.RWMutex
	updMu sync.Mutex
	cfg   SecurityConfig
	store StateStore
}

// NewConfigStore loads the persisted configuration, filling missing keys from
// the defaults. A missing document is created immediately so later reads never
// observe an absent key.
func NewConfigStore(store StateStore) (*ConfigStore, error) {
	cs := &ConfigStore{cfg: DefaultSecurityConfig(), store: store}
	loaded, err := store.LoadSecurityConfig()
	if err != nil {
		return nil, fmt.Errorf("load security config: %w", err)
	}
	if loaded == nil {
		if err := store.SaveSecurityConfig(&cs.cfg); err != nil {
			return nil, fmt.Errorf("seed security config: %w", err)
		}
		return cs, nil
	}
	cs.cfg = *loaded
	cs.cfg.normalize()
	return cs, nil
}

// Get returns a copy of the active configuration.
func (cs *ConfigStore) Get() SecurityConfig {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.cfg
}

// Update normalizes, persists and then publishes the new configuration. The
// cache is refreshed only after the document write succeeds.
func (cs *ConfigStore) Update(cfg SecurityConfig) error {
	return cs.Mutate(func(c *SecurityConfig) { *c = cfg })
}

// Mutate applies fn to a copy of the active configuration and persists the
// result, serializing concurrent read-modify-write updates.
func (cs *ConfigStore) Mutate(fn func(*SecurityConfig)) error {
	cs.updMu.Lock()
	defer cs.updMu.Unlock()
	cfg := cs.Get()
	fn(&cfg)
	cfg.normalize()
	if err := cs.store.SaveSecurityConfig(&cfg); err != nil {
		return fmt.Errorf("save security config: %w", err)
	}
	cs.mu.Lock()
	cs.cfg = cfg
	cs.mu.Unlock()
	return nil
}

// Observe installs an externally observed configuration (config file edited
// on disk) without writing it back out.
func (cs *ConfigStore) Observe(cfg SecurityConfig) {
	cfg.normalize()
	cs.mu.Lock()
	cs.cfg = cfg
	cs.mu.Unlock()
}
