package raidguard

import (
	"context"
	"time"
)

// Gateway is the chat-platform connection. Every blocking operation takes a
// context; mutations carry an audit reason passed through to the platform.
type Gateway interface {
	// BotID returns the user ID the engine itself acts as. Audit-trail
	// entries attributed to this ID are never counted by the abuse detector.
	BotID() string

	Channels(ctx context.Context, communityID string) ([]Channel, error)
	EveryoneOverwrite(ctx context.Context, communityID, channelID string) (PermissionSnapshot, error)
	SetEveryoneOverwrite(ctx context.Context, communityID, channelID string, snap PermissionSnapshot, reason string) error
	// ClearEveryoneOverwrite removes the base-role overwrite entirely so the
	// channel reverts to inherited permissions.
	ClearEveryoneOverwrite(ctx context.Context, communityID, channelID, reason string) error
	DenyInviteCreation(ctx context.Context, communityID, channelID, reason string) error

	Member(ctx context.Context, communityID, userID string) (*Member, error)
	Members(ctx context.Context, communityID string) ([]Member, error)
	RoleExists(ctx context.Context, communityID, roleID string) (bool, error)
	GrantRole(ctx context.Context, communityID, userID, roleID, reason string) error
	RevokeRole(ctx context.Context, communityID, userID, roleID, reason string) error

	SendMessage(ctx context.Context, channelID, content string) error
	// SendTransient posts a short-lived notice the platform removes after ttl.
	SendTransient(ctx context.Context, channelID, content string, ttl time.Duration) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	PurgeMessages(ctx context.Context, channelID string, limit int) (int, error)

	TimeoutMember(ctx context.Context, communityID, userID string, d time.Duration, reason string) error
	KickMember(ctx context.Context, communityID, userID, reason string) error
	BanMember(ctx context.Context, communityID, userID, reason string) error
	UnbanMember(ctx context.Context, communityID, userID, reason string) error

	Invites(ctx context.Context, communityID string) ([]Invite, error)
	DeleteInvite(ctx context.Context, communityID, code, reason string) error

	// AuditTrail returns up to limit entries of the given kind, newest first.
	AuditTrail(ctx context.Context, communityID string, kind ActionKind, limit int) ([]AuditEntry, error)
}

// StateStore persists the two security documents: the lockdown map and the
// security configuration. Each is read once at startup and rewritten in full
// on every mutation.
type StateStore interface {
	LoadLockdowns() (map[string]*LockdownRecord, error)
	SaveLockdowns(records map[string]*LockdownRecord) error

	// LoadSecurityConfig returns nil (no error) when no document exists yet.
	LoadSecurityConfig() (*SecurityConfig, error)
	SaveSecurityConfig(cfg *SecurityConfig) error
}

// WarningStore persists moderation warnings and case records.
type WarningStore interface {
	AddWarning(ctx context.Context, w Warning) error
	CountWarnings(ctx context.Context, communityID, userID string) (int, error)
	ListWarnings(ctx context.Context, communityID, userID string, limit int) ([]Warning, error)

	AddCase(ctx context.Context, c CaseRecord) error
	NextCaseSeq(ctx context.Context, communityID string) (int64, error)
}

// ActionCounterStore tracks windowed per-key counters for the abuse detector.
type ActionCounterStore interface {
	// Hit records an occurrence for key and returns the updated count. The
	// count resets to 1 whenever the gap since the previous hit exceeds
	// window; otherwise it increments. The read-modify-write is atomic per
	// key, and independent keys never interfere.
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
	HealthCheck() error
}

// MetricsCollector interface for observability
type MetricsCollector interface {
	IncrementCounter(name string, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
	HealthCheck() error
	ExportPrometheus() string
}

// NotificationSender interface for different notification channels
type NotificationSender interface {
	Send(ctx context.Context, notice *SecurityNotice) error
	Name() string
}
