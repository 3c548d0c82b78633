package raidguard

import (
	"fmt"
	"time"
)

// ActionKind identifies a privileged action class tracked by the abuse detector.
type ActionKind string

const (
	ActionBan           ActionKind = "ban"
	ActionKick          ActionKind = "kick"
	ActionChannelDelete ActionKind = "channel_delete"
	ActionRoleDelete    ActionKind = "role_delete"
	ActionWebhookDelete ActionKind = "webhook_delete"
)

// ChannelKind distinguishes how a channel is locked during a lockdown sweep.
type ChannelKind string

const (
	ChannelText     ChannelKind = "text"
	ChannelVoice    ChannelKind = "voice"
	ChannelCategory ChannelKind = "category"
)

// Member is the platform view of a community member. RoleIDs never contains
// the community's base (everyone) role.
type Member struct {
	ID          string
	DisplayName string
	Bot         bool
	RoleIDs     []string
	CreatedAt   time.Time
	JoinedAt    time.Time
	HasAvatar   bool
}

// HasRole reports whether the member holds the given role.
func (m *Member) HasRole(roleID string) bool {
	if m == nil || roleID == "" {
		return false
	}
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Channel is the platform view of a community channel.
type Channel struct {
	ID   string
	Name string
	Kind ChannelKind
}

// Message is an inbound message event delivered by the gateway.
type Message struct {
	ID          string
	CommunityID string
	ChannelID   string
	Author      Member
	Content     string
	MentionIDs  []string
}

// Invite is an active invite link for a community.
type Invite struct {
	Code      string
	InviterID string
	Uses      int
}

// AuditEntry is one row of the platform's administrative action trail,
// newest first when queried.
type AuditEntry struct {
	ID        string
	ActorID   string
	Kind      ActionKind
	Target    Target
	Reason    string
	CreatedAt time.Time
}

// TargetKind tags the variant held by a Target.
type TargetKind string

const (
	TargetMember  TargetKind = "member"
	TargetRole    TargetKind = "role"
	TargetChannel TargetKind = "channel"
	TargetOther   TargetKind = "other"
)

// Target is the subject of a moderation or audit action. Each kind carries
// its own display projection.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
	Name string     `json:"name,omitempty"`
}

func (t Target) String() string {
	switch t.Kind {
	case TargetMember:
		return fmt.Sprintf("%s (%s)", t.Name, t.ID)
	case TargetRole:
		return "@" + t.Name
	case TargetChannel:
		return "#" + t.Name
	default:
		if t.Name != "" {
			return t.Name
		}
		if t.ID != "" {
			return t.ID
		}
		return "n/a"
	}
}

// PermissionSnapshot captures the base-role overwrite of a single channel.
// A nil flag means the permission is inherited.
type PermissionSnapshot struct {
	CanSend    *bool `json:"canSend,omitempty"`
	CanConnect *bool `json:"canConnect,omitempty"`
	CanSpeak   *bool `json:"canSpeak,omitempty"`
	CanView    *bool `json:"canView,omitempty"`
}

// LockdownRecord remembers everything needed to reverse a lockdown exactly.
// At most one exists per community; absence means the community is unlocked.
type LockdownRecord struct {
	CommunityID      string                        `json:"communityId"`
	InitiatorID      string                        `json:"initiatorId"`
	Reason           string                        `json:"reason"`
	StartedAt        time.Time                     `json:"startedAt"`
	SavedPermissions map[string]PermissionSnapshot `json:"savedPermissions"`
}

// SweepReport aggregates a best-effort per-item sweep: per-item failures are
// counted, never fatal.
type SweepReport struct {
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	FailedItems []string `json:"failedItems,omitempty"`
}

func (r *SweepReport) ok() {
	r.Succeeded++
}

func (r *SweepReport) fail(item string) {
	r.Failed++
	if len(r.FailedItems) < 10 {
		r.FailedItems = append(r.FailedItems, item)
	}
}

// Warning is one persisted moderation warning.
type Warning struct {
	ID          string    `json:"id" db:"id"`
	CommunityID string    `json:"communityId" db:"community_id"`
	UserID      string    `json:"userId" db:"user_id"`
	ModeratorID string    `json:"moderatorId" db:"moderator_id"`
	Reason      string    `json:"reason" db:"reason"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// CaseRecord is one persisted moderation case (ban, kick, timeout, warn, purge).
type CaseRecord struct {
	ID          string    `json:"id" db:"id"`
	Seq         int64     `json:"seq" db:"seq"`
	Kind        string    `json:"kind" db:"kind"`
	CommunityID string    `json:"communityId" db:"community_id"`
	ModeratorID string    `json:"moderatorId" db:"moderator_id"`
	TargetID    string    `json:"targetId" db:"target_id"`
	Reason      string    `json:"reason" db:"reason"`
	Duration    string    `json:"duration,omitempty" db:"duration"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// UserReport is the security profile assembled for view_user_info.
type UserReport struct {
	UserID         string   `json:"userId"`
	DisplayName    string   `json:"displayName"`
	Bot            bool     `json:"bot"`
	AccountAgeDays int      `json:"accountAgeDays"`
	JoinAgeDays    int      `json:"joinAgeDays"`
	RoleCount      int      `json:"roleCount"`
	WarningCount   int      `json:"warningCount"`
	Suspicious     []string `json:"suspicious,omitempty"`
}
