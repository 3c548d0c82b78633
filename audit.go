package raidguard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SecurityEvent is one protective or administrative action the engine took.
type SecurityEvent struct {
	CommunityID string    `json:"communityId"`
	Action      string    `json:"action"`
	Target      Target    `json:"target"`
	Reason      string    `json:"reason"`
	Details     string    `json:"details,omitempty"`
	Recorded    time.Time `json:"recorded"`
}

// SecurityLedger keeps a TTL-bounded in-memory record of recent security
// events for status surfaces.
type SecurityLedger struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries []SecurityEvent
}

// LedgerSummary aggregates the live ledger entries by action name.
type LedgerSummary struct {
	ActionCounts map[string]int `json:"actionCounts"`
	TotalEvents  int            `json:"totalEvents"`
	LastUpdated  time.Time      `json:"lastUpdated"`
}

func NewSecurityLedger(ttl time.Duration) *SecurityLedger {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SecurityLedger{ttl: ttl}
}

func (l *SecurityLedger) Record(event SecurityEvent) {
	if event.Action == "" {
		return
	}
	event.Recorded = time.Now()
	l.mu.Lock()
	l.entries = append(l.entries, event)
	l.mu.Unlock()
}

// Snapshot returns the live entries, oldest first, pruning expired ones.
func (l *SecurityLedger) Snapshot() []SecurityEvent {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	live := l.entries[:0]
	for _, e := range l.entries {
		if now.Sub(e.Recorded) > l.ttl {
			continue
		}
		live = append(live, e)
	}
	l.entries = live
	out := make([]SecurityEvent, len(live))
	copy(out, live)
	return out
}

func (l *SecurityLedger) Summary() LedgerSummary {
	summary := LedgerSummary{ActionCounts: make(map[string]int)}
	for _, e := range l.Snapshot() {
		summary.ActionCounts[e.Action]++
		summary.TotalEvents++
		if e.Recorded.After(summary.LastUpdated) {
			summary.LastUpdated = e.Recorded
		}
	}
	return summary
}

// logSecurityAction fans one security event out to the structured log, the
// ledger, the notification registry and the configured log channel. Channel
// delivery failure never affects the caller.
func (g *Guard) logSecurityAction(ctx context.Context, communityID, action string, target Target, reason, details string) {
	g.logger.Info().
		Str("community", communityID).
		Str("action", action).
		Str("target", target.String()).
		Str("reason", reason).
		Msg("security action")

	g.ledger.Record(SecurityEvent{
		CommunityID: communityID,
		Action:      action,
		Target:      target,
		Reason:      reason,
		Details:     details,
	})

	g.notify.Broadcast(&SecurityNotice{
		CommunityID: communityID,
		Action:      action,
		Target:      target.String(),
		Reason:      reason,
		Details:     details,
		Timestamp:   time.Now().UTC(),
	})

	if g.opts.LogChannelRef != "" {
		content := fmt.Sprintf("**%s**\nTarget: %s\nReason: %s", action, target, reason)
		if details != "" {
			content += "\n" + details
		}
		if err := g.gateway.SendMessage(ctx, g.opts.LogChannelRef, content); err != nil {
			g.logger.Error().Err(err).Str("channel", g.opts.LogChannelRef).Msg("audit: failed to post to log channel")
		}
	}
}

func (g *Guard) recordProtectiveAction(ctx context.Context, communityID, action string, target Target, reason string) {
	g.logSecurityAction(ctx, communityID, action, target, reason, "")
}

// ViewAuditLog returns recent moderation-relevant audit entries of the given
// kind, newest first. limit is clamped to 1..20 and defaults to 10.
func (g *Guard) ViewAuditLog(ctx context.Context, communityID string, kind ActionKind, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 20 {
		limit = 20
	}
	entries, err := g.gateway.AuditTrail(ctx, communityID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	return entries, nil
}

// ViewUserInfo assembles the security profile for one member, including the
// heuristic suspicion indicators.
func (g *Guard) ViewUserInfo(ctx context.Context, communityID, userID string) (*UserReport, error) {
	m, err := g.gateway.Member(ctx, communityID, userID)
	if err != nil {
		return nil, fmt.Errorf("look up member: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("member %s not found", userID)
	}

	now := time.Now().UTC()
	report := &UserReport{
		UserID:         m.ID,
		DisplayName:    m.DisplayName,
		Bot:            m.Bot,
		AccountAgeDays: accountAgeDays(m.CreatedAt, now),
		JoinAgeDays:    accountAgeDays(m.JoinedAt, now),
		RoleCount:      len(m.RoleIDs),
	}

	if g.warnings != nil {
		count, err := g.warnings.CountWarnings(ctx, communityID, userID)
		if err != nil {
			g.logger.Error().Err(err).Str("user", userID).Msg("audit: failed to count warnings")
		} else {
			report.WarningCount = count
		}
	}

	cfg := g.config.Get()
	if report.AccountAgeDays < cfg.MinAccountAgeDays {
		report.Suspicious = append(report.Suspicious,
			fmt.Sprintf("account younger than %d days", cfg.MinAccountAgeDays))
	}
	if !m.HasAvatar {
		report.Suspicious = append(report.Suspicious, "no avatar set")
	}
	if report.WarningCount >= 3 {
		report.Suspicious = append(report.Suspicious,
			fmt.Sprintf("%d prior warnings", report.WarningCount))
	}
	return report, nil
}

// SetMinAge updates the minimum account age gate. days must be within 0..365.
func (g *Guard) SetMinAge(ctx context.Context, communityID, initiatorID string, days int) error {
	if days < 0 || days > 365 {
		return fmt.Errorf("minimum age must be between 0 and 365 days, got %d", days)
	}
	if err := g.config.Mutate(func(c *SecurityConfig) { c.MinAccountAgeDays = days }); err != nil {
		return err
	}
	g.logSecurityAction(ctx, communityID, "Minimum Age Updated",
		Target{Kind: TargetOther, Name: "security policy"},
		fmt.Sprintf("Minimum account age set to %d days", days), "")
	return nil
}
