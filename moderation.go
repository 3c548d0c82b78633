package raidguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrTargetImmune is returned when a moderation command targets a member the
// immunity gate protects.
var ErrTargetImmune = errors.New("target member is immune")

// newCase allocates the next case number for the community and persists the
// record. Case persistence failure is logged but never blocks the action that
// already happened on the platform.
func (g *Guard) newCase(ctx context.Context, kind, communityID, moderatorID, targetID, reason, duration string) {
	if g.warnings == nil {
		return
	}
	seq, err := g.warnings.NextCaseSeq(ctx, communityID)
	if err != nil {
		g.logger.Error().Err(err).Str("community", communityID).Msg("moderation: failed to allocate case number")
		return
	}
	c := CaseRecord{
		ID:          uuid.NewString(),
		Seq:         seq,
		Kind:        kind,
		CommunityID: communityID,
		ModeratorID: moderatorID,
		TargetID:    targetID,
		Reason:      reason,
		Duration:    duration,
		CreatedAt:   time.Now().UTC(),
	}
	if err := g.warnings.AddCase(ctx, c); err != nil {
		g.logger.Error().Err(err).Str("case", c.ID).Msg("moderation: failed to persist case")
	}
}

// checkTarget resolves the target member and applies the immunity gate.
func (g *Guard) checkTarget(ctx context.Context, communityID, userID string) (*Member, error) {
	m, err := g.gateway.Member(ctx, communityID, userID)
	if err != nil {
		return nil, fmt.Errorf("look up member: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("member %s not found", userID)
	}
	if g.isImmune(ctx, communityID, m) {
		return nil, ErrTargetImmune
	}
	return m, nil
}

// Ban removes the member permanently and records a case.
func (g *Guard) Ban(ctx context.Context, communityID, moderatorID, userID, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}
	m, err := g.checkTarget(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if err := g.gateway.BanMember(ctx, communityID, userID, reason); err != nil {
		return fmt.Errorf("ban member: %w", err)
	}
	g.newCase(ctx, "ban", communityID, moderatorID, userID, reason, "")
	g.metrics.IncrementCounter("moderation_actions_total", map[string]string{"kind": "ban"})
	g.logSecurityAction(ctx, communityID, "Member Banned",
		Target{Kind: TargetMember, ID: userID, Name: m.DisplayName}, reason, "")
	return nil
}

// Kick removes the member and records a case.
func (g *Guard) Kick(ctx context.Context, communityID, moderatorID, userID, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}
	m, err := g.checkTarget(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if err := g.gateway.KickMember(ctx, communityID, userID, reason); err != nil {
		return fmt.Errorf("kick member: %w", err)
	}
	g.newCase(ctx, "kick", communityID, moderatorID, userID, reason, "")
	g.metrics.IncrementCounter("moderation_actions_total", map[string]string{"kind": "kick"})
	g.logSecurityAction(ctx, communityID, "Member Kicked",
		Target{Kind: TargetMember, ID: userID, Name: m.DisplayName}, reason, "")
	return nil
}

// Timeout mutes the member for the given duration and records a case.
func (g *Guard) Timeout(ctx context.Context, communityID, moderatorID, userID string, d time.Duration, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}
	if d <= 0 {
		return fmt.Errorf("timeout duration must be positive")
	}
	m, err := g.checkTarget(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if err := g.gateway.TimeoutMember(ctx, communityID, userID, d, reason); err != nil {
		return fmt.Errorf("timeout member: %w", err)
	}
	g.newCase(ctx, "timeout", communityID, moderatorID, userID, reason, d.String())
	g.metrics.IncrementCounter("moderation_actions_total", map[string]string{"kind": "timeout"})
	g.logSecurityAction(ctx, communityID, "Member Timed Out",
		Target{Kind: TargetMember, ID: userID, Name: m.DisplayName}, reason, "Duration: "+d.String())
	return nil
}

// Warn records a persisted warning against the member and a case alongside it.
func (g *Guard) Warn(ctx context.Context, communityID, moderatorID, userID, reason string) (*Warning, error) {
	if reason == "" {
		reason = "No reason provided"
	}
	if g.warnings == nil {
		return nil, errors.New("warning store not configured")
	}
	m, err := g.checkTarget(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	w := Warning{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		UserID:      userID,
		ModeratorID: moderatorID,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := g.warnings.AddWarning(ctx, w); err != nil {
		return nil, fmt.Errorf("persist warning: %w", err)
	}
	g.newCase(ctx, "warn", communityID, moderatorID, userID, reason, "")
	g.metrics.IncrementCounter("moderation_actions_total", map[string]string{"kind": "warn"})
	g.logSecurityAction(ctx, communityID, "Member Warned",
		Target{Kind: TargetMember, ID: userID, Name: m.DisplayName}, reason, "")
	return &w, nil
}

// Warnings lists the persisted warnings for a member, newest first.
func (g *Guard) Warnings(ctx context.Context, communityID, userID string, limit int) ([]Warning, error) {
	if g.warnings == nil {
		return nil, errors.New("warning store not configured")
	}
	return g.warnings.ListWarnings(ctx, communityID, userID, limit)
}

// Purge bulk-deletes up to limit recent messages from a channel. limit is
// clamped to 1..100.
func (g *Guard) Purge(ctx context.Context, communityID, moderatorID, channelID string, limit int) (int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	deleted, err := g.gateway.PurgeMessages(ctx, channelID, limit)
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	g.newCase(ctx, "purge", communityID, moderatorID, channelID, fmt.Sprintf("%d messages purged", deleted), "")
	g.metrics.IncrementCounter("moderation_actions_total", map[string]string{"kind": "purge"})
	g.logSecurityAction(ctx, communityID, "Messages Purged",
		Target{Kind: TargetChannel, ID: channelID}, fmt.Sprintf("%d messages removed", deleted), "")
	return deleted, nil
}

// Unban lifts a ban and records a case.
func (g *Guard) Unban(ctx context.Context, communityID, moderatorID, userID, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}
	if err := g.gateway.UnbanMember(ctx, communityID, userID, reason); err != nil {
		return fmt.Errorf("unban member: %w", err)
	}
	g.newCase(ctx, "unban", communityID, moderatorID, userID, reason, "")
	g.metrics.IncrementCounter("moderation_actions_total", map[string]string{"kind": "unban"})
	g.logSecurityAction(ctx, communityID, "Member Unbanned",
		Target{Kind: TargetMember, ID: userID}, reason, "")
	return nil
}
