package raidguard

import (
	"context"
	"fmt"
	"time"
)

func boolPtr(b bool) *bool { return &b }

// Lockdown suspends write access across every channel of the community. The
// current base-role overwrite of each channel is captured first so Unlock can
// restore it exactly. Per-channel failures are counted, not fatal; the record
// is persisted before success is reported.
func (g *Guard) Lockdown(ctx context.Context, communityID, initiatorID, reason string) (*SweepReport, error) {
	if reason == "" {
		reason = "Server lockdown initiated"
	}
	lock := g.communityLock(communityID)
	lock.Lock()
	defer lock.Unlock()

	g.mu.Lock()
	_, exists := g.lockdowns[communityID]
	g.mu.Unlock()
	if exists {
		return nil, ErrAlreadyLocked
	}

	channels, err := g.gateway.Channels(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	record := &LockdownRecord{
		CommunityID:      communityID,
		InitiatorID:      initiatorID,
		Reason:           reason,
		StartedAt:        time.Now().UTC(),
		SavedPermissions: make(map[string]PermissionSnapshot, len(channels)),
	}
	report := &SweepReport{}
	auditReason := "Lockdown: " + reason

	for _, ch := range channels {
		snap, err := g.gateway.EveryoneOverwrite(ctx, communityID, ch.ID)
		if err != nil {
			g.logger.Error().Err(err).Str("channel", ch.ID).Msg("lockdown: failed to capture overwrite")
			report.fail(ch.Name)
			continue
		}
		record.SavedPermissions[ch.ID] = snap

		locked := snap
		switch ch.Kind {
		case ChannelText:
			locked.CanSend = boolPtr(false)
		case ChannelVoice:
			locked.CanConnect = boolPtr(false)
			locked.CanSpeak = boolPtr(false)
		default:
			// categories keep a saved entry but are not mutated
			continue
		}
		if err := g.gateway.SetEveryoneOverwrite(ctx, communityID, ch.ID, locked, auditReason); err != nil {
			g.logger.Error().Err(err).Str("channel", ch.ID).Msg("lockdown: failed to lock channel")
			report.fail(ch.Name)
			continue
		}
		report.ok()
	}

	g.mu.Lock()
	g.lockdowns[communityID] = record
	g.mu.Unlock()
	if err := g.saveLockdowns(); err != nil {
		// channels are already locked; keep the in-memory record so Unlock
		// still works, but surface the persistence failure
		return report, fmt.Errorf("persist lockdown record: %w", err)
	}

	g.metrics.IncrementCounter("lockdowns_total", map[string]string{"community": communityID})
	g.logSecurityAction(ctx, communityID, "Lockdown", Target{Kind: TargetMember, ID: initiatorID}, reason,
		fmt.Sprintf("%d channels locked, %d failed", report.Succeeded, report.Failed))
	return report, nil
}

// Unlock reverses a lockdown: channels with a saved overwrite get exactly
// those flags back, channels added during the lockdown have their overwrite
// cleared. The record is deleted only after the sweep completes, success or
// partial.
func (g *Guard) Unlock(ctx context.Context, communityID, initiatorID, reason string) (*SweepReport, error) {
	if reason == "" {
		reason = "Server lockdown lifted"
	}
	lock := g.communityLock(communityID)
	lock.Lock()
	defer lock.Unlock()

	g.mu.Lock()
	record, exists := g.lockdowns[communityID]
	g.mu.Unlock()
	if !exists {
		return nil, ErrNotLocked
	}

	channels, err := g.gateway.Channels(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	report := &SweepReport{}
	auditReason := "Unlock: " + reason

	for _, ch := range channels {
		// categories were never mutated, so there is nothing to restore
		if ch.Kind == ChannelCategory {
			continue
		}
		saved, ok := record.SavedPermissions[ch.ID]
		if ok {
			err = g.gateway.SetEveryoneOverwrite(ctx, communityID, ch.ID, saved, auditReason)
		} else {
			err = g.gateway.ClearEveryoneOverwrite(ctx, communityID, ch.ID, auditReason)
		}
		if err != nil {
			g.logger.Error().Err(err).Str("channel", ch.ID).Msg("unlock: failed to restore channel")
			report.fail(ch.Name)
			continue
		}
		report.ok()
	}

	g.mu.Lock()
	delete(g.lockdowns, communityID)
	g.mu.Unlock()
	if err := g.saveLockdowns(); err != nil {
		return report, fmt.Errorf("persist lockdown record: %w", err)
	}

	g.logSecurityAction(ctx, communityID, "Unlock", Target{Kind: TargetMember, ID: initiatorID}, reason,
		fmt.Sprintf("%d channels restored, %d failed", report.Succeeded, report.Failed))
	return report, nil
}
