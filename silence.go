package raidguard

import (
	"context"
	"fmt"
	"time"
)

// Silence grants the configured mute role to every regular member of the
// community and schedules its removal after the given duration. Bots, immune
// members, staff and members already holding the role are skipped. Per-member
// failures are counted, not fatal.
func (g *Guard) Silence(ctx context.Context, communityID, initiatorID string, d time.Duration, reason string) (*SweepReport, error) {
	if reason == "" {
		reason = "Server-wide silence"
	}
	cfg := g.config.Get()
	if cfg.MuteRoleRef == "" {
		return nil, ErrMuteRoleNotConfigured
	}
	exists, err := g.gateway.RoleExists(ctx, communityID, cfg.MuteRoleRef)
	if err != nil {
		return nil, fmt.Errorf("check mute role: %w", err)
	}
	if !exists {
		return nil, ErrMuteRoleNotFound
	}

	members, err := g.gateway.Members(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	report := &SweepReport{}
	var muted []string
	auditReason := "Silence: " + reason
	for i := range members {
		m := &members[i]
		if m.Bot || m.HasRole(cfg.MuteRoleRef) {
			continue
		}
		if g.isImmune(ctx, communityID, m) || g.isStaff(ctx, communityID, m) {
			continue
		}
		if err := g.gateway.GrantRole(ctx, communityID, m.ID, cfg.MuteRoleRef, auditReason); err != nil {
			g.logger.Error().Err(err).Str("user", m.ID).Msg("silence: failed to mute member")
			report.fail(m.DisplayName)
			continue
		}
		muted = append(muted, m.ID)
		report.ok()
	}

	if d > 0 {
		g.scheduleUnmute(communityID, cfg.MuteRoleRef, muted, d)
	}

	g.metrics.IncrementCounter("silences_total", map[string]string{"community": communityID})
	g.logSecurityAction(ctx, communityID, "Silence", Target{Kind: TargetMember, ID: initiatorID}, reason,
		fmt.Sprintf("%d members muted for %s, %d failed", report.Succeeded, d, report.Failed))
	return report, nil
}

// scheduleUnmute arms the deferred sweep that lifts a timed silence. Immunity
// and staff status are re-checked at fire time since either may have changed
// since scheduling; members who left in the meantime are tolerated.
func (g *Guard) scheduleUnmute(communityID, muteRole string, userIDs []string, d time.Duration) {
	time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		restored := 0
		for _, userID := range userIDs {
			m, err := g.gateway.Member(ctx, communityID, userID)
			if err != nil || m == nil {
				continue
			}
			if !m.HasRole(muteRole) {
				continue
			}
			if g.isImmune(ctx, communityID, m) || g.isStaff(ctx, communityID, m) {
				continue
			}
			if err := g.gateway.RevokeRole(ctx, communityID, userID, muteRole, "Silence expired"); err != nil {
				g.logger.Error().Err(err).Str("user", userID).Msg("silence: failed to unmute member")
				continue
			}
			restored++
		}
		g.logger.Info().
			Str("community", communityID).
			Int("restored", restored).
			Int("scheduled", len(userIDs)).
			Msg("silence: timed silence lifted")
	})
}

// PauseInvites deletes every active invite and denies invite creation across
// all channels, shutting down the primary raid ingress.
func (g *Guard) PauseInvites(ctx context.Context, communityID, initiatorID, reason string) (*SweepReport, error) {
	if reason == "" {
		reason = "Invites paused"
	}
	report := &SweepReport{}
	auditReason := "Pause invites: " + reason

	invites, err := g.gateway.Invites(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	for _, inv := range invites {
		if err := g.gateway.DeleteInvite(ctx, communityID, inv.Code, auditReason); err != nil {
			g.logger.Error().Err(err).Str("invite", inv.Code).Msg("invites: failed to delete invite")
			report.fail(inv.Code)
			continue
		}
		report.ok()
	}

	channels, err := g.gateway.Channels(ctx, communityID)
	if err != nil {
		return report, fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Kind == ChannelCategory {
			continue
		}
		if err := g.gateway.DenyInviteCreation(ctx, communityID, ch.ID, auditReason); err != nil {
			g.logger.Error().Err(err).Str("channel", ch.ID).Msg("invites: failed to deny invite creation")
			report.fail(ch.Name)
			continue
		}
		report.ok()
	}

	g.metrics.IncrementCounter("invite_pauses_total", map[string]string{"community": communityID})
	g.logSecurityAction(ctx, communityID, "Invites Paused", Target{Kind: TargetMember, ID: initiatorID}, reason,
		fmt.Sprintf("%d invites deleted", len(invites)))
	return report, nil
}
