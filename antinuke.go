package raidguard

import (
	"context"
	"fmt"
)

// HandleMemberBan feeds a ban event into the abuse detector.
func (g *Guard) HandleMemberBan(ctx context.Context, communityID string) {
	g.checkAbuse(ctx, communityID, ActionBan)
}

// HandleMemberRemove feeds a member-remove event into the abuse detector,
// attributing it to a kick when the audit trail says so.
func (g *Guard) HandleMemberRemove(ctx context.Context, communityID string) {
	g.checkAbuse(ctx, communityID, ActionKick)
}

// HandleChannelDelete feeds a channel-delete event into the abuse detector.
func (g *Guard) HandleChannelDelete(ctx context.Context, communityID string) {
	g.checkAbuse(ctx, communityID, ActionChannelDelete)
}

// checkAbuse resolves the actor behind the newest audit entry of the given
// kind and records the action against their sliding window. Events the engine
// caused itself never count.
func (g *Guard) checkAbuse(ctx context.Context, communityID string, kind ActionKind) {
	entries, err := g.gateway.AuditTrail(ctx, communityID, kind, 1)
	if err != nil {
		g.logger.Error().Err(err).Str("kind", string(kind)).Msg("antinuke: audit trail query failed")
		return
	}
	if len(entries) == 0 {
		return
	}
	actorID := entries[0].ActorID
	if actorID == "" || actorID == g.gateway.BotID() {
		return
	}
	g.RecordStaffAction(ctx, communityID, actorID, kind)
}

// RecordStaffAction applies the anti-nuke policy to one attributed privileged
// action. It is exported so callers with their own attribution (role-delete,
// webhook-delete) can feed the same window.
func (g *Guard) RecordStaffAction(ctx context.Context, communityID, actorID string, kind ActionKind) {
	if !g.config.Get().AntiNukeEnabled {
		return
	}

	actor, err := g.gateway.Member(ctx, communityID, actorID)
	if err != nil || actor == nil {
		return
	}
	if actor.Bot {
		return
	}
	if g.isImmune(ctx, communityID, actor) {
		g.logger.Debug().Str("user", actorID).Msg("antinuke: skipping immune member")
		return
	}
	if !g.isStaff(ctx, communityID, actor) {
		return
	}

	key := fmt.Sprintf("nuke|%s|%s|%s", communityID, actorID, kind)
	count, err := g.counters.Hit(ctx, key, g.opts.NukeWindow)
	if err != nil {
		g.logger.Error().Err(err).Str("key", key).Msg("antinuke: counter update failed")
		return
	}
	// fire exactly once, on the hit that reaches the threshold
	if count != g.opts.NukeThreshold {
		return
	}

	g.revokePrivileges(ctx, communityID, actor, kind, count)
}

// revokePrivileges strips every role from the actor except the base role.
// Per-role failures are suppressed; the actor is never kicked or banned.
func (g *Guard) revokePrivileges(ctx context.Context, communityID string, actor *Member, kind ActionKind, count int) {
	reason := "Anti-nuke: suspicious activity detected"
	removed := 0
	for _, roleID := range actor.RoleIDs {
		if err := g.gateway.RevokeRole(ctx, communityID, actor.ID, roleID, reason); err != nil {
			g.logger.Error().Err(err).Str("user", actor.ID).Str("role", roleID).Msg("antinuke: failed to revoke role")
			continue
		}
		removed++
	}

	g.metrics.IncrementCounter("antinuke_triggers_total", map[string]string{
		"community": communityID,
		"kind":      string(kind),
	})
	g.logger.Warn().
		Str("community", communityID).
		Str("user", actor.ID).
		Str("kind", string(kind)).
		Int("count", count).
		Int("roles_removed", removed).
		Msg("antinuke: privilege revocation triggered")
	g.logSecurityAction(ctx, communityID, "Anti-Nuke Triggered",
		Target{Kind: TargetMember, ID: actor.ID, Name: actor.DisplayName},
		fmt.Sprintf("Suspicious activity detected: %s x%d", kind, count),
		fmt.Sprintf("%d roles removed", removed))
}
