package raidguard

import (
	"context"
	"fmt"
	"time"
)

func accountAgeDays(createdAt time.Time, now time.Time) int {
	if createdAt.IsZero() || createdAt.After(now) {
		return 0
	}
	return int(now.Sub(createdAt).Hours() / 24)
}

// HandleMemberJoin runs the join-time checks: auto-quarantine and the minimum
// account age gate. The two checks are independent; quarantine failing or
// succeeding never blocks the age check. Bots and immune members are skipped
// entirely.
func (g *Guard) HandleMemberJoin(ctx context.Context, communityID string, member Member) {
	if member.Bot {
		return
	}
	if g.isImmune(ctx, communityID, &member) {
		g.logger.Info().Str("user", member.ID).Msg("join: skipping checks for immune member")
		return
	}

	cfg := g.config.Get()

	if cfg.AutoQuarantineEnabled && cfg.QuarantineRoleRef != "" {
		exists, err := g.gateway.RoleExists(ctx, communityID, cfg.QuarantineRoleRef)
		if err == nil && exists {
			if err := g.gateway.GrantRole(ctx, communityID, member.ID, cfg.QuarantineRoleRef, "Auto-quarantine: new member"); err != nil {
				g.logger.Error().Err(err).Str("user", member.ID).Msg("join: failed to quarantine member")
			} else {
				g.logger.Info().Str("user", member.ID).Msg("join: auto-quarantined member")
				g.metrics.IncrementCounter("joins_quarantined_total", map[string]string{"community": communityID})
			}
		}
	}

	if cfg.AutoAgeCheckEnabled {
		age := accountAgeDays(member.CreatedAt, time.Now().UTC())
		if age < cfg.MinAccountAgeDays {
			reason := fmt.Sprintf("Account age %d days below minimum %d days", age, cfg.MinAccountAgeDays)
			if err := g.gateway.KickMember(ctx, communityID, member.ID, reason); err != nil {
				g.logger.Error().Err(err).Str("user", member.ID).Msg("join: failed to kick underage account")
				return
			}
			g.metrics.IncrementCounter("joins_age_kicked_total", map[string]string{"community": communityID})
			g.recordProtectiveAction(ctx, communityID, "Auto-Kick (Age Check)",
				Target{Kind: TargetMember, ID: member.ID, Name: member.DisplayName}, reason)
		}
	}
}
