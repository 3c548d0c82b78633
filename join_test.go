package raidguard

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestJoinKicksAccountsBelowMinimumAge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// default minimum is 7 days: a 3-day-old account is removed
	young := Member{ID: "user-young", DisplayName: "Fresh", CreatedAt: time.Now().UTC().Add(-3 * 24 * time.Hour)}
	env.gw.AddMember(testCommunity, young)
	env.guard.HandleMemberJoin(ctx, testCommunity, young)

	kicked := env.gw.Kicked()
	if len(kicked) != 1 || kicked[0] != "user-young" {
		t.Fatalf("expected the young account to be kicked, got %v", kicked)
	}

	// a 10-day-old account passes
	old := Member{ID: "user-old", DisplayName: "Settled", CreatedAt: time.Now().UTC().Add(-10 * 24 * time.Hour)}
	env.gw.AddMember(testCommunity, old)
	env.guard.HandleMemberJoin(ctx, testCommunity, old)
	if len(env.gw.Kicked()) != 1 {
		t.Fatalf("old account must not be kicked, got %v", env.gw.Kicked())
	}
}

func TestJoinQuarantinesNewMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.gw.AddRole(testCommunity, "role-quarantine")
	err := env.guard.Config().Mutate(func(c *SecurityConfig) {
		c.QuarantineRoleRef = "role-quarantine"
		c.AutoAgeCheckEnabled = false
	})
	if err != nil {
		t.Fatalf("config update failed: %v", err)
	}

	m := Member{ID: "user-new", CreatedAt: time.Now().UTC().AddDate(0, -1, 0)}
	env.gw.AddMember(testCommunity, m)
	env.guard.HandleMemberJoin(ctx, testCommunity, m)

	got, err := env.gw.Member(ctx, testCommunity, "user-new")
	if err != nil || got == nil {
		t.Fatalf("member lookup failed: %v", err)
	}
	if !got.HasRole("role-quarantine") {
		t.Fatalf("member should hold the quarantine role, got %v", got.RoleIDs)
	}
}

func TestJoinQuarantineFailureDoesNotBlockAgeCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.gw.AddRole(testCommunity, "role-quarantine")
	err := env.guard.Config().Mutate(func(c *SecurityConfig) {
		c.QuarantineRoleRef = "role-quarantine"
	})
	if err != nil {
		t.Fatalf("config update failed: %v", err)
	}
	env.gw.FailOp("GrantRole", context.DeadlineExceeded)

	young := Member{ID: "user-young", CreatedAt: time.Now().UTC().Add(-24 * time.Hour)}
	env.gw.AddMember(testCommunity, young)
	env.guard.HandleMemberJoin(ctx, testCommunity, young)

	if len(env.gw.Kicked()) != 1 {
		t.Fatalf("age check must run even when quarantine fails, got %v", env.gw.Kicked())
	}
}

func TestJoinSkipsBotsAndImmuneMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bot := Member{ID: "bot-2", Bot: true, CreatedAt: time.Now().UTC()}
	immune := Member{ID: "user-immune", RoleIDs: []string{"role-immune"}, CreatedAt: time.Now().UTC()}
	env.gw.AddMember(testCommunity, bot)
	env.gw.AddMember(testCommunity, immune)

	env.guard.HandleMemberJoin(ctx, testCommunity, bot)
	env.guard.HandleMemberJoin(ctx, testCommunity, immune)
	if len(env.gw.Kicked()) != 0 {
		t.Fatalf("bots and immune members must never be kicked, got %v", env.gw.Kicked())
	}
}

func TestJoinKickReasonNamesBothAges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	young := Member{ID: "user-young", CreatedAt: time.Now().UTC().Add(-3 * 24 * time.Hour)}
	env.gw.AddMember(testCommunity, young)
	env.guard.HandleMemberJoin(ctx, testCommunity, young)

	events := env.guard.Ledger().Snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one ledger event, got %d", len(events))
	}
	if !strings.Contains(events[0].Reason, "3 days") || !strings.Contains(events[0].Reason, "7 days") {
		t.Fatalf("reason should carry actual and minimum age, got %q", events[0].Reason)
	}
}

func TestAccountAgeDays(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		created time.Time
		want    int
	}{
		{time.Time{}, 0},
		{now.Add(time.Hour), 0},
		{now.Add(-23 * time.Hour), 0},
		{now.Add(-25 * time.Hour), 1},
		{now.AddDate(0, 0, -30), 30},
	}
	for _, c := range cases {
		if got := accountAgeDays(c.created, now); got != c.want {
			t.Fatalf("accountAgeDays(%v) = %d, want %d", c.created, got, c.want)
		}
	}
}
