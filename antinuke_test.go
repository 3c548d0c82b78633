package raidguard

import (
	"context"
	"testing"
	"time"
)

func seedStaffActor(env *testEnv, userID string) {
	env.gw.AddMember(testCommunity, Member{
		ID:          userID,
		DisplayName: "Rogue Mod",
		RoleIDs:     []string{"role-staff", "role-extra"},
		CreatedAt:   time.Now().AddDate(-1, 0, 0),
	})
	env.gw.AddAudit(testCommunity, AuditEntry{
		ID:      "audit-1",
		ActorID: userID,
		Kind:    ActionChannelDelete,
		Target:  Target{Kind: TargetChannel, ID: "ch-x", Name: "deleted"},
	})
}

func actorRoles(t *testing.T, env *testEnv, userID string) []string {
	t.Helper()
	m, err := env.gw.Member(context.Background(), testCommunity, userID)
	if err != nil || m == nil {
		t.Fatalf("actor lookup failed: %v", err)
	}
	return m.RoleIDs
}

func TestAntiNukeFiresExactlyAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedStaffActor(env, "mod-rogue")

	// four deletions inside the window stay below the default threshold of five
	for i := 0; i < defaultNukeThreshold-1; i++ {
		env.guard.HandleChannelDelete(ctx, testCommunity)
	}
	if roles := actorRoles(t, env, "mod-rogue"); len(roles) != 2 {
		t.Fatalf("roles must be intact below the threshold, got %v", roles)
	}

	// the fifth fires the revocation
	env.guard.HandleChannelDelete(ctx, testCommunity)
	if roles := actorRoles(t, env, "mod-rogue"); len(roles) != 0 {
		t.Fatalf("all roles should be revoked at the threshold, got %v", roles)
	}
	if got := env.metrics.GetCounterValue("antinuke_triggers_total",
		map[string]string{"community": testCommunity, "kind": "channel_delete"}); got != 1 {
		t.Fatalf("expected one trigger, got %d", got)
	}
}

func TestAntiNukeWindowResets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedStaffActor(env, "mod-rogue")
	env.guard.opts.NukeWindow = 100 * time.Millisecond
	env.guard.opts.NukeThreshold = 3

	env.guard.HandleChannelDelete(ctx, testCommunity)
	env.guard.HandleChannelDelete(ctx, testCommunity)
	time.Sleep(150 * time.Millisecond)

	// the gap exceeded the window, so the count restarted at one
	env.guard.HandleChannelDelete(ctx, testCommunity)
	if roles := actorRoles(t, env, "mod-rogue"); len(roles) != 2 {
		t.Fatalf("stale hits must not count toward the threshold, got %v", roles)
	}
}

func TestAntiNukeIgnoresBotAndNonStaff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// actions attributed to the engine itself never count
	env.gw.AddAudit(testCommunity, AuditEntry{ID: "a1", ActorID: "bot-1", Kind: ActionBan})
	for i := 0; i < defaultNukeThreshold+1; i++ {
		env.guard.HandleMemberBan(ctx, testCommunity)
	}

	// a non-staff member is outside the detector's scope
	env.gw.AddMember(testCommunity, Member{ID: "user-plain", RoleIDs: []string{"role-extra"}})
	env.gw.AddAudit(testCommunity, AuditEntry{ID: "a2", ActorID: "user-plain", Kind: ActionBan})
	for i := 0; i < defaultNukeThreshold+1; i++ {
		env.guard.HandleMemberBan(ctx, testCommunity)
	}
	if roles := actorRoles(t, env, "user-plain"); len(roles) != 1 {
		t.Fatalf("non-staff member must keep roles, got %v", roles)
	}
}

func TestAntiNukeRespectsDisableToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedStaffActor(env, "mod-rogue")
	if err := env.guard.Config().Mutate(func(c *SecurityConfig) { c.AntiNukeEnabled = false }); err != nil {
		t.Fatalf("config update failed: %v", err)
	}

	for i := 0; i < defaultNukeThreshold+2; i++ {
		env.guard.HandleChannelDelete(ctx, testCommunity)
	}
	if roles := actorRoles(t, env, "mod-rogue"); len(roles) != 2 {
		t.Fatalf("disabled detector must not revoke roles, got %v", roles)
	}
}

func TestAntiNukeSeparatesActorsAndKinds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.guard.opts.NukeThreshold = 3

	env.gw.AddMember(testCommunity, Member{ID: "mod-a", RoleIDs: []string{"role-staff"}})
	env.gw.AddMember(testCommunity, Member{ID: "mod-b", RoleIDs: []string{"role-staff"}})

	// two kicks by A and two bans by B: four privileged actions, but no
	// single (actor, kind) window reaches three
	for i := 0; i < 2; i++ {
		env.guard.RecordStaffAction(ctx, testCommunity, "mod-a", ActionKick)
		env.guard.RecordStaffAction(ctx, testCommunity, "mod-b", ActionBan)
	}
	if len(actorRoles(t, env, "mod-a")) != 1 || len(actorRoles(t, env, "mod-b")) != 1 {
		t.Fatalf("independent windows must not cross-contaminate")
	}
}
