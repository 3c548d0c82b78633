package raidguard

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func TestViewAuditLogClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		env.gw.AddAudit(testCommunity, AuditEntry{
			ID: "a" + strconv.Itoa(i), ActorID: "mod-1", Kind: ActionBan,
		})
	}

	entries, err := env.guard.ViewAuditLog(ctx, testCommunity, ActionBan, 0)
	if err != nil {
		t.Fatalf("audit log failed: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("zero limit should default to 10, got %d", len(entries))
	}

	entries, err = env.guard.ViewAuditLog(ctx, testCommunity, ActionBan, 50)
	if err != nil {
		t.Fatalf("audit log failed: %v", err)
	}
	if len(entries) != 20 {
		t.Fatalf("limit should clamp to 20, got %d", len(entries))
	}

	// newest entry first
	if entries[0].ID != "a29" {
		t.Fatalf("expected newest entry first, got %s", entries[0].ID)
	}
}

func TestViewUserInfoFlagsSuspiciousAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	env.gw.AddMember(testCommunity, Member{
		ID:          "user-sus",
		DisplayName: "Sus",
		CreatedAt:   now.Add(-2 * 24 * time.Hour),
		JoinedAt:    now.Add(-24 * time.Hour),
		HasAvatar:   false,
	})

	report, err := env.guard.ViewUserInfo(ctx, testCommunity, "user-sus")
	if err != nil {
		t.Fatalf("user info failed: %v", err)
	}
	if report.AccountAgeDays != 2 || report.JoinAgeDays != 1 {
		t.Fatalf("unexpected ages: %+v", report)
	}
	if len(report.Suspicious) != 2 {
		t.Fatalf("expected age and avatar indicators, got %v", report.Suspicious)
	}

	env.gw.AddMember(testCommunity, Member{
		ID: "user-ok", DisplayName: "Ok",
		CreatedAt: now.AddDate(-1, 0, 0), JoinedAt: now.AddDate(0, -1, 0), HasAvatar: true,
	})
	report, err = env.guard.ViewUserInfo(ctx, testCommunity, "user-ok")
	if err != nil {
		t.Fatalf("user info failed: %v", err)
	}
	if len(report.Suspicious) != 0 {
		t.Fatalf("established account should carry no indicators, got %v", report.Suspicious)
	}
}

func TestViewUserInfoCountsWarnings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.gw.AddMember(testCommunity, Member{
		ID: "user-1", DisplayName: "Warned",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0), HasAvatar: true,
	})
	for i := 0; i < 3; i++ {
		if _, err := env.guard.Warn(ctx, testCommunity, "mod-1", "user-1", fmt.Sprintf("strike %d", i+1)); err != nil {
			t.Fatalf("warn failed: %v", err)
		}
	}

	report, err := env.guard.ViewUserInfo(ctx, testCommunity, "user-1")
	if err != nil {
		t.Fatalf("user info failed: %v", err)
	}
	if report.WarningCount != 3 {
		t.Fatalf("expected 3 warnings, got %d", report.WarningCount)
	}
	if len(report.Suspicious) != 1 {
		t.Fatalf("repeat warnings should be flagged, got %v", report.Suspicious)
	}
}

func TestSetMinAgeValidatesRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.guard.SetMinAge(ctx, testCommunity, "mod-1", -1); err == nil {
		t.Fatalf("negative days must be rejected")
	}
	if err := env.guard.SetMinAge(ctx, testCommunity, "mod-1", 400); err == nil {
		t.Fatalf("days above 365 must be rejected")
	}
	if err := env.guard.SetMinAge(ctx, testCommunity, "mod-1", 30); err != nil {
		t.Fatalf("valid update failed: %v", err)
	}
	if got := env.guard.Config().Get().MinAccountAgeDays; got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}

func TestLedgerSummaryAggregatesActions(t *testing.T) {
	ledger := NewSecurityLedger(time.Minute)
	ledger.Record(SecurityEvent{CommunityID: testCommunity, Action: "Lockdown"})
	ledger.Record(SecurityEvent{CommunityID: testCommunity, Action: "Lockdown"})
	ledger.Record(SecurityEvent{CommunityID: testCommunity, Action: "Silence"})
	ledger.Record(SecurityEvent{}) // no action, dropped

	summary := ledger.Summary()
	if summary.TotalEvents != 3 {
		t.Fatalf("expected 3 events, got %d", summary.TotalEvents)
	}
	if summary.ActionCounts["Lockdown"] != 2 || summary.ActionCounts["Silence"] != 1 {
		t.Fatalf("unexpected counts: %v", summary.ActionCounts)
	}
}

func TestLedgerExpiresOldEvents(t *testing.T) {
	ledger := NewSecurityLedger(30 * time.Millisecond)
	ledger.Record(SecurityEvent{Action: "Lockdown"})
	time.Sleep(60 * time.Millisecond)
	ledger.Record(SecurityEvent{Action: "Silence"})

	events := ledger.Snapshot()
	if len(events) != 1 || events[0].Action != "Silence" {
		t.Fatalf("expired events should be pruned, got %v", events)
	}
}
