package raidguard

import (
	"context"
	"testing"
)

func spamMessage(author Member, content string, mentions ...string) Message {
	return Message{
		ID:          "msg-1",
		CommunityID: testCommunity,
		ChannelID:   "ch-text",
		Author:      author,
		Content:     content,
		MentionIDs:  mentions,
	}
}

func TestScamLinkTakesPrecedenceOverLinkVolume(t *testing.T) {
	env := newTestEnv(t)
	author := Member{ID: "user-1", DisplayName: "Spammer"}

	// three links would also trip the volume threshold, but the scam match wins
	content := "https://discord-nitro.com/free https://example.com/a https://example.com/b"
	env.guard.HandleMessage(context.Background(), spamMessage(author, content))

	if len(env.gw.Deleted()) != 1 {
		t.Fatalf("expected one deleted message, got %v", env.gw.Deleted())
	}
	d, ok := env.gw.TimeoutFor(testCommunity, "user-1")
	if !ok || d != scamTimeout {
		t.Fatalf("expected scam timeout %v, got %v (%v)", scamTimeout, d, ok)
	}
	sent := env.gw.Sent()
	if len(sent) != 1 || sent[0].TTL == 0 {
		t.Fatalf("expected a transient scam warning, got %v", sent)
	}
}

func TestLinkVolumeThresholdWalk(t *testing.T) {
	env := newTestEnv(t)
	author := Member{ID: "user-1", DisplayName: "Poster"}

	// default threshold is 3: two links pass
	env.guard.HandleMessage(context.Background(), spamMessage(author, "https://a.example https://b.example"))
	if len(env.gw.Deleted()) != 0 {
		t.Fatalf("two links should not be remediated")
	}

	// three links trip the filter
	env.guard.HandleMessage(context.Background(), spamMessage(author, "https://a.example https://b.example https://c.example"))
	if len(env.gw.Deleted()) != 1 {
		t.Fatalf("three links should be deleted")
	}
	d, ok := env.gw.TimeoutFor(testCommunity, "user-1")
	if !ok || d != linkTimeout {
		t.Fatalf("expected link timeout %v, got %v (%v)", linkTimeout, d, ok)
	}
}

func TestMentionSpamCountsDistinctMentions(t *testing.T) {
	env := newTestEnv(t)
	author := Member{ID: "user-1", DisplayName: "Pinger"}

	// six mentions of the same user are one distinct mention
	env.guard.HandleMessage(context.Background(),
		spamMessage(author, "hey", "u2", "u2", "u2", "u2", "u2", "u2"))
	if len(env.gw.Deleted()) != 0 {
		t.Fatalf("repeated mentions of one user should not be remediated")
	}

	// four distinct stays under the default threshold of five
	env.guard.HandleMessage(context.Background(),
		spamMessage(author, "hey", "u2", "u3", "u4", "u5"))
	if len(env.gw.Deleted()) != 0 {
		t.Fatalf("four distinct mentions should not be remediated")
	}

	env.guard.HandleMessage(context.Background(),
		spamMessage(author, "hey", "u2", "u3", "u4", "u5", "u6"))
	if len(env.gw.Deleted()) != 1 {
		t.Fatalf("five distinct mentions should be remediated")
	}
	d, ok := env.gw.TimeoutFor(testCommunity, "user-1")
	if !ok || d != mentionTimeout {
		t.Fatalf("expected mention timeout %v, got %v (%v)", mentionTimeout, d, ok)
	}
}

func TestSpamSkipsPrivilegedAuthors(t *testing.T) {
	env := newTestEnv(t)
	scam := "https://discord-nitro.com/free"

	env.guard.HandleMessage(context.Background(),
		spamMessage(Member{ID: "bot-2", Bot: true}, scam))
	env.guard.HandleMessage(context.Background(),
		spamMessage(Member{ID: "user-immune", RoleIDs: []string{"role-immune"}}, scam))
	env.guard.HandleMessage(context.Background(),
		spamMessage(Member{ID: "user-staff", RoleIDs: []string{"role-staff"}}, scam))

	if len(env.gw.Deleted()) != 0 {
		t.Fatalf("privileged authors must never be remediated, got %v", env.gw.Deleted())
	}
}

func TestSpamFiltersCanBeDisabled(t *testing.T) {
	env := newTestEnv(t)
	err := env.guard.Config().Mutate(func(c *SecurityConfig) {
		c.LinkFilterEnabled = false
		c.MentionFilterEnabled = false
	})
	if err != nil {
		t.Fatalf("config update failed: %v", err)
	}

	author := Member{ID: "user-1"}
	env.guard.HandleMessage(context.Background(),
		spamMessage(author, "https://discord-nitro.com/x", "u2", "u3", "u4", "u5", "u6"))
	if len(env.gw.Deleted()) != 0 {
		t.Fatalf("disabled filters must not remediate")
	}
}
