package raidguard

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// urlPattern is a permissive URL-token grammar: scheme then any run of
// unreserved/sub-delim/percent-encoded characters.
var urlPattern = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

func extractURLs(content string) []string {
	return urlPattern.FindAllString(content, -1)
}

// firstScamLink returns the first extracted URL containing a blocklisted
// domain as a substring, or "".
func firstScamLink(links, scamDomains []string) string {
	for _, link := range links {
		for _, domain := range scamDomains {
			if domain != "" && strings.Contains(link, domain) {
				return link
			}
		}
	}
	return ""
}

func distinctMentions(mentionIDs []string) int {
	seen := make(map[string]struct{}, len(mentionIDs))
	for _, id := range mentionIDs {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// HandleMessage classifies one inbound message against the link, scam-domain
// and mention policies, short-circuiting on the first remediation. Scam links
// take precedence over link volume, so exactly one link-path timeout class
// applies per message. Every remediation step is best-effort: failures are
// logged and never escalate into the event-dispatch path.
func (g *Guard) HandleMessage(ctx context.Context, msg Message) {
	if msg.Author.Bot || msg.CommunityID == "" {
		return
	}
	if g.isImmune(ctx, msg.CommunityID, &msg.Author) {
		return
	}
	if g.isStaff(ctx, msg.CommunityID, &msg.Author) {
		return
	}

	cfg := g.config.Get()

	if cfg.LinkFilterEnabled {
		links := extractURLs(msg.Content)
		if len(links) > 0 {
			if scam := firstScamLink(links, g.opts.ScamDomains); scam != "" {
				g.remediateScamLink(ctx, msg)
				return
			}
			if len(links) >= cfg.LinkSpamThreshold {
				g.remediateLinkSpam(ctx, msg, len(links))
				return
			}
		}
	}

	if cfg.MentionFilterEnabled {
		if n := distinctMentions(msg.MentionIDs); n >= cfg.MentionSpamThreshold {
			g.remediateMentionSpam(ctx, msg, n)
		}
	}
}

func (g *Guard) remediateScamLink(ctx context.Context, msg Message) {
	reason := "Scam link detected"
	if err := g.gateway.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		g.logger.Error().Err(err).Str("message", msg.ID).Msg("spam: failed to delete scam message")
	}
	warning := fmt.Sprintf("%s, scam/phishing links are not allowed!", msg.Author.DisplayName)
	if err := g.gateway.SendTransient(ctx, msg.ChannelID, warning, 5*time.Second); err != nil {
		g.logger.Error().Err(err).Str("channel", msg.ChannelID).Msg("spam: failed to send scam warning")
	}
	if err := g.gateway.TimeoutMember(ctx, msg.CommunityID, msg.Author.ID, scamTimeout, reason); err != nil {
		g.logger.Error().Err(err).Str("user", msg.Author.ID).Msg("spam: failed to timeout scam author")
	}
	g.metrics.IncrementCounter("spam_remediations_total", map[string]string{"kind": "scam_link"})
	g.recordProtectiveAction(ctx, msg.CommunityID, "Scam Link Removed",
		Target{Kind: TargetMember, ID: msg.Author.ID, Name: msg.Author.DisplayName}, reason)
}

func (g *Guard) remediateLinkSpam(ctx context.Context, msg Message, linkCount int) {
	reason := fmt.Sprintf("Link spam detected (%d links)", linkCount)
	if err := g.gateway.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		g.logger.Error().Err(err).Str("message", msg.ID).Msg("spam: failed to delete link spam")
	}
	if err := g.gateway.TimeoutMember(ctx, msg.CommunityID, msg.Author.ID, linkTimeout, reason); err != nil {
		g.logger.Error().Err(err).Str("user", msg.Author.ID).Msg("spam: failed to timeout link spammer")
	}
	g.metrics.IncrementCounter("spam_remediations_total", map[string]string{"kind": "link_spam"})
	g.recordProtectiveAction(ctx, msg.CommunityID, "Link Spam Removed",
		Target{Kind: TargetMember, ID: msg.Author.ID, Name: msg.Author.DisplayName}, reason)
}

func (g *Guard) remediateMentionSpam(ctx context.Context, msg Message, mentionCount int) {
	reason := fmt.Sprintf("Mass mention spam detected (%d mentions)", mentionCount)
	if err := g.gateway.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		g.logger.Error().Err(err).Str("message", msg.ID).Msg("spam: failed to delete mention spam")
	}
	if err := g.gateway.TimeoutMember(ctx, msg.CommunityID, msg.Author.ID, mentionTimeout, reason); err != nil {
		g.logger.Error().Err(err).Str("user", msg.Author.ID).Msg("spam: failed to timeout mention spammer")
	}
	g.metrics.IncrementCounter("spam_remediations_total", map[string]string{"kind": "mention_spam"})
	g.recordProtectiveAction(ctx, msg.CommunityID, "Mention Spam Removed",
		Target{Kind: TargetMember, ID: msg.Author.ID, Name: msg.Author.DisplayName}, reason)
}
