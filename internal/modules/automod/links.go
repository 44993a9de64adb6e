package automod

import (
	"context"

	"go.uber.org/zap"

	"storekeeper/internal/utils"
)

// checkLinks extracts URLs from the message and tests each against the
// guild's domain lists. Allowlisted domains pass even when a parent domain
// is blocked.
func (m *Module) checkLinks(ctx context.Context, guildID, content string) (string, bool) {
	urls := utils.ExtractURLs(content)
	if len(urls) == 0 {
		return "", false
	}

	lists := m.domainsFor(ctx, guildID)
	if len(lists.block) == 0 {
		return "", false
	}

	for _, raw := range urls {
		normalized, domain, err := utils.NormalizeURL(raw)
		if err != nil {
			continue
		}
		allowed, blocked := utils.DomainMatch(domain, lists.allow, lists.block)
		if allowed {
			continue
		}
		if blocked {
			return normalized, true
		}
	}
	return "", false
}

func (m *Module) domainsFor(ctx context.Context, guildID string) domainLists {
	if cached, ok := m.domains.Get(guildID, m.clock.Now()); ok {
		return cached
	}

	lists := domainLists{
		allow: make(map[string]struct{}),
		block: make(map[string]struct{}),
	}

	allow, err := m.store.ListDomainAllow(ctx, guildID)
	if err != nil {
		m.logger.Error("automod allowlist lookup failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return lists
	}
	block, err := m.store.ListDomainBlock(ctx, guildID)
	if err != nil {
		m.logger.Error("automod blocklist lookup failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return lists
	}

	for _, domain := range allow {
		lists.allow[domain] = struct{}{}
	}
	for _, domain := range block {
		lists.block[domain] = struct{}{}
	}

	m.domains.Set(guildID, lists, m.clock.Now())
	return lists
}
