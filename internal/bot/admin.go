package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storekeeper/internal/currency"
	"storekeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleAddBalance(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	userOpt, amountOpt := opts["user"], opts["amount"]
	if userOpt == nil || amountOpt == nil {
		b.respond(session, interaction, "Provide a user and an amount.", true)
		return
	}
	target := userOpt.UserValue(session)
	delta, err := currency.ParseAmount(amountOpt.StringValue())
	if err != nil {
		b.respond(session, interaction, "Amounts look like 50c, 2s or 1g 5s.", true)
		return
	}
	reason := "admin credit"
	if opt := opts["reason"]; opt != nil {
		reason = opt.StringValue()
	}

	handle, err := b.ledger.HandleFor(ctx, target.ID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	balance, err := b.ledger.Mutate(ctx, handle, delta, storage.TxAdminAdd, reason, false)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	b.audit.Record(ctx, interactionUserID(interaction), "addbal", handle, currency.FormatDelta(delta))
	b.respondEmbed(session, interaction, b.balanceEmbed("Balance credited", handle, balance), true)
}

func (b *Bot) handleRemoveBalance(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	userOpt, amountOpt := opts["user"], opts["amount"]
	if userOpt == nil || amountOpt == nil {
		b.respond(session, interaction, "Provide a user and an amount.", true)
		return
	}
	target := userOpt.UserValue(session)
	delta, err := currency.ParseAmount(amountOpt.StringValue())
	if err != nil {
		b.respond(session, interaction, "Amounts look like 50c, 2s or 1g 5s.", true)
		return
	}
	delta.Copper, delta.Silver, delta.Gold = -delta.Copper, -delta.Silver, -delta.Gold
	reason := "admin debit"
	if opt := opts["reason"]; opt != nil {
		reason = opt.StringValue()
	}

	handle, err := b.ledger.HandleFor(ctx, target.ID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	balance, err := b.ledger.Mutate(ctx, handle, delta, storage.TxAdminRemove, reason, b.cfg.Ledger.ClampAdminRemove)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	b.audit.Record(ctx, interactionUserID(interaction), "removebal", handle, currency.FormatDelta(delta))
	b.respondEmbed(session, interaction, b.balanceEmbed("Balance debited", handle, balance), true)
}

func (b *Bot) handleResetBalance(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Pick a member to reset.", true)
		return
	}
	target := options[0].UserValue(session)
	handle, err := b.ledger.HandleFor(ctx, target.ID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	balance, err := b.ledger.Reset(ctx, handle)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	b.audit.Record(ctx, interactionUserID(interaction), "resetbal", handle, "")
	b.respondEmbed(session, interaction, b.balanceEmbed("Balance reset", handle, balance), true)
}

func (b *Bot) handleCheckBalance(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Pick a member to inspect.", true)
		return
	}
	target := options[0].UserValue(session)
	handle, err := b.ledger.HandleFor(ctx, target.ID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	balance, err := b.ledger.Balance(ctx, handle)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	embed := b.balanceEmbed("Account inspection", handle, balance)
	if records, err := b.ledger.History(ctx, handle, 5); err == nil && len(records) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Recent",
			Value: transactionLines(records),
		})
	}

	b.audit.Record(ctx, interactionUserID(interaction), "checkbal", handle, "")
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleHistory(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	userOpt := opts["user"]
	if userOpt == nil {
		b.respond(session, interaction, "Pick a member to inspect.", true)
		return
	}
	target := userOpt.UserValue(session)
	limit := 10
	if opt := opts["limit"]; opt != nil {
		limit = int(opt.IntValue())
		if limit < 1 {
			limit = 1
		}
		if limit > 25 {
			limit = 25
		}
	}

	handle, err := b.ledger.HandleFor(ctx, target.ID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	records, err := b.ledger.History(ctx, handle, limit)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if len(records) == 0 {
		b.respond(session, interaction, fmt.Sprintf("No transactions recorded for **%s**.", handle), true)
		return
	}

	b.audit.Record(ctx, interactionUserID(interaction), "history", handle, fmt.Sprintf("%d entries", len(records)))
	embed := b.commandEmbed(fmt.Sprintf("History for %s", handle), transactionLines(records),
		b.cfg.Notifications.EmbedColors.Info, nil)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleAddProduct(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	codeOpt, nameOpt, priceOpt := opts["code"], opts["name"], opts["price"]
	if codeOpt == nil || nameOpt == nil || priceOpt == nil {
		b.respond(session, interaction, "Provide a code, a name and a price.", true)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(codeOpt.StringValue()))
	delta, err := currency.ParseAmount(priceOpt.StringValue())
	if err != nil {
		b.respond(session, interaction, "Prices look like 50c, 2s or 1g 5s.", true)
		return
	}
	price := b.deltaToCopper(delta)
	if price <= 0 {
		b.respond(session, interaction, "The price must be positive.", true)
		return
	}

	product := storage.Product{Code: code, Name: nameOpt.StringValue(), Price: price}
	if opt := opts["description"]; opt != nil {
		product.Description = opt.StringValue()
	}
	if err := b.store.UpsertProduct(ctx, product); err != nil {
		b.respondError(session, interaction, err)
		return
	}
	b.catalog.Invalidate()

	b.audit.Record(ctx, interactionUserID(interaction), "addproduct", code,
		fmt.Sprintf("%s at %s", product.Name, currency.Format(b.rates.FromCopper(price))))
	embed := b.commandEmbed("Product saved",
		fmt.Sprintf("**%s** — %s at %s", code, product.Name, currency.Format(b.rates.FromCopper(price))),
		b.cfg.Notifications.EmbedColors.Success, nil)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleDeleteProduct(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Tell me the product code.", true)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(options[0].StringValue()))
	if err := b.store.DeleteProduct(ctx, code); err != nil {
		b.respondError(session, interaction, err)
		return
	}
	b.catalog.Invalidate()

	b.audit.Record(ctx, interactionUserID(interaction), "delproduct", code, "")
	b.respond(session, interaction, fmt.Sprintf("Product **%s** and its stock were removed.", code), true)
}

func (b *Bot) handleAddStock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	codeOpt, itemsOpt := opts["code"], opts["items"]
	if codeOpt == nil || itemsOpt == nil {
		b.respond(session, interaction, "Provide a code and the items.", true)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(codeOpt.StringValue()))
	contents := splitList(itemsOpt.StringValue(), ";")
	if len(contents) == 0 {
		b.respond(session, interaction, "Provide at least one item.", true)
		return
	}

	added, rejected, err := b.store.AddStockItems(ctx, code, contents, interactionUserID(interaction))
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	b.catalog.Invalidate()

	message := fmt.Sprintf("Added %d items to **%s**.", added, code)
	if len(rejected) > 0 {
		message += fmt.Sprintf(" Skipped %d duplicates.", len(rejected))
	}
	b.audit.Record(ctx, interactionUserID(interaction), "addstock", code, fmt.Sprintf("%d items", added))
	b.respond(session, interaction, message, true)
}

func (b *Bot) handleStock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	products, err := b.store.ListProducts(ctx)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if len(products) == 0 {
		b.respond(session, interaction, "No products configured.", true)
		return
	}
	counts, err := b.store.AvailableStockCounts(ctx)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	var sb strings.Builder
	for _, product := range products {
		fmt.Fprintf(&sb, "**%s** — %s: %d available\n", product.Code, product.Name, counts[product.Code])
	}
	embed := b.commandEmbed("Stock", strings.TrimRight(sb.String(), "\n"),
		b.cfg.Notifications.EmbedColors.Info, nil)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleSetWorld(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	worldOpt, ownerOpt, keeperOpt := opts["world"], opts["owner"], opts["keeper"]
	if worldOpt == nil || ownerOpt == nil || keeperOpt == nil {
		b.respond(session, interaction, "Provide the world, owner and keeper.", true)
		return
	}

	info := storage.WorldInfo{
		World:  worldOpt.StringValue(),
		Owner:  ownerOpt.StringValue(),
		Keeper: keeperOpt.StringValue(),
	}
	if err := b.catalog.SetWorld(ctx, info); err != nil {
		b.respondError(session, interaction, err)
		return
	}

	b.audit.Record(ctx, interactionUserID(interaction), "setworld", info.World, "")
	fields := []*discordgo.MessageEmbedField{
		{Name: "World", Value: info.World, Inline: true},
		{Name: "Owner", Value: info.Owner, Inline: true},
		{Name: "Keeper", Value: info.Keeper, Inline: true},
	}
	embed := b.commandEmbed("World info updated", "", b.cfg.Notifications.EmbedColors.Success, fields)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleBlacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Tell me what to do: add, remove or list.", true)
		return
	}
	action := options[0].StringValue()
	var target *discordgo.User
	reason := ""
	for _, opt := range options[1:] {
		switch opt.Name {
		case "user":
			target = opt.UserValue(session)
		case "reason":
			reason = opt.StringValue()
		}
	}

	switch action {
	case "add":
		if target == nil {
			b.respond(session, interaction, "Pick a member to blacklist.", true)
			return
		}
		if target.ID == b.cfg.OwnerID {
			b.respond(session, interaction, "The owner cannot be blacklisted.", true)
			return
		}
		if err := b.store.AddBlacklist(ctx, target.ID, reason, interactionUserID(interaction)); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.audit.Record(ctx, interactionUserID(interaction), "blacklist_add", target.ID, reason)
		b.respond(session, interaction, fmt.Sprintf("🚫 <@%s> is now blacklisted.", target.ID), true)
	case "remove":
		if target == nil {
			b.respond(session, interaction, "Pick a member to remove.", true)
			return
		}
		if err := b.store.RemoveBlacklist(ctx, target.ID); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.audit.Record(ctx, interactionUserID(interaction), "blacklist_remove", target.ID, "")
		b.respond(session, interaction, fmt.Sprintf("<@%s> was removed from the blacklist.", target.ID), true)
	case "list":
		entries, err := b.store.ListBlacklist(ctx)
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		if len(entries) == 0 {
			b.respond(session, interaction, "The blacklist is empty.", true)
			return
		}
		var sb strings.Builder
		for _, entry := range entries {
			fmt.Fprintf(&sb, "<@%s>", entry.UserID)
			if entry.Reason != "" {
				fmt.Fprintf(&sb, " — %s", entry.Reason)
			}
			fmt.Fprintf(&sb, " (by <@%s> <t:%d:R>)\n", entry.AddedBy, entry.CreatedAt.Unix())
		}
		embed := b.commandEmbed("Blacklist", strings.TrimRight(sb.String(), "\n"),
			b.cfg.Notifications.EmbedColors.Warning, nil)
		b.respondEmbed(session, interaction, embed, true)
	}
}

func (b *Bot) handleMaintenance(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Say on or off.", true)
		return
	}
	value := options[0].StringValue()
	if err := b.store.SetSetting(ctx, settingMaintenance, value); err != nil {
		b.respondError(session, interaction, err)
		return
	}

	b.audit.Record(ctx, interactionUserID(interaction), "maintenance", value, "")
	if value == "on" {
		b.respond(session, interaction, "🔧 Maintenance mode is on; only admins can use commands.", true)
		return
	}
	b.respond(session, interaction, "Maintenance mode is off.", true)
}

func (b *Bot) handleAutomod(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Say show or set.", true)
		return
	}
	action := options[0].StringValue()
	settings, err := b.automod.Settings(ctx, interaction.GuildID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	description := ""
	if action == "set" {
		for _, opt := range options[1:] {
			switch opt.Name {
			case "enabled":
				settings.Enabled = opt.BoolValue()
			case "spam_messages":
				settings.SpamMessages = int(opt.IntValue())
			case "spam_window":
				settings.SpamWindow = time.Duration(opt.IntValue()) * time.Second
			case "caps_ratio":
				settings.CapsRatio = opt.FloatValue()
			case "caps_min_length":
				settings.CapsMinLength = int(opt.IntValue())
			case "banned_words":
				settings.BannedWords = splitList(opt.StringValue(), ",")
			case "link_filter":
				settings.LinkFilter = opt.BoolValue()
			case "warn_threshold":
				settings.WarnThreshold = int(opt.IntValue())
			case "timeout_minutes":
				settings.TimeoutMinutes = int(opt.IntValue())
			}
		}
		settings.GuildID = interaction.GuildID
		if err := b.automod.UpdateSettings(ctx, settings); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.audit.Record(ctx, interactionUserID(interaction), "automod_set", interaction.GuildID, "")
		description = "Settings updated."
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Enabled", Value: fmt.Sprintf("%t", settings.Enabled), Inline: true},
		{Name: "Spam", Value: fmt.Sprintf("%d msgs / %s", settings.SpamMessages, settings.SpamWindow), Inline: true},
		{Name: "Caps", Value: fmt.Sprintf("ratio %.2f, min %d", settings.CapsRatio, settings.CapsMinLength), Inline: true},
		{Name: "Banned words", Value: fmt.Sprintf("%d", len(settings.BannedWords)), Inline: true},
		{Name: "Link filter", Value: fmt.Sprintf("%t", settings.LinkFilter), Inline: true},
		{Name: "Escalation", Value: fmt.Sprintf("%d warnings → %dm timeout", settings.WarnThreshold, settings.TimeoutMinutes), Inline: true},
	}
	embed := b.commandEmbed("Automod", description, b.cfg.Notifications.EmbedColors.Info, fields)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleDomain(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) < 2 {
		b.respond(session, interaction, "Pick a list and an action.", true)
		return
	}
	list := options[0].StringValue()
	action := options[1].StringValue()
	domain := ""
	if len(options) > 2 {
		domain = strings.ToLower(strings.TrimSpace(options[2].StringValue()))
	}

	guildID := interaction.GuildID
	switch action {
	case "add", "remove":
		if domain == "" {
			b.respond(session, interaction, "Provide a domain.", true)
			return
		}
		var err error
		switch {
		case list == "allow" && action == "add":
			err = b.store.AddDomainAllow(ctx, guildID, domain)
		case list == "allow" && action == "remove":
			err = b.store.RemoveDomainAllow(ctx, guildID, domain)
		case list == "block" && action == "add":
			err = b.store.AddDomainBlock(ctx, guildID, domain)
		default:
			err = b.store.RemoveDomainBlock(ctx, guildID, domain)
		}
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.automod.InvalidateDomains(guildID)
		b.audit.Record(ctx, interactionUserID(interaction), "domain_"+action, domain, list)
		b.respond(session, interaction, fmt.Sprintf("Domain `%s` %s the %s list.", domain, actionVerb(action), list), true)
	case "list":
		var domains []string
		var err error
		if list == "allow" {
			domains, err = b.store.ListDomainAllow(ctx, guildID)
		} else {
			domains, err = b.store.ListDomainBlock(ctx, guildID)
		}
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		if len(domains) == 0 {
			b.respond(session, interaction, fmt.Sprintf("The %s list is empty.", list), true)
			return
		}
		embed := b.commandEmbed(fmt.Sprintf("Domain %s list", list), strings.Join(domains, "\n"),
			b.cfg.Notifications.EmbedColors.Info, nil)
		b.respondEmbed(session, interaction, embed, true)
	}
}

func (b *Bot) handleStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	report, err := b.analytics.Report(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	topProducts := "none yet"
	if len(report.TopProducts) > 0 {
		var sb strings.Builder
		for _, sale := range report.TopProducts {
			fmt.Fprintf(&sb, "%s × %d\n", sale.Code, sale.Sold)
		}
		topProducts = strings.TrimRight(sb.String(), "\n")
	}

	watchlist := "clean"
	if top := b.automod.Scores().Top(interaction.GuildID, 5); len(top) > 0 {
		var sb strings.Builder
		for _, item := range top {
			fmt.Fprintf(&sb, "<@%s> %.1f\n", item.UserID, item.Score)
		}
		watchlist = strings.TrimRight(sb.String(), "\n")
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Accounts", Value: fmt.Sprintf("%d (%d active today)", report.Accounts, report.ActiveTraders), Inline: true},
		{Name: "Holdings", Value: currency.Format(report.TotalHoldings), Inline: true},
		{Name: "Purchases", Value: fmt.Sprintf("%d for %s", report.Purchases, currency.Format(b.rates.FromCopper(report.Revenue))), Inline: true},
		{Name: "Messages counted", Value: fmt.Sprintf("%d", report.Messages), Inline: true},
		{Name: "Moderation", Value: fmt.Sprintf("%d warnings, %d admin actions", report.Warnings, report.AdminActions), Inline: true},
		{Name: "Scheduled", Value: actionSummary(report.ActiveActions), Inline: true},
		{Name: "Top products", Value: topProducts},
		{Name: "Watchlist", Value: watchlist},
	}
	embed := b.commandEmbed("Server stats", "Last 24 hours.", b.cfg.Notifications.EmbedColors.Info, fields)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleWarnings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	userOpt := opts["user"]
	if userOpt == nil {
		b.respond(session, interaction, "Pick a member.", true)
		return
	}
	target := userOpt.UserValue(session)

	if opt := opts["clear"]; opt != nil && opt.BoolValue() {
		cleared, err := b.store.ClearWarnings(ctx, interaction.GuildID, target.ID)
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.audit.Record(ctx, interactionUserID(interaction), "warnings_clear", target.ID, fmt.Sprintf("%d cleared", cleared))
		b.respond(session, interaction, fmt.Sprintf("Cleared %d warnings for <@%s>.", cleared, target.ID), true)
		return
	}

	count, err := b.store.CountWarnings(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if count == 0 {
		b.respond(session, interaction, fmt.Sprintf("No warnings for <@%s>.", target.ID), true)
		return
	}
	warnings, err := b.store.ListWarnings(ctx, interaction.GuildID, target.ID, 10)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	var sb strings.Builder
	for _, warning := range warnings {
		fmt.Fprintf(&sb, "%s — by %s <t:%d:R>\n", warning.Reason, warning.IssuedBy, warning.CreatedAt.Unix())
	}
	embed := b.commandEmbed(fmt.Sprintf("Warnings for %s (%d)", target.Username, count),
		strings.TrimRight(sb.String(), "\n"), b.cfg.Notifications.EmbedColors.Warning, nil)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) deltaToCopper(delta storage.BalanceDelta) int64 {
	return b.rates.ToCopper(storage.Balance{Copper: delta.Copper, Silver: delta.Silver, Gold: delta.Gold})
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func splitList(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func actionVerb(action string) string {
	if action == "add" {
		return "joined"
	}
	return "left"
}

func actionSummary(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, kind := range []string{storage.ActionGiveaway, storage.ActionReminder, storage.ActionPoll} {
		if n := counts[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %ss", n, kind))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
