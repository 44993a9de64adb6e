package bot

import (
	"context"
	"fmt"
	"strings"

	"storekeeper/internal/currency"
	"storekeeper/internal/shop"
	"storekeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "Commands only work inside a server.", true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	userID := interactionUserID(interaction)
	if userID == "" {
		return
	}

	if blacklisted, err := b.store.IsBlacklisted(ctx, userID); err == nil && blacklisted {
		b.respond(session, interaction, "You are not allowed to use this bot.", true)
		return
	}
	if !b.allowCommand(userID) {
		b.respond(session, interaction, "Slow down a little, try again in a moment.", true)
		return
	}

	admin := b.isAdmin(interaction)
	if adminCommands[data.Name] && !admin {
		b.respond(session, interaction, "This command is restricted to admins.", true)
		return
	}
	if !admin && b.maintenanceOn(ctx) {
		b.respond(session, interaction, "The bot is under maintenance, try again later.", true)
		return
	}

	options := data.Options
	switch data.Name {
	case "register":
		b.handleRegister(ctx, session, interaction, options)
	case "bal":
		b.handleBalance(ctx, session, interaction)
	case "trx":
		b.handleTransactions(ctx, session, interaction)
	case "shop":
		b.handleShop(ctx, session, interaction)
	case "buy":
		b.handleBuy(ctx, session, interaction, options)
	case "world":
		b.handleWorld(ctx, session, interaction)
	case "rank":
		b.handleRank(ctx, session, interaction, options)
	case "leaderboard":
		b.handleLeaderboard(ctx, session, interaction)
	case "rep":
		b.handleRep(ctx, session, interaction, options)
	case "remind":
		b.handleRemind(ctx, session, interaction, options)
	case "poll":
		b.handlePoll(ctx, session, interaction, options)
	case "addbal":
		b.handleAddBalance(ctx, session, interaction, options)
	case "removebal":
		b.handleRemoveBalance(ctx, session, interaction, options)
	case "resetbal":
		b.handleResetBalance(ctx, session, interaction, options)
	case "checkbal":
		b.handleCheckBalance(ctx, session, interaction, options)
	case "history":
		b.handleHistory(ctx, session, interaction, options)
	case "addproduct":
		b.handleAddProduct(ctx, session, interaction, options)
	case "delproduct":
		b.handleDeleteProduct(ctx, session, interaction, options)
	case "addstock":
		b.handleAddStock(ctx, session, interaction, options)
	case "stock":
		b.handleStock(ctx, session, interaction)
	case "setworld":
		b.handleSetWorld(ctx, session, interaction, options)
	case "blacklist":
		b.handleBlacklist(ctx, session, interaction, options)
	case "maintenance":
		b.handleMaintenance(ctx, session, interaction, options)
	case "automod":
		b.handleAutomod(ctx, session, interaction, options)
	case "domain":
		b.handleDomain(ctx, session, interaction, options)
	case "stats":
		b.handleStats(ctx, session, interaction)
	case "warnings":
		b.handleWarnings(ctx, session, interaction, options)
	case "giveaway":
		b.handleGiveaway(ctx, session, interaction, options)
	case "schedule":
		b.handleSchedule(ctx, session, interaction, options)
	}
}

func (b *Bot) handleRegister(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Pick a handle for your account.", true)
		return
	}
	handle := strings.TrimSpace(options[0].StringValue())
	if err := b.ledger.Register(ctx, interactionUserID(interaction), handle); err != nil {
		b.respondError(session, interaction, err)
		return
	}
	embed := b.commandEmbed("Account registered",
		fmt.Sprintf("Welcome, **%s**! Your balance starts at 0c.", handle),
		b.cfg.Notifications.EmbedColors.Success, nil)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleBalance(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	handle, balance, err := b.ledger.BalanceForUser(ctx, interactionUserID(interaction))
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.balanceEmbed("Your balance", handle, balance), true)
}

func (b *Bot) handleTransactions(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	handle, err := b.ledger.HandleFor(ctx, interactionUserID(interaction))
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	records, err := b.ledger.History(ctx, handle, 10)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if len(records) == 0 {
		b.respond(session, interaction, "No transactions yet.", true)
		return
	}
	embed := b.commandEmbed("Recent transactions", transactionLines(records),
		b.cfg.Notifications.EmbedColors.Info, nil)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleShop(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	listings, err := b.catalog.Listings(ctx)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if len(listings) == 0 {
		b.respond(session, interaction, "The shop is empty right now.", true)
		return
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(listings))
	for _, listing := range listings {
		value := fmt.Sprintf("%s · %d in stock", currency.Format(b.rates.FromCopper(listing.Product.Price)), listing.Available)
		if listing.Product.Description != "" {
			value += "\n" + listing.Product.Description
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s — %s", listing.Product.Code, listing.Product.Name),
			Value: value,
		})
	}
	embed := b.commandEmbed("Shop", "Buy with /buy code quantity.",
		b.cfg.Notifications.EmbedColors.Info, fields)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleBuy(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Tell me the product code.", true)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(options[0].StringValue()))
	quantity := 1
	for _, opt := range options[1:] {
		if opt.Name == "quantity" {
			quantity = int(opt.IntValue())
		}
	}

	userID := interactionUserID(interaction)
	purchase, err := b.shop.Buy(ctx, userID, code, quantity)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	delivered := false
	if b.cfg.Notifications.DMPurchases {
		if channel, err := session.UserChannelCreate(userID); err == nil {
			if _, err := session.ChannelMessageSendEmbed(channel.ID, b.deliveryEmbed(purchase)); err == nil {
				delivered = true
			}
		}
	}
	if delivered {
		summary := fmt.Sprintf("You bought %d× **%s** for %s. New balance: %s. The items are in your DMs.",
			len(purchase.Contents), purchase.Product.Name,
			currency.Format(b.rates.FromCopper(purchase.Total)), currency.Format(purchase.NewBalance))
		b.respond(session, interaction, summary, true)
		return
	}
	// DMs closed or disabled; deliver in the ephemeral reply instead.
	b.respondEmbed(session, interaction, b.deliveryEmbed(purchase), true)
}

func (b *Bot) handleWorld(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	info, err := b.catalog.World(ctx)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if info.World == "" {
		b.respond(session, interaction, "No world info set yet.", true)
		return
	}

	description := ""
	if !info.UpdatedAt.IsZero() {
		description = fmt.Sprintf("Updated <t:%d:R>", info.UpdatedAt.Unix())
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "World", Value: info.World, Inline: true},
		{Name: "Owner", Value: info.Owner, Inline: true},
		{Name: "Keeper", Value: info.Keeper, Inline: true},
	}
	embed := b.commandEmbed("World info", description, b.cfg.Notifications.EmbedColors.Info, fields)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) balanceEmbed(title, handle string, balance storage.Balance) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Gold", Value: fmt.Sprintf("%d", balance.Gold), Inline: true},
		{Name: "Silver", Value: fmt.Sprintf("%d", balance.Silver), Inline: true},
		{Name: "Copper", Value: fmt.Sprintf("%d", balance.Copper), Inline: true},
		{Name: "Total", Value: currency.FormatCopper(b.rates.ToCopper(balance)), Inline: true},
	}
	return b.commandEmbed(title,
		fmt.Sprintf("Account **%s** holds %s.", handle, currency.Format(balance)),
		b.cfg.Notifications.EmbedColors.Info, fields)
}

func (b *Bot) deliveryEmbed(purchase shop.Purchase) *discordgo.MessageEmbed {
	contents := "```\n" + strings.Join(purchase.Contents, "\n") + "\n```"
	fields := []*discordgo.MessageEmbedField{
		{Name: "Items", Value: contents},
		{Name: "Paid", Value: currency.Format(b.rates.FromCopper(purchase.Total)), Inline: true},
		{Name: "New balance", Value: currency.Format(purchase.NewBalance), Inline: true},
	}
	return b.commandEmbed("Purchase complete",
		fmt.Sprintf("%d× %s for **%s**", len(purchase.Contents), purchase.Product.Name, purchase.Handle),
		b.cfg.Notifications.EmbedColors.Success, fields)
}

func transactionLines(records []storage.TransactionRecord) string {
	var sb strings.Builder
	for _, record := range records {
		fmt.Fprintf(&sb, "`%s` %s → %s", record.Type,
			currency.Format(record.OldBalance), currency.Format(record.NewBalance))
		if record.Details != "" {
			fmt.Fprintf(&sb, " — %s", record.Details)
		}
		fmt.Fprintf(&sb, " <t:%d:R>\n", record.CreatedAt.Unix())
	}
	return strings.TrimRight(sb.String(), "\n")
}
