package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storekeeper/internal/modules/leveling"
	"storekeeper/internal/modules/reputation"
	"storekeeper/internal/utils"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleRank(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	userID := interactionUserID(interaction)
	if len(options) > 0 {
		userID = options[0].UserValue(session).ID
	}

	progress, err := b.leveling.Progress(ctx, interaction.GuildID, userID)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if progress.Messages == 0 {
		b.respond(session, interaction, fmt.Sprintf("No activity recorded for <@%s> yet.", userID), true)
		return
	}

	next := leveling.XPForLevel(progress.Level + 1)
	fields := []*discordgo.MessageEmbedField{
		{Name: "XP", Value: fmt.Sprintf("%d / %d", progress.XP, next), Inline: true},
		{Name: "Messages", Value: fmt.Sprintf("%d", progress.Messages), Inline: true},
	}
	embed := b.commandEmbed("Rank", fmt.Sprintf("<@%s> is level **%d**.", userID, progress.Level),
		b.cfg.Notifications.EmbedColors.Info, fields)
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	rows, err := b.leveling.Leaderboard(ctx, interaction.GuildID, 10)
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	if len(rows) == 0 {
		b.respond(session, interaction, "No activity recorded yet.", true)
		return
	}

	var sb strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&sb, "**#%d** <@%s> — level %d (%d XP)\n", i+1, row.UserID, row.Level, row.XP)
	}
	embed := b.commandEmbed("Leaderboard", strings.TrimRight(sb.String(), "\n"),
		b.cfg.Notifications.EmbedColors.Info, nil)
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) handleRep(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Say give, show or top.", true)
		return
	}
	var target *discordgo.User
	for _, opt := range options[1:] {
		if opt.Name == "user" {
			target = opt.UserValue(session)
		}
	}

	giverID := interactionUserID(interaction)
	switch options[0].StringValue() {
	case "give":
		if target == nil {
			b.respond(session, interaction, "Pick a member to thank.", true)
			return
		}
		total, err := b.reputation.Give(ctx, interaction.GuildID, giverID, target.ID)
		if err != nil {
			if errors.Is(err, reputation.ErrOnCooldown) {
				if left, cerr := b.reputation.CooldownLeft(ctx, interaction.GuildID, giverID, target.ID); cerr == nil && left > 0 {
					b.respond(session, interaction,
						fmt.Sprintf("You already thanked this member recently, try again in %s.", utils.FormatDuration(left)), true)
					return
				}
			}
			b.respondError(session, interaction, err)
			return
		}
		b.respond(session, interaction,
			fmt.Sprintf("⭐ <@%s> now has **%d** reputation (thanks to <@%s>).", target.ID, total, giverID), false)
	case "show":
		userID := giverID
		if target != nil {
			userID = target.ID
		}
		total, err := b.reputation.Total(ctx, interaction.GuildID, userID)
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("⭐ <@%s> has **%d** reputation.", userID, total), true)
	case "top":
		standings, err := b.reputation.Top(ctx, interaction.GuildID, 10)
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		if len(standings) == 0 {
			b.respond(session, interaction, "Nobody has reputation yet.", true)
			return
		}
		var sb strings.Builder
		for i, standing := range standings {
			fmt.Fprintf(&sb, "**#%d** <@%s> — %d points\n", i+1, standing.UserID, standing.Points)
		}
		embed := b.commandEmbed("Reputation", strings.TrimRight(sb.String(), "\n"),
			b.cfg.Notifications.EmbedColors.Info, nil)
		b.respondEmbed(session, interaction, embed, false)
	}
}
