package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storekeeper/internal/currency"
	"storekeeper/internal/scheduler"
	"storekeeper/internal/storage"
	"storekeeper/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const giveawayEmoji = "🎉"

// pollEmojis maps option indexes to the reactions members vote with.
var pollEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

func pollOptionIndex(emoji string) (int, bool) {
	for i, e := range pollEmojis {
		if e == emoji {
			return i, true
		}
	}
	return 0, false
}

func (b *Bot) handleRemind(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	whenOpt, messageOpt := opts["when"], opts["message"]
	if whenOpt == nil || messageOpt == nil {
		b.respond(session, interaction, "Tell me when and what to remind you about.", true)
		return
	}

	target, err := b.parseWhen(whenOpt.StringValue(), time.Now())
	if err != nil {
		b.respond(session, interaction, err.Error(), true)
		return
	}
	var repeat time.Duration
	if opt := opts["repeat"]; opt != nil {
		repeat, err = utils.ParseCompactDuration(opt.StringValue())
		if err != nil {
			b.respond(session, interaction, err.Error(), true)
			return
		}
		if repeat < time.Minute {
			b.respond(session, interaction, "Repeats need at least a minute between runs.", true)
			return
		}
	}

	userID := interactionUserID(interaction)
	payload, err := scheduler.EncodeReminder(scheduler.ReminderPayload{
		UserID:  userID,
		Message: messageOpt.StringValue(),
	})
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	id, err := b.store.CreateAction(ctx, storage.ScheduledAction{
		Kind:       storage.ActionReminder,
		GuildID:    interaction.GuildID,
		ChannelID:  interaction.ChannelID,
		CreatorID:  userID,
		Payload:    payload,
		TargetTime: target,
		Repeat:     repeat,
	})
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	message := fmt.Sprintf("⏰ Reminder #%d set, I will ping you <t:%d:R>.", id, target.Unix())
	if repeat > 0 {
		message += fmt.Sprintf(" It repeats every %s.", utils.FormatDuration(repeat))
	}
	b.respond(session, interaction, message, true)
}

func (b *Bot) handlePoll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	questionOpt, durationOpt, choicesOpt := opts["question"], opts["duration"], opts["options"]
	if questionOpt == nil || durationOpt == nil || choicesOpt == nil {
		b.respond(session, interaction, "Provide a question, a duration and the options.", true)
		return
	}

	choices := splitList(choicesOpt.StringValue(), ";")
	if len(choices) < 2 || len(choices) > len(pollEmojis) {
		b.respond(session, interaction, fmt.Sprintf("Give me between 2 and %d options, separated by semicolons.", len(pollEmojis)), true)
		return
	}
	target, err := b.parseWhen(durationOpt.StringValue(), time.Now())
	if err != nil {
		b.respond(session, interaction, err.Error(), true)
		return
	}

	question := questionOpt.StringValue()
	payload, err := scheduler.EncodePoll(scheduler.PollPayload{Question: question, Options: choices})
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	id, err := b.store.CreateAction(ctx, storage.ScheduledAction{
		Kind:       storage.ActionPoll,
		GuildID:    interaction.GuildID,
		ChannelID:  interaction.ChannelID,
		CreatorID:  interactionUserID(interaction),
		Payload:    payload,
		TargetTime: target,
	})
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	var sb strings.Builder
	for i, choice := range choices {
		fmt.Fprintf(&sb, "%s %s\n", pollEmojis[i], choice)
	}
	fmt.Fprintf(&sb, "\nVote by reacting. Closes <t:%d:R>.", target.Unix())
	embed := b.commandEmbed("📊 "+question, sb.String(), b.cfg.Notifications.EmbedColors.Info, nil)

	msg, err := session.ChannelMessageSendEmbed(interaction.ChannelID, embed)
	if err != nil {
		_ = b.store.DeleteAction(ctx, id)
		b.respondError(session, interaction, err)
		return
	}
	if err := b.store.SetActionMessageID(ctx, id, msg.ID); err != nil {
		b.logger.Warn("attach poll message", zap.Int64("action", id), zap.Error(err))
	}
	for i := range choices {
		_ = session.MessageReactionAdd(interaction.ChannelID, msg.ID, pollEmojis[i])
	}

	b.respond(session, interaction, fmt.Sprintf("Poll #%d is live.", id), true)
}

func (b *Bot) handleGiveaway(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	prizeOpt, durationOpt := opts["prize"], opts["duration"]
	if prizeOpt == nil || durationOpt == nil {
		b.respond(session, interaction, "Provide a prize and a duration.", true)
		return
	}
	winners := 1
	if opt := opts["winners"]; opt != nil {
		if winners = int(opt.IntValue()); winners < 1 {
			winners = 1
		}
	}
	target, err := b.parseWhen(durationOpt.StringValue(), time.Now())
	if err != nil {
		b.respond(session, interaction, err.Error(), true)
		return
	}

	prize := prizeOpt.StringValue()
	payload, err := scheduler.EncodeGiveaway(scheduler.GiveawayPayload{Prize: prize, Winners: winners})
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}
	id, err := b.store.CreateAction(ctx, storage.ScheduledAction{
		Kind:       storage.ActionGiveaway,
		GuildID:    interaction.GuildID,
		ChannelID:  interaction.ChannelID,
		CreatorID:  interactionUserID(interaction),
		Payload:    payload,
		TargetTime: target,
	})
	if err != nil {
		b.respondError(session, interaction, err)
		return
	}

	description := fmt.Sprintf("**%s**\nReact with %s to enter. Ends <t:%d:R>.", prize, giveawayEmoji, target.Unix())
	if winners > 1 {
		description += fmt.Sprintf("\n%d winners will be drawn.", winners)
	}
	embed := b.commandEmbed("🎉 Giveaway", description, b.cfg.Notifications.EmbedColors.Success, nil)

	msg, err := session.ChannelMessageSendEmbed(interaction.ChannelID, embed)
	if err != nil {
		_ = b.store.DeleteAction(ctx, id)
		b.respondError(session, interaction, err)
		return
	}
	if err := b.store.SetActionMessageID(ctx, id, msg.ID); err != nil {
		b.logger.Warn("attach giveaway message", zap.Int64("action", id), zap.Error(err))
	}
	_ = session.MessageReactionAdd(interaction.ChannelID, msg.ID, giveawayEmoji)

	b.audit.Record(ctx, interactionUserID(interaction), "giveaway", fmt.Sprintf("#%d", id), prize)
	b.respond(session, interaction, fmt.Sprintf("Giveaway #%d is live, it ends <t:%d:R>.", id, target.Unix()), true)
}

func (b *Bot) handleSchedule(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Say list or cancel.", true)
		return
	}

	switch options[0].StringValue() {
	case "list":
		actions, err := b.store.ListActiveActions(ctx, interaction.GuildID)
		if err != nil {
			b.respondError(session, interaction, err)
			return
		}
		if len(actions) == 0 {
			b.respond(session, interaction, "Nothing scheduled.", true)
			return
		}
		var sb strings.Builder
		for _, action := range actions {
			fmt.Fprintf(&sb, "#%d %s — fires <t:%d:R>", action.ID, action.Kind, action.TargetTime.Unix())
			if action.Recurring() {
				fmt.Fprintf(&sb, ", repeats every %s", utils.FormatDuration(action.Repeat))
			}
			sb.WriteString("\n")
		}
		embed := b.commandEmbed("Scheduled actions", strings.TrimRight(sb.String(), "\n"),
			b.cfg.Notifications.EmbedColors.Info, nil)
		b.respondEmbed(session, interaction, embed, true)
	case "cancel":
		var id int64
		for _, opt := range options[1:] {
			if opt.Name == "id" {
				id = opt.IntValue()
			}
		}
		if id == 0 {
			b.respond(session, interaction, "Tell me the action id to cancel.", true)
			return
		}
		if err := b.store.DeleteAction(ctx, id); err != nil {
			b.respondError(session, interaction, err)
			return
		}
		b.audit.Record(ctx, interactionUserID(interaction), "schedule_cancel", fmt.Sprintf("#%d", id), "")
		b.respond(session, interaction, fmt.Sprintf("Cancelled action #%d.", id), true)
	}
}

// fireGiveaway closes an ended giveaway: draw winners, announce them and
// credit the prize if it parses as an amount. A malformed payload is dropped
// rather than retried; a failed announcement is retried next pass, and prizes
// are credited only after the announcement went out.
func (b *Bot) fireGiveaway(ctx context.Context, action storage.ScheduledAction) error {
	payload, err := scheduler.DecodeGiveaway(action.Payload)
	if err != nil {
		b.logger.Error("drop malformed giveaway", zap.Int64("action", action.ID), zap.Error(err))
		return nil
	}
	entries, err := b.store.ListGiveawayEntries(ctx, action.ID)
	if err != nil {
		return err
	}
	winners := scheduler.DrawWinners(entries, payload.Winners)

	description := fmt.Sprintf("**%s** — nobody entered.", payload.Prize)
	if len(winners) > 0 {
		mentions := make([]string, len(winners))
		for i, winner := range winners {
			mentions[i] = "<@" + winner + ">"
		}
		description = fmt.Sprintf("**%s** goes to %s!", payload.Prize, strings.Join(mentions, ", "))
	}
	embed := b.commandEmbed("🎉 Giveaway ended", description, b.cfg.Notifications.EmbedColors.Success, nil)
	if _, err := b.session.ChannelMessageSendEmbed(action.ChannelID, embed); err != nil {
		return fmt.Errorf("announce giveaway %d: %w", action.ID, err)
	}

	b.awardPrizes(ctx, action.ID, payload.Prize, winners)
	return nil
}

// awardPrizes credits a giveaway prize to each winner. Prizes that do not
// parse as an amount are announce-only; winners without an account are
// skipped.
func (b *Bot) awardPrizes(ctx context.Context, actionID int64, prize string, winners []string) {
	delta, err := currency.ParseAmount(prize)
	if err != nil {
		return
	}
	details := fmt.Sprintf("giveaway #%d", actionID)
	for _, winner := range winners {
		handle, err := b.ledger.HandleFor(ctx, winner)
		if err != nil {
			b.logger.Warn("skip prize for unregistered winner",
				zap.Int64("action", actionID), zap.String("user", winner))
			continue
		}
		if _, err := b.ledger.Mutate(ctx, handle, delta, storage.TxGiveawayPrize, details, false); err != nil {
			b.logger.Error("credit giveaway prize",
				zap.Int64("action", actionID), zap.String("handle", handle), zap.Error(err))
		}
	}
}

func (b *Bot) fireReminder(ctx context.Context, action storage.ScheduledAction) error {
	payload, err := scheduler.DecodeReminder(action.Payload)
	if err != nil {
		b.logger.Error("drop malformed reminder", zap.Int64("action", action.ID), zap.Error(err))
		return nil
	}
	content := fmt.Sprintf("⏰ <@%s> %s", payload.UserID, payload.Message)
	if _, err := b.session.ChannelMessageSend(action.ChannelID, content); err != nil {
		return fmt.Errorf("send reminder %d: %w", action.ID, err)
	}
	return nil
}

func (b *Bot) firePoll(ctx context.Context, action storage.ScheduledAction) error {
	payload, err := scheduler.DecodePoll(action.Payload)
	if err != nil {
		b.logger.Error("drop malformed poll", zap.Int64("action", action.ID), zap.Error(err))
		return nil
	}
	counts, err := b.store.TallyPollVotes(ctx, action.ID)
	if err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n\n", payload.Question)
	for i, option := range payload.Options {
		emoji := ""
		if i < len(pollEmojis) {
			emoji = pollEmojis[i] + " "
		}
		fmt.Fprintf(&sb, "%s%s — %d\n", emoji, option, counts[i])
	}
	fmt.Fprintf(&sb, "\n%d votes in total.", total)

	embed := b.commandEmbed("📊 Poll closed", sb.String(), b.cfg.Notifications.EmbedColors.Info, nil)
	if _, err := b.session.ChannelMessageSendEmbed(action.ChannelID, embed); err != nil {
		return fmt.Errorf("announce poll %d: %w", action.ID, err)
	}
	return nil
}
