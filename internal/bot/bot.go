// Package bot wires the Discord gateway to the ledger, shop, scheduler and
// community modules. Slash commands, message events and reactions are handled
// here; the services underneath know nothing about Discord.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storekeeper/internal/analytics"
	"storekeeper/internal/catalog"
	"storekeeper/internal/config"
	"storekeeper/internal/currency"
	"storekeeper/internal/ledger"
	"storekeeper/internal/modules/audit"
	"storekeeper/internal/modules/automod"
	"storekeeper/internal/modules/leveling"
	"storekeeper/internal/modules/reputation"
	"storekeeper/internal/scheduler"
	"storekeeper/internal/shop"
	"storekeeper/internal/storage"
	"storekeeper/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sho0pi/naturaltime"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const settingMaintenance = "maintenance"

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	ledger     *ledger.Service
	catalog    *catalog.Service
	shop       *shop.Service
	automod    *automod.Module
	leveling   *leveling.Module
	reputation *reputation.Module
	audit      *audit.Logger
	analytics  *analytics.Service
	rates      currency.Rates
	times      *naturaltime.Parser
	session    *discordgo.Session
	limiterMu  sync.Mutex
	limiters   map[string]*rate.Limiter
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, ledgerService *ledger.Service, catalogService *catalog.Service, shopService *shop.Service, poller *scheduler.Poller, automodModule *automod.Module, levelingModule *leveling.Module, reputationModule *reputation.Module, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	times, err := naturaltime.New()
	if err != nil {
		return nil, fmt.Errorf("create time parser: %w", err)
	}

	b := &Bot{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		ledger:     ledgerService,
		catalog:    catalogService,
		shop:       shopService,
		automod:    automodModule,
		leveling:   levelingModule,
		reputation: reputationModule,
		audit:      auditLogger,
		analytics:  analyticsService,
		rates:      currency.Rates{Silver: cfg.Currency.SilverRate, Gold: cfg.Currency.GoldRate},
		times:      times,
		session:    session,
		limiters:   make(map[string]*rate.Limiter),
	}

	poller.Register(storage.ActionGiveaway, b.fireGiveaway)
	poller.Register(storage.ActionReminder, b.fireReminder)
	poller.Register(storage.ActionPoll, b.firePoll)

	if b.audit != nil {
		b.audit.SetNotifier(b.notifyAdminAction)
		b.audit.SetBurstAlert(b.alertAdminBurst)
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	return nil
}

func (b *Bot) Close() {
	if b.session != nil {
		_ = b.session.Close()
	}
}

// Notify posts a plain message to a channel. The jobs runner delivers the
// daily summary through it.
func (b *Bot) Notify(channelID, message string) {
	if channelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, message); err != nil {
		b.logger.Error("send notification", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
	if err := session.UpdateGameStatus(0, "/shop"); err != nil {
		b.logger.Warn("update status", zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	if blacklisted, err := b.store.IsBlacklisted(ctx, msg.Author.ID); err == nil && blacklisted {
		return
	}

	verdict := b.automod.CheckMessage(ctx, msg.GuildID, msg.Author.ID, msg.Content)
	if verdict.Flagged {
		b.enforceVerdict(session, msg, verdict)
		return
	}

	result, err := b.leveling.HandleMessage(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		b.logger.Error("award message xp", zap.String("user_id", msg.Author.ID), zap.Error(err))
		return
	}
	if result.LeveledUp && b.cfg.Leveling.AnnounceLevelUp {
		_, _ = session.ChannelMessageSend(msg.ChannelID,
			fmt.Sprintf("🎉 <@%s> reached level %d!", msg.Author.ID, result.Progress.Level))
	}
}

// enforceVerdict deletes the flagged message, warns the author in channel and
// applies the timeout once the warn threshold has tripped.
func (b *Bot) enforceVerdict(session *discordgo.Session, msg *discordgo.MessageCreate, verdict automod.Verdict) {
	if err := session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		b.logger.Warn("delete flagged message", zap.String("message_id", msg.ID), zap.Error(err))
	}

	notice := fmt.Sprintf("<@%s> your message was removed: %s (warning %d)",
		msg.Author.ID, verdict.Reason, verdict.Warnings)
	if verdict.Timeout > 0 {
		until := time.Now().Add(verdict.Timeout)
		if err := session.GuildMemberTimeout(msg.GuildID, msg.Author.ID, &until); err != nil {
			b.logger.Warn("timeout member", zap.String("user_id", msg.Author.ID), zap.Error(err))
		}
		notice = fmt.Sprintf("<@%s> timed out for %s after repeated violations",
			msg.Author.ID, utils.FormatDuration(verdict.Timeout))
	}
	_, _ = session.ChannelMessageSend(msg.ChannelID, notice)
}

func (b *Bot) onReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if session.State.User != nil && event.UserID == session.State.User.ID {
		return
	}
	emoji := event.Emoji.Name
	optionIndex, isPollEmoji := pollOptionIndex(emoji)
	if emoji != giveawayEmoji && !isPollEmoji {
		return
	}

	ctx := context.Background()
	action, err := b.store.ActionByMessageID(ctx, event.MessageID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Error("resolve reaction target", zap.String("message_id", event.MessageID), zap.Error(err))
		}
		return
	}

	switch {
	case action.Kind == storage.ActionGiveaway && emoji == giveawayEmoji:
		if _, err := b.store.AddGiveawayEntry(ctx, action.ID, event.UserID); err != nil {
			b.logger.Error("add giveaway entry", zap.Int64("action_id", action.ID), zap.Error(err))
		}
	case action.Kind == storage.ActionPoll && isPollEmoji:
		payload, err := scheduler.DecodePoll(action.Payload)
		if err != nil {
			b.logger.Error("decode poll payload", zap.Int64("action_id", action.ID), zap.Error(err))
			return
		}
		if optionIndex >= len(payload.Options) {
			return
		}
		if err := b.store.AddPollVote(ctx, action.ID, event.UserID, optionIndex); err != nil {
			b.logger.Error("record poll vote", zap.Int64("action_id", action.ID), zap.Error(err))
		}
	}
}

// onReactionRemove withdraws giveaway entries. Poll votes stay as they are;
// picking another option replaces the previous vote instead.
func (b *Bot) onReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	if session.State.User != nil && event.UserID == session.State.User.ID {
		return
	}
	if event.Emoji.Name != giveawayEmoji {
		return
	}

	ctx := context.Background()
	action, err := b.store.ActionByMessageID(ctx, event.MessageID)
	if err != nil || action.Kind != storage.ActionGiveaway {
		return
	}
	if err := b.store.RemoveGiveawayEntry(ctx, action.ID, event.UserID); err != nil {
		b.logger.Error("remove giveaway entry", zap.Int64("action_id", action.ID), zap.Error(err))
	}
}

func (b *Bot) isAdmin(i *discordgo.InteractionCreate) bool {
	userID := interactionUserID(i)
	if userID != "" && userID == b.cfg.OwnerID {
		return true
	}
	if i.Member == nil {
		return false
	}
	if b.cfg.AdminRoleID != "" {
		for _, role := range i.Member.Roles {
			if role == b.cfg.AdminRoleID {
				return true
			}
		}
	}
	return i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// allowCommand enforces the per-user command budget. Limiters are created on
// first use and kept for the life of the process.
func (b *Bot) allowCommand(userID string) bool {
	b.limiterMu.Lock()
	defer b.limiterMu.Unlock()

	limiter, ok := b.limiters[userID]
	if !ok {
		interval := time.Minute / time.Duration(b.cfg.RateLimit.CommandsPerMinute)
		limiter = rate.NewLimiter(rate.Every(interval), b.cfg.RateLimit.Burst)
		b.limiters[userID] = limiter
	}
	return limiter.Allow()
}

func (b *Bot) maintenanceOn(ctx context.Context) bool {
	value, err := b.store.GetSetting(ctx, settingMaintenance, "off")
	if err != nil {
		return false
	}
	return value == "on"
}

// notifyAdminAction mirrors audited admin actions to the log channel when one
// is configured.
func (b *Bot) notifyAdminAction(ctx context.Context, entry storage.AdminLog) {
	channelID := b.cfg.Notifications.LogChannel
	if channelID == "" {
		return
	}
	line := fmt.Sprintf("🛡️ `%s` by <@%s>", entry.Action, entry.AdminID)
	if entry.Target != "" {
		line += fmt.Sprintf(" on `%s`", entry.Target)
	}
	if entry.Details != "" {
		line += " — " + entry.Details
	}
	if _, err := b.session.ChannelMessageSend(channelID, line); err != nil {
		b.logger.Warn("mirror admin action", zap.Error(err))
	}
}

func (b *Bot) alertAdminBurst(ctx context.Context, adminID string, count int) {
	b.logger.Warn("admin action burst",
		zap.String("admin_id", adminID),
		zap.Int("count", count))
	channelID := b.cfg.Notifications.LogChannel
	if channelID == "" {
		return
	}
	_, _ = b.session.ChannelMessageSend(channelID,
		fmt.Sprintf("⚠️ <@%s> issued %d admin actions within a minute", adminID, count))
}

func (b *Bot) respond(session *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("interaction respond", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("interaction respond", zap.Error(err))
	}
}

// respondError translates service errors into something the member can act
// on. Unknown errors get logged and answered with a generic apology.
func (b *Bot) respondError(session *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	message, known := friendlyError(err)
	if !known {
		b.logger.Error("command failed", zap.Error(err))
	}
	b.respond(session, i, message, true)
}

func friendlyError(err error) (string, bool) {
	switch {
	case errors.Is(err, ledger.ErrBusy):
		return "Another operation on this account is in progress, try again in a moment.", true
	case errors.Is(err, ledger.ErrInvalidHandle):
		return "Handles are 3-20 characters of letters, digits or underscore.", true
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		return "You already have a registered account.", true
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "The amount must not be zero.", true
	case errors.Is(err, storage.ErrDuplicateAccount):
		return "That handle is already taken.", true
	case errors.Is(err, storage.ErrNotFound):
		return "No matching record was found. Members register with /register first.", true
	case errors.Is(err, storage.ErrInsufficientFunds):
		return "The account does not hold enough funds.", true
	case errors.Is(err, storage.ErrInsufficientStock):
		return "Not enough items in stock.", true
	case errors.Is(err, shop.ErrInvalidQuantity):
		return "Quantity must be at least 1.", true
	case errors.Is(err, reputation.ErrDisabled):
		return "Reputation is disabled on this server.", true
	case errors.Is(err, reputation.ErrSelfRep):
		return "You cannot give reputation to yourself.", true
	case errors.Is(err, reputation.ErrOnCooldown):
		return "You already thanked this member recently.", true
	case errors.Is(err, reputation.ErrDailyLimit):
		return "You reached today's reputation limit.", true
	default:
		return "Something went wrong, try again later.", false
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

// parseWhen accepts compact durations ("90m", "2h30m", "1d") as well as
// natural phrases ("tomorrow at 9am", "in two hours"). The result is always
// in the future.
func (b *Bot) parseWhen(raw string, now time.Time) (time.Time, error) {
	if d, err := utils.ParseCompactDuration(raw); err == nil {
		return now.Add(d), nil
	}
	when, err := b.times.ParseDate(raw, now)
	if err == nil && when != nil && when.After(now) {
		return *when, nil
	}
	return time.Time{}, fmt.Errorf("could not understand the time %q", raw)
}
