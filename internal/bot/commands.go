package bot

import "github.com/bwmarrin/discordgo"

// adminCommands names the slash commands gated behind isAdmin. Everything
// else is open to every member.
var adminCommands = map[string]bool{
	"addbal":      true,
	"removebal":   true,
	"resetbal":    true,
	"checkbal":    true,
	"history":     true,
	"addproduct":  true,
	"delproduct":  true,
	"addstock":    true,
	"stock":       true,
	"setworld":    true,
	"blacklist":   true,
	"maintenance": true,
	"automod":     true,
	"domain":      true,
	"stats":       true,
	"warnings":    true,
	"giveaway":    true,
	"schedule":    true,
}

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "register",
			Description: "Create your wallet account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "handle",
					Description: "account name, 3-20 letters, digits or underscore",
					Required:    true,
				},
			},
		},
		{
			Name:        "bal",
			Description: "Show your balance",
		},
		{
			Name:        "trx",
			Description: "Show your recent transactions",
		},
		{
			Name:        "shop",
			Description: "Browse the shop",
		},
		{
			Name:        "buy",
			Description: "Buy an item from the shop",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "product code",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "quantity",
					Description: "how many, default 1",
					Required:    false,
				},
			},
		},
		{
			Name:        "world",
			Description: "Show the current world info",
		},
		{
			Name:        "rank",
			Description: "Show chat level and XP",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to look up, default yourself",
					Required:    false,
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Top chatters by level",
		},
		{
			Name:        "rep",
			Description: "Give or view reputation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "give, show or top",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "give", Value: "give"},
						{Name: "show", Value: "show"},
						{Name: "top", Value: "top"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "target member",
					Required:    false,
				},
			},
		},
		{
			Name:        "remind",
			Description: "Schedule a reminder",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "when",
					Description: "e.g. 45m, 2h30m, tomorrow at 9am",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "what to remind you about",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "repeat",
					Description: "repeat interval, e.g. 1d or 12h",
					Required:    false,
				},
			},
		},
		{
			Name:        "poll",
			Description: "Open a reaction poll",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "what to ask",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "how long the poll runs, e.g. 1h",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "options",
					Description: "choices separated by semicolons, 2-10",
					Required:    true,
				},
			},
		},
		{
			Name:        "addbal",
			Description: "Credit a member's account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to credit",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "amount",
					Description: "e.g. 50c, 2s, 1g 5s",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "why",
					Required:    false,
				},
			},
		},
		{
			Name:        "removebal",
			Description: "Debit a member's account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to debit",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "amount",
					Description: "e.g. 50c, 2s, 1g 5s",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "why",
					Required:    false,
				},
			},
		},
		{
			Name:        "resetbal",
			Description: "Zero a member's account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to reset",
					Required:    true,
				},
			},
		},
		{
			Name:        "checkbal",
			Description: "Inspect a member's balance",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to inspect",
					Required:    true,
				},
			},
		},
		{
			Name:        "history",
			Description: "Inspect a member's transaction log",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to inspect",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "entries to show, default 10",
					Required:    false,
				},
			},
		},
		{
			Name:        "addproduct",
			Description: "Create or update a product",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "product code",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "display name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "price",
					Description: "e.g. 50c, 2s, 1g 5s",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "shop listing text",
					Required:    false,
				},
			},
		},
		{
			Name:        "delproduct",
			Description: "Remove a product from the shop",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "product code",
					Required:    true,
				},
			},
		},
		{
			Name:        "addstock",
			Description: "Add stock items to a product",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "product code",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "items",
					Description: "item contents separated by semicolons",
					Required:    true,
				},
			},
		},
		{
			Name:        "stock",
			Description: "Show stock across all products",
		},
		{
			Name:        "setworld",
			Description: "Update the world info",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "world",
					Description: "world name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "owner",
					Description: "world owner",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "keeper",
					Description: "shop keeper",
					Required:    true,
				},
			},
		},
		{
			Name:        "blacklist",
			Description: "Manage the bot blacklist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "target member",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "why",
					Required:    false,
				},
			},
		},
		{
			Name:        "maintenance",
			Description: "Toggle maintenance mode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "value",
					Description: "on or off",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "on", Value: "on"},
						{Name: "off", Value: "off"},
					},
				},
			},
		},
		{
			Name:        "automod",
			Description: "View or tune the message filters",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "show or set",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "show", Value: "show"},
						{Name: "set", Value: "set"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "turn the filters on or off",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "spam_messages",
					Description: "messages per window before spam flags",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "spam_window",
					Description: "spam window seconds",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "caps_ratio",
					Description: "uppercase ratio 0-1",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "caps_min_length",
					Description: "minimum letters before caps check",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "banned_words",
					Description: "comma separated words",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "link_filter",
					Description: "filter links against the domain lists",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "warn_threshold",
					Description: "warnings before a timeout",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "timeout_minutes",
					Description: "timeout length in minutes",
					Required:    false,
				},
			},
		},
		{
			Name:        "domain",
			Description: "Manage domain lists",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "list",
					Description: "allow or block",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "allow", Value: "allow"},
						{Name: "block", Value: "block"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "domain",
					Description: "domain name",
					Required:    false,
				},
			},
		},
		{
			Name:        "stats",
			Description: "Server activity report",
		},
		{
			Name:        "warnings",
			Description: "View or clear a member's warnings",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "target member",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "clear",
					Description: "clear the warnings",
					Required:    false,
				},
			},
		},
		{
			Name:        "giveaway",
			Description: "Start a giveaway in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prize",
					Description: "what the winners get, amounts like 5g are paid out",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "how long entries stay open, e.g. 2h",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "winners",
					Description: "number of winners, default 1",
					Required:    false,
				},
			},
		},
		{
			Name:        "schedule",
			Description: "List or cancel scheduled actions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "list or cancel",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "list", Value: "list"},
						{Name: "cancel", Value: "cancel"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "id",
					Description: "action id to cancel",
					Required:    false,
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildID := guild.ID
		guildCmds, err := b.session.ApplicationCommands(appID, guildID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
		}
	}
	return nil
}
