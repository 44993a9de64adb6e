package automod

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"storekeeper/internal/storage"
	"storekeeper/internal/utils"
)

const (
	RuleSpam       = "spam"
	RuleBannedWord = "banned_word"
	RuleCaps       = "caps"
	RuleLink       = "link"
)

// Score deltas per rule. Banned words weigh the most, shouting the least.
const (
	spamScore       = 12
	bannedWordScore = 30
	capsScore       = 8
	linkScore       = 25
)

const (
	settingsCacheTTL = time.Minute
	domainsCacheTTL  = time.Minute
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store interface {
	GetAutomodSettings(ctx context.Context, guildID string) (storage.AutomodSettings, error)
	UpsertAutomodSettings(ctx context.Context, settings storage.AutomodSettings) error
	AddWarning(ctx context.Context, warning storage.Warning) (int64, error)
	CountWarnings(ctx context.Context, guildID, userID string) (int, error)
	ClearWarnings(ctx context.Context, guildID, userID string) (int64, error)
	ListDomainAllow(ctx context.Context, guildID string) ([]string, error)
	ListDomainBlock(ctx context.Context, guildID string) ([]string, error)
}

// Verdict describes what a message tripped and what should happen to its
// author. Enforcement stays with the caller, the module only decides.
type Verdict struct {
	Flagged  bool
	Rule     string
	Reason   string
	Score    float64
	Warnings int
	Timeout  time.Duration
}

type spamWindow struct {
	window *utils.SlidingWindow
	span   time.Duration
}

type domainLists struct {
	allow map[string]struct{}
	block map[string]struct{}
}

// Module watches guild messages for spam bursts, banned words, caps walls
// and blocklisted links, and escalates repeat offenders to a timeout.
type Module struct {
	store  Store
	score  *ScoreEngine
	logger *zap.Logger
	clock  Clock

	mu       sync.Mutex
	windows  map[string]*spamWindow
	settings *utils.TTLCache[storage.AutomodSettings]
	domains  *utils.TTLCache[domainLists]
}

func New(store Store, logger *zap.Logger) *Module {
	return &Module{
		store:    store,
		score:    NewScoreEngine(ScoreConfig{}),
		logger:   logger,
		clock:    realClock{},
		windows:  make(map[string]*spamWindow),
		settings: utils.NewTTLCache[storage.AutomodSettings](settingsCacheTTL),
		domains:  utils.NewTTLCache[domainLists](domainsCacheTTL),
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
	m.score.WithClock(clock)
}

func (m *Module) Scores() *ScoreEngine {
	return m.score
}

// Settings returns the guild settings, cached for a minute.
func (m *Module) Settings(ctx context.Context, guildID string) (storage.AutomodSettings, error) {
	if cached, ok := m.settings.Get(guildID, m.clock.Now()); ok {
		return cached, nil
	}
	settings, err := m.store.GetAutomodSettings(ctx, guildID)
	if err != nil {
		return storage.AutomodSettings{}, err
	}
	m.settings.Set(guildID, settings, m.clock.Now())
	return settings, nil
}

func (m *Module) UpdateSettings(ctx context.Context, settings storage.AutomodSettings) error {
	if err := m.store.UpsertAutomodSettings(ctx, settings); err != nil {
		return err
	}
	m.settings.Invalidate(settings.GuildID)
	return nil
}

// InvalidateDomains drops the cached domain lists so edits apply right away
// instead of after the cache TTL.
func (m *Module) InvalidateDomains(guildID string) {
	m.domains.Invalidate(guildID)
}

// CheckMessage runs a message through every enabled rule and returns the
// verdict. Storage hiccups are logged and degrade to a clean verdict rather
// than blocking chat.
func (m *Module) CheckMessage(ctx context.Context, guildID, userID, content string) Verdict {
	settings, err := m.Settings(ctx, guildID)
	if err != nil {
		m.logger.Error("automod settings lookup failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return Verdict{}
	}
	if !settings.Enabled || content == "" {
		return Verdict{}
	}

	rule, reason, delta := m.match(ctx, settings, guildID, userID, content)
	if rule == "" {
		return Verdict{}
	}

	verdict := Verdict{
		Flagged: true,
		Rule:    rule,
		Reason:  reason,
		Score:   m.score.Add(guildID, userID, delta),
	}

	if _, err := m.store.AddWarning(ctx, storage.Warning{
		GuildID:  guildID,
		UserID:   userID,
		Reason:   reason,
		IssuedBy: "automod",
	}); err != nil {
		m.logger.Error("automod warning write failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
		return verdict
	}

	count, err := m.store.CountWarnings(ctx, guildID, userID)
	if err != nil {
		m.logger.Error("automod warning count failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
		return verdict
	}
	verdict.Warnings = count

	if settings.WarnThreshold > 0 && count >= settings.WarnThreshold {
		verdict.Timeout = time.Duration(settings.TimeoutMinutes) * time.Minute
		// The slate is wiped so the next offence starts a fresh cycle
		// instead of timing the member out on every message.
		if _, err := m.store.ClearWarnings(ctx, guildID, userID); err != nil {
			m.logger.Error("automod warning clear failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	m.logger.Info("automod flagged message",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("rule", rule),
		zap.Float64("score", verdict.Score),
		zap.Int("warnings", verdict.Warnings))
	return verdict
}

func (m *Module) match(ctx context.Context, settings storage.AutomodSettings, guildID, userID, content string) (rule, reason string, delta float64) {
	if settings.SpamMessages > 0 {
		count := m.windowFor(guildID+":"+userID, settings.SpamWindow).Add(m.clock.Now())
		if count >= settings.SpamMessages {
			return RuleSpam, "message burst", spamScore
		}
	}

	if word := matchBannedWord(content, settings.BannedWords); word != "" {
		return RuleBannedWord, "banned word: " + word, bannedWordScore
	}

	if settings.CapsMinLength > 0 {
		letters, upper := capsStats(content)
		if letters >= settings.CapsMinLength && float64(upper) >= settings.CapsRatio*float64(letters) {
			return RuleCaps, "excessive caps", capsScore
		}
	}

	if settings.LinkFilter {
		if offending, blocked := m.checkLinks(ctx, guildID, content); blocked {
			return RuleLink, "blocked link: " + offending, linkScore
		}
	}

	return "", "", 0
}

// windowFor hands out the per-member sliding window, recreating it when the
// configured span changed since it was built.
func (m *Module) windowFor(key string, span time.Duration) *utils.SlidingWindow {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.windows[key]
	if !ok || entry.span != span {
		entry = &spamWindow{window: utils.NewSlidingWindow(span), span: span}
		m.windows[key] = entry
	}
	return entry.window
}

func matchBannedWord(content string, words []string) string {
	if len(words) == 0 {
		return ""
	}
	normalized := normalizeText(content)
	for _, word := range words {
		target := normalizeText(word)
		if target == "" {
			continue
		}
		if strings.Contains(normalized, target) {
			return word
		}
	}
	return ""
}

// normalizeText lowers the input and folds common diacritic and homoglyph
// substitutions so "grïef" still matches "grief".
func normalizeText(input string) string {
	lowered := strings.ToLower(input)

	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"í", "i", "ì", "i", "î", "i", "ï", "i",
		"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o",
		"ú", "u", "ù", "u", "û", "u", "ü", "u",
		"ç", "c", "ñ", "n",
		"0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "7", "t", "@", "a", "$", "s",
	)
	return replacer.Replace(lowered)
}

func capsStats(content string) (letters, upper int) {
	for _, r := range content {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return letters, upper
}
