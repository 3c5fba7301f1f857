package starboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/collector"
	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/Seklfreak/robyul-starboard/helpers/dgwidgets"
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/karrick/tparse/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type action func(args []string, in *discordgo.Message, out **discordgo.MessageSend) (next action)

const (
	// how long notices and setup messages stay in the channel
	noticeDelay = 10 * time.Second
	// answer timeout of every setup question
	setupTimeout = time.Minute
	setupRetries = 2

	topLimit   = 50
	topPerPage = 10

	confirmEmoji = "✅"
	abortEmoji   = "❌"
)

// Handler is the starboard plugin, it routes reactions to the Engine and serves the starboard commands
type Handler struct {
	session *discordgo.Session
	router  *Router
	chat    *helpers.DiscordChat
	stars   MongoRepository
	log     *logrus.Entry
}

func (h *Handler) Commands() []string {
	return []string{
		"starboard",
		"sb",
	}
}

func (h *Handler) Init(session *discordgo.Session) {
	defer helpers.Recover()

	h.session = session
	h.log = cache.GetLogger().WithField("module", "starboard")
	h.chat = helpers.Chat()

	var cooldowns Cooldowns = NewLocalCooldowns(SelfStarCooldown, h.log)
	if cache.HasRedisClient() {
		cooldowns = NewRedisCooldowns(cache.GetRedisClient(), SelfStarCooldown, h.log)
	}
	engine := NewEngine(helpers.GuildSettings{}, h.stars, h.chat, cooldowns, h.log)
	h.router = NewRouter(engine, h.log)
	h.router.SelfID = func() string {
		if h.session.State == nil || h.session.State.User == nil {
			return ""
		}
		return h.session.State.User.ID
	}
	h.router.Notify = h.notify
	helpers.Relax(h.router.Subscribe(cache.GetBus()))
}

func (h *Handler) Action(command string, content string, msg *discordgo.Message, session *discordgo.Session) {
	defer helpers.RecoverDiscord(msg)

	session.ChannelTyping(msg.ChannelID)

	var result *discordgo.MessageSend
	args := strings.Fields(content)

	action := h.actionStart
	for action != nil {
		action = action(args, msg, &result)
	}
}

func (h *Handler) actionStart(args []string, in *discordgo.Message, out **discordgo.MessageSend) action {
	if in.GuildID == "" {
		return nil
	}

	if len(args) < 1 {
		return h.actionStatus
	}

	switch args[0] {
	case "status":
		return h.actionStatus
	case "top":
		return h.actionTop
	case "starrers":
		return h.actionStarrers
	case "setup":
		return h.actionSetup
	}

	*out = h.newMsg("bot.arguments.invalid")
	return h.actionFinish
}

func (h *Handler) actionStatus(args []string, in *discordgo.Message, out **discordgo.MessageSend) action {
	config := helpers.GuildSettingsGetCached(in.GuildID).Starboard()

	switch {
	case !config.Enabled:
		*out = h.newMsg("plugins.starboard.status-disabled")
	case config.DestinationChannelID == "":
		*out = h.newMsg("plugins.starboard.status-none")
	default:
		*out = &discordgo.MessageSend{Content: helpers.GetTextF("plugins.starboard.status-set",
			config.DestinationChannelID, humanize.Comma(int64(config.Threshold)), config.TriggerEmoji.String())}
	}
	return h.actionFinish
}

func (h *Handler) actionTop(args []string, in *discordgo.Message, out **discordgo.MessageSend) action {
	since, err := topSince(args, time.Now())
	if err != nil {
		*out = h.newMsg("bot.arguments.invalid")
		return h.actionFinish
	}

	entries, err := h.stars.Top(in.GuildID, since, topLimit)
	helpers.Relax(err)

	if len(entries) <= 0 {
		*out = h.newMsg("plugins.starboard.top-no-entries")
		return h.actionFinish
	}

	guildName := in.GuildID
	if guild, err := h.session.State.Guild(in.GuildID); err == nil {
		guildName = guild.Name
	}

	pages := topPages(guildName, entries)
	if len(pages) == 1 {
		*out = &discordgo.MessageSend{Embed: pages[0]}
		return h.actionFinish
	}

	paginator := dgwidgets.NewPaginator(in.GuildID, in.ChannelID, in.Author.ID)
	paginator.Add(pages...)
	paginator.SetPageFooters()
	paginator.Widget.Timeout = time.Minute * 2
	helpers.RelaxEmbed(paginator.Spawn(), in.ChannelID)
	return nil
}

// topSince parses the optional window of the top command, e.g. 1w or 12h, into its start
func topSince(args []string, now time.Time) (time.Time, error) {
	if len(args) < 2 {
		return time.Time{}, nil
	}
	if strings.HasPrefix(args[1], "-") {
		return time.Time{}, errors.New("negative window")
	}

	since, err := tparse.AddDuration(now, "-"+args[1])
	if err != nil {
		return time.Time{}, err
	}
	return since, nil
}

// topPages lists entries, topPerPage on every page
func topPages(guildName string, entries []models.StarEntry) []*discordgo.MessageEmbed {
	var pages []*discordgo.MessageEmbed
	for start := 0; start < len(entries); start += topPerPage {
		end := start + topPerPage
		if end > len(entries) {
			end = len(entries)
		}

		var lines []string
		for i, entry := range entries[start:end] {
			lines = append(lines, helpers.GetTextF("plugins.starboard.top-entry",
				start+i+1, entry.AuthorID, entry.ChannelID,
				StarEmoji(entry.Stars), humanize.Comma(int64(entry.Stars)),
				JumpURL(entry.GuildID, entry.ChannelID, entry.MessageID),
			))
		}

		pages = append(pages, &discordgo.MessageEmbed{
			Title:       helpers.GetTextF("plugins.starboard.top-title", guildName),
			Description: strings.Join(lines, "\n"),
			Color:       helpers.GetDiscordColorFromHex(starboardColor),
		})
	}
	return pages
}

func (h *Handler) actionStarrers(args []string, in *discordgo.Message, out **discordgo.MessageSend) action {
	if len(args) < 2 {
		*out = h.newMsg("bot.arguments.too-few")
		return h.actionFinish
	}

	messageID, ok := helpers.ParseSnowflake(args[1])
	if !ok {
		*out = h.newMsg("bot.arguments.invalid")
		return h.actionFinish
	}

	entry, err := h.stars.FindOne(messageID)
	helpers.Relax(err)
	if entry == nil || entry.GuildID != in.GuildID {
		*out = h.newMsg("plugins.starboard.starrers-unknown")
		return h.actionFinish
	}

	*out = &discordgo.MessageSend{Embed: starrersEmbed(entry)}
	return h.actionFinish
}

func starrersEmbed(entry *models.StarEntry) *discordgo.MessageEmbed {
	mentions := make([]string, 0, len(entry.StarUserIDs))
	for _, userID := range entry.StarUserIDs {
		mentions = append(mentions, "<@"+userID+">")
	}

	return &discordgo.MessageEmbed{
		Title: helpers.GetTextF("plugins.starboard.starrers-title", entry.MessageID),
		Description: fmt.Sprintf("%s\n\n%s %s",
			strings.Join(mentions, ", "), StarEmoji(entry.Stars), humanize.Comma(int64(entry.Stars))),
		URL:   JumpURL(entry.GuildID, entry.ChannelID, entry.MessageID),
		Color: helpers.GetDiscordColorFromHex(starboardColor),
	}
}

func (h *Handler) actionSetup(args []string, in *discordgo.Message, out **discordgo.MessageSend) action {
	if !helpers.IsAdmin(in) {
		*out = h.newMsg("mod.no_permission")
		return h.actionFinish
	}

	channel, err := h.prompt(in, "plugins.starboard.setup-channel", func(content string) (interface{}, error) {
		return helpers.GetGuildTextChannel(in.GuildID, content)
	})
	if err != nil {
		*out = h.setupFailed(err)
		return h.actionFinish
	}

	threshold, err := h.prompt(in, "plugins.starboard.setup-threshold", func(content string) (interface{}, error) {
		threshold, err := strconv.Atoi(content)
		if err != nil || threshold < 1 {
			return nil, errors.New(helpers.GetText("plugins.starboard.invalid-threshold"))
		}
		return threshold, nil
	})
	if err != nil {
		*out = h.setupFailed(err)
		return h.actionFinish
	}

	emoji, err := h.prompt(in, "plugins.starboard.setup-emoji", func(content string) (interface{}, error) {
		return helpers.ParseGuildEmoji(in.GuildID, content)
	})
	if err != nil {
		*out = h.setupFailed(err)
		return h.actionFinish
	}

	destination := channel.(*discordgo.Channel)
	trigger := emoji.(models.Emoji)
	confirmed := helpers.ConfirmEmbed(in.GuildID, in.ChannelID, in.Author,
		helpers.GetTextF("plugins.starboard.setup-confirm", destination.ID, threshold.(int), trigger.String()),
		confirmEmoji, abortEmoji,
	)
	if !confirmed {
		*out = h.newMsg("plugins.starboard.setup-aborted")
		return h.actionFinish
	}

	settings := helpers.GuildSettingsGetCached(in.GuildID)
	settings.StarboardEnabled = true
	settings.StarboardChannelID = destination.ID
	settings.StarboardMinimum = threshold.(int)
	settings.StarboardEmoji = trigger.String()
	err = helpers.GuildSettingsSet(in.GuildID, settings)
	helpers.Relax(err)

	*out = h.newMsg("plugins.starboard.setup-success")
	return h.actionFinish
}

// prompt asks the author of in the question with id question until validate accepts the answer
func (h *Handler) prompt(in *discordgo.Message, question string, validate collector.Validator) (interface{}, error) {
	return collector.Prompt(collector.PromptOptions{
		Bus:       cache.GetBus(),
		Messenger: h.chat,
		GuildID:   in.GuildID,
		ChannelID: in.ChannelID,
		UserID:    in.Author.ID,
		Question:  helpers.GetTextF(question, in.Author.ID),
		Validate:  validate,
		Retries:   setupRetries,
		RetryMessage: func(attempt int, err error) string {
			return helpers.GetTextF("plugins.starboard.setup-retry", err.Error(), attempt, setupRetries)
		},
		Timeout:     setupTimeout,
		DeleteDelay: noticeDelay,
	})
}

func (h *Handler) setupFailed(err error) *discordgo.MessageSend {
	if errors.Cause(err) == collector.ErrPromptTimeout {
		return h.newMsg("plugins.starboard.setup-timeout")
	}
	if errors.Cause(err) == collector.ErrPromptCancelled || errors.Cause(err) == collector.ErrPromptMaxRetries {
		return h.newMsg("plugins.starboard.setup-aborted")
	}
	helpers.Relax(err)
	return nil
}

func (h *Handler) actionFinish(args []string, in *discordgo.Message, out **discordgo.MessageSend) action {
	if *out == nil {
		return nil
	}

	_, err := h.session.ChannelMessageSendComplex(in.ChannelID, *out)
	helpers.RelaxEmbed(err, in.ChannelID)

	return nil
}

func (h *Handler) newMsg(content string) *discordgo.MessageSend {
	return &discordgo.MessageSend{Content: helpers.GetText(content)}
}

// notify sends a notice which deletes itself after noticeDelay
func (h *Handler) notify(channelID string, content string) {
	notice, err := h.chat.SendMessage(channelID, content)
	if err != nil {
		helpers.RelaxMessage(err)
		return
	}

	time.Sleep(noticeDelay)
	h.chat.DeleteMessage(notice.ChannelID, notice.ID)
}
