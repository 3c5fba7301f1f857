package main

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/Seklfreak/robyul-starboard/modules"
	"github.com/Seklfreak/robyul-starboard/ratelimits"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/raven-go"
)

var (
	mentionHelpRegex   = regexp.MustCompile("(?i)^HELP.*")
	mentionPrefixRegex = regexp.MustCompile("(?i)^PREFIX.*")
)

// BotOnReady gets called after the gateway connected
func BotOnReady(session *discordgo.Session, event *discordgo.Ready) {
	log := cache.GetLogger()

	log.WithField("module", "bot").Info("Connected to discord!")
	if clientID := helpers.ConfigString("discord.id", ""); clientID != "" {
		log.WithField("module", "bot").Info("Invite link: " + fmt.Sprintf(
			"https://discord.com/oauth2/authorize?client_id=%s&scope=bot&permissions=%s",
			clientID,
			helpers.ConfigString("discord.perms", "0"),
		))
	}

	// Cache the session
	cache.SetSession(session)

	// Load and init all modules
	err := modules.Init(session)
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		log.WithField("module", "bot").Fatal(err.Error())
	}

	// Run async worker for guild changes
	go helpers.GuildSettingsUpdater()

	// Run ratelimiter
	ratelimits.Container.Init()
}

// BotOnMessageCreate gets called after a new message was sent
// This will be called after *every* message on *every* server so it should die as soon as possible
// or spawn costly work inside of coroutines.
func BotOnMessageCreate(session *discordgo.Session, message *discordgo.MessageCreate) {
	// Ignore other bots and @everyone/@here
	if message.Author == nil || message.Author.Bot || message.MentionEveryone {
		return
	}

	// Commands only work in guilds
	channel, err := cache.Channel(message.ChannelID)
	if err != nil {
		go raven.CaptureError(err, map[string]string{})
		return
	}
	if channel.GuildID == "" {
		return
	}

	// Check if the message contains @mentions for us
	if strings.HasPrefix(message.Content, "<@") && len(message.Mentions) > 0 && message.Mentions[0].ID == session.State.User.ID {
		// Consume a key for this action
		if ratelimits.Container.Drain(1, message.Author.ID) != nil {
			return
		}

		msg := strings.TrimSpace(strings.NewReplacer(
			"<@"+session.State.User.ID+">", "",
			"<@!"+session.State.User.ID+">", "",
		).Replace(message.Content))

		switch {
		case mentionHelpRegex.MatchString(msg):
			metrics.CommandsExecuted.Inc()
			sendHelp(message, channel.GuildID)

		case mentionPrefixRegex.MatchString(msg):
			metrics.CommandsExecuted.Inc()
			session.ChannelMessageSend(
				channel.ID,
				helpers.GetTextF("bot.prefix.is", helpers.GetPrefixForServer(channel.GuildID)),
			)
		}
		return
	}

	// Only continue if a prefix is set
	prefix := helpers.GetPrefixForServer(channel.GuildID)
	if prefix == "" || !strings.HasPrefix(message.Content, prefix) {
		return
	}

	// Split the message into parts
	parts := strings.Fields(strings.TrimPrefix(message.Content, prefix))
	if len(parts) <= 0 {
		return
	}
	cmd := strings.ToLower(parts[0])

	if cmd != "h" && cmd != "help" && !isCommand(cmd) {
		return
	}

	// Check if the user is allowed to request commands
	if !ratelimits.Container.HasKeys(message.Author.ID) && !helpers.IsBotAdmin(message.Author.ID) {
		session.ChannelMessageSend(message.ChannelID, helpers.GetTextF("bot.ratelimit.hit", message.Author.ID))

		ratelimits.Container.Set(message.Author.ID, -1)
		return
	}

	// Check if the user calls for help
	if cmd == "h" || cmd == "help" {
		metrics.CommandsExecuted.Inc()
		sendHelp(message, channel.GuildID)
		return
	}

	// Separate arguments from the command
	content := strings.TrimSpace(strings.TrimPrefix(message.Content, prefix))
	content = strings.TrimSpace(content[len(parts[0]):])

	cache.GetLogger().WithField("module", "bot").Debug(fmt.Sprintf("%s (#%s) in #%s: %s",
		message.Author.Username, message.Author.ID, channel.GuildID, message.Content))

	modules.DispatchBotPlugin(cmd, content, message.Message)
}

// isCommand checks the sorted list of registered commands
func isCommand(cmd string) bool {
	commands := cache.GetPluginList()
	i := sort.SearchStrings(commands, cmd)
	return i < len(commands) && commands[i] == cmd
}

func sendHelp(message *discordgo.MessageCreate, guildID string) {
	prefix := helpers.GetPrefixForServer(guildID)

	cache.GetSession().ChannelMessageSend(
		message.ChannelID,
		helpers.GetTextF("bot.help", message.Author.ID, prefix, prefix, prefix, prefix),
	)
}
