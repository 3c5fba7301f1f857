package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/Seklfreak/robyul-starboard/logging"
	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/Seklfreak/robyul-starboard/version"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/raven-go"
	"github.com/go-redis/redis"
	"github.com/kz/discordrus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Entrypoint
func main() {
	configPath := pflag.StringP("config", "c", "config.json", "path to the JSON config file")
	pflag.Parse()

	log := logrus.New()
	log.Out = os.Stdout
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339}
	log.Hooks = make(logrus.LevelHooks)
	cache.SetLogger(log)

	// Read config
	helpers.LoadConfig(*configPath)

	// Check if the bot is being debugged
	if helpers.ConfigBool("debug") {
		helpers.DEBUG_MODE = true
		log.Level = logrus.DebugLevel
	}

	if path := helpers.ConfigString("logging.jsonfile", ""); path != "" {
		fileHook, err := logging.NewLogrusFileHook(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666, logrus.DebugLevel)
		if err != nil {
			log.WithField("module", "launcher").Error("logrus file hook failed, err: ", err.Error())
		} else {
			log.Hooks.Add(fileHook)
			defer fileHook.Close()
		}
	}

	if webhook := helpers.ConfigString("logging.discord_webhook", ""); webhook != "" {
		log.Hooks.Add(discordrus.NewHook(
			webhook,
			logrus.ErrorLevel,
			&discordrus.Opts{
				Username:           "Logging",
				DisableTimestamp:   false,
				TimestampFormat:    "Jan 2 15:04:05.00000",
				EnableCustomColors: true,
				CustomLevelColors: &discordrus.LevelColors{
					Error: 13631488,
					Panic: 13631488,
					Fatal: 13631488,
				},
			},
		))
	}

	log.WithField("module", "launcher").Info("Booting Robyul Starboard...")

	// Read i18n
	helpers.LoadTranslations()

	// Show version
	version.DumpInfo(log.WithField("module", "version"))

	// Start metric server
	metrics.Init(helpers.ConfigString("metrics.address", "localhost:9090"), log.WithField("module", "metrics"))

	// Call home
	if dsn := helpers.ConfigString("sentry", ""); dsn != "" {
		log.WithField("module", "launcher").Info("[SENTRY] Calling home...")
		err := raven.SetDSN(dsn)
		if err != nil {
			panic(err)
		}
		if version.IsRelease() {
			raven.SetRelease(version.BOT_VERSION)
		}
		log.WithField("module", "launcher").Info("[SENTRY] Someone picked up the phone \\^-^/")
	}

	// Connect to DB
	log.WithField("module", "launcher").Info("Opening database connection...")
	helpers.ConnectMDB(
		helpers.ConfigString("mongodb.url", "localhost:27017"),
		helpers.ConfigString("mongodb.db", "robyul"),
	)

	// Close DB when main dies
	defer helpers.GetMDbSession().Close()

	// Connecting to redis
	if address := helpers.ConfigString("redis.address", ""); address != "" {
		log.WithField("module", "launcher").Info("Connecting to redis...")
		redisClient := redis.NewClient(&redis.Options{
			Addr:     address,
			Password: helpers.ConfigString("redis.password", ""),
			DB:       0,
		})
		err := redisClient.Ping().Err()
		if err != nil {
			log.WithField("module", "launcher").Warn("redis is not reachable, using in-memory caches: ", err.Error())
			redisClient.Close()
		} else {
			cache.SetRedisClient(redisClient)
			defer redisClient.Close()
		}
	}

	// Gateway events are published on the bus, starboard and collectors subscribe to it
	eventBus := bus.New(log.WithField("module", "bus"))
	cache.SetBus(eventBus)
	defer eventBus.Close()

	// Connect and add event handlers
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		pc, file, line, _ := runtime.Caller(caller)

		files := strings.Split(file, "/")
		file = files[len(files)-1]

		name := runtime.FuncForPC(pc).Name()
		fns := strings.Split(name, ".")
		name = fns[len(fns)-1]

		msg := format
		if strings.Contains(msg, "%") {
			msg = fmt.Sprintf(format, a...)
		}

		switch msgL {
		case discordgo.LogError:
			log.WithField("module", "discordgo").Errorf("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogWarning:
			log.WithField("module", "discordgo").Warnf("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogInformational:
			log.WithField("module", "discordgo").Infof("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogDebug:
			log.WithField("module", "discordgo").Debugf("%s:%d:%s() %s", file, line, name, msg)
		}
	}
	log.WithField("module", "launcher").Info("Connecting Robyul Starboard to discord...")
	discord, err := discordgo.New("Bot " + helpers.ConfigString("discord.token", ""))
	if err != nil {
		panic(err)
	}

	discord.Lock()
	discord.Debug = false
	discord.LogLevel = discordgo.LogInformational
	discord.StateEnabled = true
	// dispatches reach the bus in gateway order
	discord.SyncEvents = true
	discord.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentGuildEmojis |
		discordgo.IntentMessageContent
	discord.Unlock()

	discord.AddHandlerOnce(BotOnReady)
	discord.AddHandler(BotOnMessageCreate)
	discord.AddHandler(bus.ForwardGateway(eventBus))

	// Connect to discord
	err = discord.Open()
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		panic(err)
	}

	// Make a channel that waits for a os signal
	runtimeChannel := make(chan os.Signal, 1)
	signal.Notify(runtimeChannel, os.Interrupt, syscall.SIGTERM)

	// Wait until the os wants us to shutdown
	<-runtimeChannel

	log.WithField("module", "launcher").Info("Robyul Starboard is stopping")
	log.WithField("module", "launcher").Info("Disconnecting bot discord session...")
	discord.Close()
}
