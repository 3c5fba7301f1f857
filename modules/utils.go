package modules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/Seklfreak/robyul-starboard/ratelimits"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// Init resolves the command registry and initializes the plugins
func Init(session *discordgo.Session) error {
	registry, err := buildRegistry(PluginList)
	if err != nil {
		return err
	}
	pluginCache = registry

	for _, plugin := range PluginList {
		cache.GetLogger().WithField("module", "modules").Info(fmt.Sprintf(
			"[PLUG] %T reacts to [ %s ]", plugin, strings.Join(plugin.Commands(), " "),
		))
		plugin.Init(session)
	}

	commands := make([]string, 0, len(registry))
	for command := range registry {
		commands = append(commands, command)
	}
	sort.Strings(commands)
	cache.SetPluginList(commands)

	cache.GetLogger().WithField("module", "modules").Info(fmt.Sprintf(
		"Initializer finished. Loaded %d plugins with %d commands", len(PluginList), len(commands),
	))
	return nil
}

// buildRegistry maps every command to its plugin, a command may only be claimed once
func buildRegistry(plugins []Plugin) (map[string]Plugin, error) {
	registry := make(map[string]Plugin)
	for _, plugin := range plugins {
		for _, command := range plugin.Commands() {
			command = strings.ToLower(command)
			if occupant, ok := registry[command]; ok {
				return nil, errors.Errorf("failed to load %T because '%s' was already registered by %T", plugin, command, occupant)
			}
			registry[command] = plugin
		}
	}
	return registry, nil
}

// DispatchBotPlugin runs the plugin registered for command on its own goroutine, returns false if there is none.
// Commands wait for further gateway events, so they must not run on the goroutine delivering them.
func DispatchBotPlugin(command string, content string, msg *discordgo.Message) bool {
	if _, ok := pluginCache[strings.ToLower(command)]; !ok {
		return false
	}

	go CallBotPlugin(command, content, msg)
	return true
}

// CallBotPlugin runs the plugin registered for command, returns false if there is none
// command - The command that triggered this execution
// content - The content without command
// msg     - The message object
func CallBotPlugin(command string, content string, msg *discordgo.Message) bool {
	ref, ok := pluginCache[strings.ToLower(command)]
	if !ok {
		return false
	}

	// Defer a recovery in case anything panics
	defer helpers.RecoverDiscord(msg)

	// Consume a key for this action
	ratelimits.Container.Drain(1, msg.Author.ID)

	metrics.CommandsExecuted.Inc()

	ref.Action(command, content, msg, cache.GetSession())
	return true
}
