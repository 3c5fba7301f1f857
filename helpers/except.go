// Except.go: Contains functions to make handling panics less PITA

package helpers

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/bwmarrin/discordgo"
	"github.com/davecgh/go-spew/spew"
	"github.com/getsentry/raven-go"
)

// DEBUG_MODE sends stack traces to discord and panics loudly
var DEBUG_MODE = false

// Callback is a function without arguments
type Callback func()

// RecoverDiscord recover()s and sends a message to discord
func RecoverDiscord(msg *discordgo.Message) {
	err := recover()
	if err != nil {
		metrics.HandlerPanics.Inc()
		SendError(msg, err)
	}
}

// Recover recover()s and prints the error to console
func Recover() {
	err := recover()
	if err != nil {
		metrics.HandlerPanics.Inc()
		cache.GetLogger().WithField("module", "except").Errorf("recovered: %#v", err)

		raven.CaptureError(fmt.Errorf("%#v", err), map[string]string{})
	}
}

// SoftRelax is a softer form of Relax()
// Calls a callback instead of panicking
func SoftRelax(err error, cb Callback) {
	if err != nil {
		cb()
	}
}

// Relax is a helper to reduce if-checks if panicking is allowed
// If $err is nil this is a no-op. Panics otherwise.
func Relax(err error) {
	if err != nil {
		if DEBUG_MODE {
			if errD, ok := err.(*discordgo.RESTError); ok && errD.Message != nil {
				fmt.Println(strconv.Itoa(errD.Message.Code)+":", errD.Message.Message)
			} else {
				spew.Dump(err)
			}
		}
		panic(err)
	}
}

// RelaxEmbed does nothing if $err is nil, prints a notice if there are no permissions to embed, else sends it to Relax()
func RelaxEmbed(err error, channelID string) {
	if err != nil {
		if IsDiscordError(err, discordgo.ErrCodeMissingPermissions) {
			if channelID != "" {
				_, err = cache.GetSession().ChannelMessageSend(channelID, GetText("bot.errors.no-embed"))
				RelaxMessage(err)
			}
			return
		}
		Relax(err)
	}
}

// RelaxMessage does nothing if $err is nil or if there are no permissions to send a message, else sends it to Relax()
func RelaxMessage(err error) {
	if err != nil && !IsDiscordError(err, discordgo.ErrCodeMissingPermissions) {
		Relax(err)
	}
}

// SendError Takes an error and sends it to discord and sentry.io
func SendError(msg *discordgo.Message, err interface{}) {
	if msg == nil {
		raven.CaptureError(fmt.Errorf("%#v", err), map[string]string{})
		return
	}

	text := fmt.Sprintf("%#v", err)
	if DEBUG_MODE {
		text = spew.Sdump(err)
		buf := make([]byte, 1<<16)
		stackSize := runtime.Stack(buf, false)
		text += "\n" + string(buf[0:stackSize])
	} else if errR, ok := err.(*discordgo.RESTError); ok && errR != nil && errR.Message != nil {
		text = errR.Message.Message
	}
	cache.GetSession().ChannelMessageSend(msg.ChannelID, GetTextF("bot.errors.general", text))

	tags := map[string]string{
		"ChannelID": msg.ChannelID,
		"GuildID":   msg.GuildID,
		"Content":   msg.Content,
		"Timestamp": msg.Timestamp.String(),
	}
	if msg.Author != nil {
		raven.SetUserContext(&raven.User{
			ID:       msg.Author.ID,
			Username: msg.Author.Username + "#" + msg.Author.Discriminator,
		})
		tags["IsBot"] = strconv.FormatBool(msg.Author.Bot)
	}

	raven.CaptureError(fmt.Errorf("%#v", err), tags)
}
