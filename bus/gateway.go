package bus

import (
	"github.com/bwmarrin/discordgo"
)

// ForwardGateway returns a discordgo handler publishing every known dispatch on b.
// The session should run with SyncEvents enabled to keep the gateway order.
func ForwardGateway(b *Bus) func(*discordgo.Session, *discordgo.Event) {
	return func(session *discordgo.Session, event *discordgo.Event) {
		t := EventType(event.Type)
		if !Known(t) || len(event.RawData) == 0 {
			return
		}

		err := b.Publish(t, event.RawData)
		if err != nil {
			b.log.WithField("type", t).Error("publishing gateway event failed: ", err.Error())
		}
	}
}
