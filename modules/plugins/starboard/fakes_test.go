package starboard

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/bwmarrin/discordgo"
	"github.com/globalsign/mgo/bson"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type fakeSettings struct {
	sync.Mutex
	config models.StarboardConfig
	calls  int
	// the first read takes this long
	firstDelay time.Duration
}

func (f *fakeSettings) StarboardConfig(guildID string) (models.StarboardConfig, error) {
	f.Lock()
	f.calls++
	first := f.calls == 1
	config := f.config
	f.Unlock()

	if first && f.firstDelay > 0 {
		time.Sleep(f.firstDelay)
	}
	return config, nil
}

func (f *fakeSettings) callCount() int {
	f.Lock()
	defer f.Unlock()
	return f.calls
}

func (f *fakeSettings) set(change func(config *models.StarboardConfig)) {
	f.Lock()
	change(&f.config)
	f.Unlock()
}

type fakeStars struct {
	sync.Mutex
	entries map[string]models.StarEntry

	// number of upcoming calls that fail
	failFind, failCreate, failPersist, failRemove int
}

var errDatabase = errors.New("no reachable servers")

func failOnce(counter *int) error {
	if *counter > 0 {
		*counter--
		return errDatabase
	}
	return nil
}

func newFakeStars() *fakeStars {
	return &fakeStars{entries: make(map[string]models.StarEntry)}
}

func copyEntry(entry models.StarEntry) models.StarEntry {
	entry.StarUserIDs = append([]string{}, entry.StarUserIDs...)
	return entry
}

func (f *fakeStars) FindOne(messageID string) (*models.StarEntry, error) {
	f.Lock()
	defer f.Unlock()
	if err := failOnce(&f.failFind); err != nil {
		return nil, err
	}
	entry, ok := f.entries[messageID]
	if !ok {
		return nil, nil
	}
	entry = copyEntry(entry)
	return &entry, nil
}

func (f *fakeStars) Create(entry *models.StarEntry) error {
	f.Lock()
	defer f.Unlock()
	if err := failOnce(&f.failCreate); err != nil {
		return err
	}
	if _, ok := f.entries[entry.MessageID]; ok {
		return errors.New("duplicate key")
	}
	entry.ID = bson.NewObjectId()
	f.entries[entry.MessageID] = copyEntry(*entry)
	return nil
}

func (f *fakeStars) Persist(entry *models.StarEntry) error {
	f.Lock()
	defer f.Unlock()
	if err := failOnce(&f.failPersist); err != nil {
		return err
	}
	if _, ok := f.entries[entry.MessageID]; !ok {
		return errors.New("not found")
	}
	f.entries[entry.MessageID] = copyEntry(*entry)
	return nil
}

func (f *fakeStars) Remove(entry *models.StarEntry) error {
	f.Lock()
	defer f.Unlock()
	if err := failOnce(&f.failRemove); err != nil {
		return err
	}
	delete(f.entries, entry.MessageID)
	return nil
}

func (f *fakeStars) get(messageID string) (models.StarEntry, bool) {
	f.Lock()
	defer f.Unlock()
	entry, ok := f.entries[messageID]
	return entry, ok
}

type fakeChat struct {
	sync.Mutex
	posted  map[string]*discordgo.MessageEmbed
	channel map[string]string
	sources map[string]*discordgo.Message
	next    int

	sends, edits, deletes int
	failSends             int
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		posted:  make(map[string]*discordgo.MessageEmbed),
		channel: make(map[string]string),
		sources: make(map[string]*discordgo.Message),
	}
}

func (f *fakeChat) addSource(message *discordgo.Message) {
	f.Lock()
	f.sources[message.ID] = message
	f.Unlock()
}

func (f *fakeChat) Message(channelID string, messageID string) (*discordgo.Message, error) {
	f.Lock()
	defer f.Unlock()
	message, ok := f.sources[messageID]
	if !ok {
		return nil, unknownMessage()
	}
	return message, nil
}

func unknownMessage() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"},
	}
}

func (f *fakeChat) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	f.Lock()
	defer f.Unlock()
	if f.failSends > 0 {
		f.failSends--
		return nil, &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusBadGateway},
			Message:  &discordgo.APIErrorMessage{Message: "Bad Gateway"},
		}
	}
	f.next++
	f.sends++
	id := fmt.Sprintf("mirror-%d", f.next)
	f.posted[id] = embed
	f.channel[id] = channelID
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

func (f *fakeChat) EditEmbed(channelID string, messageID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	f.Lock()
	defer f.Unlock()
	if _, ok := f.posted[messageID]; !ok {
		return nil, unknownMessage()
	}
	f.edits++
	f.posted[messageID] = embed
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeChat) DeleteMessage(channelID string, messageID string) error {
	f.Lock()
	defer f.Unlock()
	if _, ok := f.posted[messageID]; !ok {
		return unknownMessage()
	}
	f.deletes++
	delete(f.posted, messageID)
	delete(f.channel, messageID)
	return nil
}

func (f *fakeChat) count() int {
	f.Lock()
	defer f.Unlock()
	return len(f.posted)
}

func (f *fakeChat) embed(messageID string) *discordgo.MessageEmbed {
	f.Lock()
	defer f.Unlock()
	return f.posted[messageID]
}

type fakeClock struct {
	sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Lock()
	c.now = c.now.Add(d)
	c.Unlock()
}

// fakeCooldowns expires cooldowns on the fake clock
type fakeCooldowns struct {
	sync.Mutex
	until    map[string]time.Time
	duration time.Duration
	now      func() time.Time
}

func (c *fakeCooldowns) Acquire(userID string) bool {
	c.Lock()
	defer c.Unlock()

	now := c.now()
	if until, cooling := c.until[userID]; cooling && now.Before(until) {
		return false
	}
	c.until[userID] = now.Add(c.duration)
	return true
}

type testEngine struct {
	*Engine
	settings  *fakeSettings
	stars     *fakeStars
	chat      *fakeChat
	cooldowns *fakeCooldowns
	clock     *fakeClock
}

var star = models.Emoji{Name: "⭐"}

func newTestEngine(threshold int) *testEngine {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	clock := &fakeClock{now: time.Date(2018, 3, 1, 12, 0, 0, 0, time.UTC)}
	cooldowns := &fakeCooldowns{until: make(map[string]time.Time), duration: SelfStarCooldown, now: clock.Now}

	te := &testEngine{
		settings: &fakeSettings{config: models.StarboardConfig{
			Enabled:              true,
			DestinationChannelID: "starboard",
			TriggerEmoji:         star,
			Threshold:            threshold,
			SelfStarWarning:      true,
		}},
		stars:     newFakeStars(),
		chat:      newFakeChat(),
		cooldowns: cooldowns,
		clock:     clock,
	}
	te.Engine = NewEngine(te.settings, te.stars, te.chat, te.cooldowns, logger.WithField("module", "starboard"))
	te.Engine.now = clock.Now
	return te
}

func (te *testEngine) reaction(msg *discordgo.Message, userID string, emoji models.Emoji) Reaction {
	te.chat.addSource(msg)
	return Reaction{GuildID: "guild", ChannelID: msg.ChannelID, MessageID: msg.ID, UserID: userID, Emoji: emoji}
}

func (te *testEngine) add(msg *discordgo.Message, userID string, emoji models.Emoji) (Notice, error) {
	return te.Add(te.reaction(msg, userID, emoji))
}

func (te *testEngine) remove(msg *discordgo.Message, userID string, emoji models.Emoji) error {
	return te.Remove(te.reaction(msg, userID, emoji))
}

func testMessage() *discordgo.Message {
	return &discordgo.Message{
		ID:        "300000000000000001",
		ChannelID: "general",
		GuildID:   "guild",
		Content:   "look at this",
		Author:    &discordgo.User{ID: "author", Username: "Sekl"},
		Timestamp: time.Date(2018, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}
