package models

import (
	"time"

	"github.com/globalsign/mgo/bson"
)

const (
	StarboardEntriesTable MongoDbCollection = "starboard_entries"
)

// StarEntry is the star record of one source message
type StarEntry struct {
	ID                        bson.ObjectId `bson:"_id,omitempty"`
	GuildID                   string
	MessageID                 string
	ChannelID                 string
	AuthorID                  string
	StarboardMessageID        string
	StarboardMessageChannelID string
	StarUserIDs               []string
	Stars                     int
	FirstStarred              time.Time
}

// HasStarred returns true if userID is one of the starrers
func (e *StarEntry) HasStarred(userID string) bool {
	for _, starUserID := range e.StarUserIDs {
		if starUserID == userID {
			return true
		}
	}
	return false
}

// AddStar adds userID to the starrers, returns false if the user starred already
func (e *StarEntry) AddStar(userID string) bool {
	if e.HasStarred(userID) {
		return false
	}
	e.StarUserIDs = append(e.StarUserIDs, userID)
	e.Stars = len(e.StarUserIDs)
	return true
}

// RemoveStar removes userID from the starrers, returns false if the user never starred
func (e *StarEntry) RemoveStar(userID string) bool {
	if !e.HasStarred(userID) {
		return false
	}
	newStarUserIDs := make([]string, 0, len(e.StarUserIDs))
	for _, starUserID := range e.StarUserIDs {
		if starUserID != userID {
			newStarUserIDs = append(newStarUserIDs, starUserID)
		}
	}
	e.StarUserIDs = newStarUserIDs
	e.Stars = len(e.StarUserIDs)
	return true
}

// HasMirror returns true if the entry has been posted to a starboard channel
func (e *StarEntry) HasMirror() bool {
	return e.StarboardMessageID != "" && e.StarboardMessageChannelID != ""
}

// ClearMirror forgets the posted starboard message
func (e *StarEntry) ClearMirror() {
	e.StarboardMessageID = ""
	e.StarboardMessageChannelID = ""
}
