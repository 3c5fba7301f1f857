package starboard

import (
	"time"

	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/globalsign/mgo/bson"
	"github.com/pkg/errors"
)

// MongoRepository stores star entries in mongodb
type MongoRepository struct{}

func (r MongoRepository) FindOne(messageID string) (*models.StarEntry, error) {
	var entry models.StarEntry
	err := helpers.MdbOne(
		helpers.MdbCollection(models.StarboardEntriesTable).Find(bson.M{"messageid": messageID}),
		&entry,
	)
	if helpers.IsMdbNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r MongoRepository) Create(entry *models.StarEntry) error {
	_, err := helpers.MDbInsert(models.StarboardEntriesTable, entry)
	return err
}

func (r MongoRepository) Persist(entry *models.StarEntry) error {
	if entry.ID == "" {
		return errors.New("empty starEntry submitted")
	}
	return helpers.MDbUpdate(models.StarboardEntriesTable, entry.ID, entry)
}

func (r MongoRepository) Remove(entry *models.StarEntry) error {
	if entry.ID == "" {
		return errors.New("empty starEntry submitted")
	}
	return helpers.MDbDelete(models.StarboardEntriesTable, entry.ID)
}

// Top returns the most starred entries of guildID first starred after since, all entries if since is zero
func (r MongoRepository) Top(guildID string, since time.Time, limit int) ([]models.StarEntry, error) {
	query := bson.M{"guildid": guildID}
	if !since.IsZero() {
		query["firststarred"] = bson.M{"$gte": since}
	}

	var entries []models.StarEntry
	err := helpers.MDbIter(
		helpers.MdbCollection(models.StarboardEntriesTable).
			Find(query).
			Sort("-stars", "firststarred").
			Limit(limit),
	).All(&entries)
	return entries, err
}
