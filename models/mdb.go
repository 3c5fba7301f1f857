package models

// MongoDbCollection is the name of a collection in the bot database
type MongoDbCollection string

func (c MongoDbCollection) String() string {
	return string(c)
}
