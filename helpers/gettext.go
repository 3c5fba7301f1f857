package helpers

import (
	"embed"
	"fmt"
	"math/rand"
	"sync"

	"github.com/Jeffail/gabs"
)

//go:embed assets/i18n.json
var assets embed.FS

var (
	translations     *gabs.Container
	translationsOnce sync.Once
)

// LoadTranslations parses the embedded translations, GetText loads them on first use as well
func LoadTranslations() {
	translationsOnce.Do(func() {
		jsonFile, err := assets.ReadFile("assets/i18n.json")
		Relax(err)

		json, err := gabs.ParseJSON(jsonFile)
		Relax(err)

		translations = json
	})
}

// GetText returns the translation of id, or id itself if there is none
func GetText(id string) string {
	LoadTranslations()

	if !translations.ExistsP(id) {
		return id
	}

	item := translations.Path(id)

	// If this is an object return __
	if _, ok := item.Data().(map[string]interface{}); ok {
		item = item.Path("__")
	}

	// If this is an array return a random item
	if arr, ok := item.Data().([]interface{}); ok {
		return arr[rand.Intn(len(arr))].(string)
	}

	text, ok := item.Data().(string)
	if !ok {
		return id
	}
	return text
}

func GetTextF(id string, replacements ...interface{}) string {
	return fmt.Sprintf(GetText(id), replacements...)
}
