package helpers

import "github.com/Jeffail/gabs"

// config holds the bot config
var config *gabs.Container

// LoadConfig loads the config from $path into $config
func LoadConfig(path string) {
	json, err := gabs.ParseJSONFile(path)
	Relax(err)

	config = json
}

// SetConfig replaces the config, used for configs not coming from a file
func SetConfig(container *gabs.Container) {
	config = container
}

// GetConfig is a config getter
func GetConfig() *gabs.Container {
	return config
}

// ConfigString returns the string at path, or fallback if it is missing
func ConfigString(path string, fallback string) string {
	if config == nil {
		return fallback
	}
	if value, ok := config.Path(path).Data().(string); ok && value != "" {
		return value
	}
	return fallback
}

// ConfigBool returns the bool at path, false if it is missing
func ConfigBool(path string) bool {
	if config == nil {
		return false
	}
	value, _ := config.Path(path).Data().(bool)
	return value
}
