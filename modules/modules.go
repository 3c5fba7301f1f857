package modules

import (
	"github.com/Seklfreak/robyul-starboard/modules/plugins/starboard"
)

var (
	pluginCache map[string]Plugin

	PluginList = []Plugin{
		&starboard.Handler{},
	}
)
