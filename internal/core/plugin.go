package core

import (
	"sort"
	"strings"
	"sync"
)

// Plugin is the interface for all modules/plugins.
type Plugin interface {
	Name() string
	Description() string
	Category() string
	Options() []ModuleOption
	Help() string
	Run(target string, options map[string]interface{}) (interface{}, error)
}

// ModuleOption describes one settable option of a plugin.
type ModuleOption struct {
	Name        string
	Type        string
	Default     interface{}
	Description string
	Required    bool
}

var (
	pluginsMu sync.RWMutex
	plugins   = map[string]Plugin{}
)

// RegisterPlugin makes a plugin available to the shell. Registering the same
// name twice replaces the earlier plugin.
func RegisterPlugin(p Plugin) {
	pluginsMu.Lock()
	defer pluginsMu.Unlock()
	plugins[strings.ToLower(p.Name())] = p
}

// ListPlugins returns every registered plugin sorted by name.
func ListPlugins() []Plugin {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()
	out := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// GetPlugin looks a plugin up by case-insensitive name.
func GetPlugin(name string) (Plugin, bool) {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()
	p, ok := plugins[strings.ToLower(name)]
	return p, ok
}

// OptionString reads a string option, falling back to def.
func OptionString(options map[string]interface{}, name, def string) string {
	if v, ok := options[name]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}
