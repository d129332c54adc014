package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct{ name string }

func (p stubPlugin) Name() string            { return p.name }
func (p stubPlugin) Description() string     { return "stub " + p.name }
func (p stubPlugin) Category() string        { return "test" }
func (p stubPlugin) Options() []ModuleOption { return nil }
func (p stubPlugin) Help() string            { return "" }
func (p stubPlugin) Run(target string, _ map[string]interface{}) (interface{}, error) {
	return target, nil
}

func TestPluginRegistry(t *testing.T) {
	RegisterPlugin(stubPlugin{name: "ZStub"})
	RegisterPlugin(stubPlugin{name: "AStub"})

	p, ok := GetPlugin("astub")
	require.True(t, ok)
	assert.Equal(t, "AStub", p.Name())

	_, ok = GetPlugin("missing")
	assert.False(t, ok)

	var names []string
	for _, p := range ListPlugins() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"AStub", "ZStub"}, names)
}

func TestOptionString(t *testing.T) {
	opts := map[string]interface{}{"a": "x", "b": 3, "c": ""}
	assert.Equal(t, "x", OptionString(opts, "a", "d"))
	assert.Equal(t, "d", OptionString(opts, "b", "d"))
	assert.Equal(t, "d", OptionString(opts, "c", "d"))
	assert.Equal(t, "d", OptionString(opts, "missing", "d"))
}

func TestRenderStatsTable(t *testing.T) {
	var buf bytes.Buffer
	RenderStatsTable(&buf, "Summary", DashboardStats{Requests: 7, Spoofed: 4, Forwarded: 2, Errors: 1, StartTime: time.Now()})
	out := buf.String()
	for _, want := range []string{"Summary", "REQUESTS", "7", "4", "2", "1"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, "requests=7 spoofed=4 forwarded=2 errors=1", DashboardStats{Requests: 7, Spoofed: 4, Forwarded: 2, Errors: 1}.String())
}

func TestRenderRecordTable(t *testing.T) {
	var buf bytes.Buffer
	RenderRecordTable(&buf, "Zone", [][3]string{{"www.example.com", "A", "10.0.0.10"}})
	assert.Contains(t, buf.String(), "www.example.com")
	assert.Contains(t, buf.String(), "10.0.0.10")
}
