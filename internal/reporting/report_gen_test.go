package reporting

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/SaudiLinux/urlget/internal/resolver"
	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newGenerator(entries ...Entry) *ReportGenerator {
	r := NewReportGenerator(entries...)
	r.log = logger.Discard()
	r.now = func() time.Time { return fixed }
	return r
}

func TestSaveResults_HeaderAndLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	r := newGenerator(Entry{Key: "server", Value: "0.0.0.0:53"})
	r.Add("servers", []string{"10.0.0.1", "10.0.0.2"})

	written, err := r.SaveResults(path)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, strings.Repeat("=", 60), lines[0])
	assert.Equal(t, "URLGET - Scan Results", lines[1])
	assert.Equal(t, "Date: 2024-03-09 14:05:07", lines[2])
	assert.Equal(t, strings.Repeat("=", 60), lines[3])
	assert.Equal(t, "", lines[4])
	assert.Equal(t, "server: 0.0.0.0:53", lines[5])
	assert.Equal(t, `servers: ["10.0.0.1","10.0.0.2"]`, lines[6])
}

func TestSaveResults_DefaultName(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	written, err := newGenerator().SaveResults("")
	require.NoError(t, err)
	assert.Equal(t, "urlget_results_20240309_140507.txt", written)
	assert.FileExists(t, filepath.Join(dir, written))
}

func TestSaveResults_WriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	_, err := newGenerator().SaveResults(path)
	assert.True(t, errors.Is(err, core.ErrFileWrite))
}

func TestSave_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	r := newGenerator(Entry{Key: "note", Value: "<b>x</b>"})

	jsonPath, err := r.Save(filepath.Join(dir, "r.json"))
	require.NoError(t, err)
	var doc struct {
		Tool    string  `json:"tool"`
		Entries []Entry `json:"entries"`
	}
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, ToolName, doc.Tool)
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, "note", doc.Entries[0].Key)

	htmlPath, err := r.Save(filepath.Join(dir, "r.html"))
	require.NoError(t, err)
	data, err = os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "&lt;b&gt;")
	assert.NotContains(t, string(data), "<b>x</b>")

	txtPath, err := r.Save(filepath.Join(dir, "r.log"))
	require.NoError(t, err)
	data, err = os.ReadFile(txtPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "note: <b>x</b>")
}

type multiline struct{}

func (multiline) String() string { return "\nfirst\nsecond\n" }

func TestEntryLine_FlattensStringers(t *testing.T) {
	assert.Equal(t, "status: first | second", Entry{Key: "status", Value: multiline{}}.Line())
}

func TestHijackSession(t *testing.T) {
	records := []spoof.SpoofRecord{
		{Domain: "evil.com", Type: spoof.TypeA, Value: "6.6.6.6"},
		{Domain: "evil.com", Type: spoof.TypeMX, Value: "10 mail.evil.com"},
	}
	r := HijackSession(fixed, "127.0.0.1:53", resolver.StatsSnapshot{Requests: 3, Spoofed: 2, Errors: 1}, records)
	r.log = logger.Discard()
	r.now = func() time.Time { return fixed }

	path, err := r.SaveResults(filepath.Join(t.TempDir(), "session.txt"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, "timestamp: 2024-03-09 14:05:07\n")
	assert.Contains(t, body, "server: 127.0.0.1:53\n")
	assert.Contains(t, body, `"requests":3`)
	assert.Contains(t, body, `spoof_records: ["evil.com,A,6.6.6.6","evil.com,MX,10 mail.evil.com"]`)
}

func TestHijackSession_KeepsMarkupCharacters(t *testing.T) {
	records := []spoof.SpoofRecord{{Domain: "evil.com", Type: spoof.TypeTXT, Value: "a&b<c>"}}
	r := HijackSession(fixed, "127.0.0.1:53", resolver.StatsSnapshot{}, records)
	r.log = logger.Discard()
	r.now = func() time.Time { return fixed }
	dir := t.TempDir()

	path, err := r.Save(filepath.Join(dir, "session.txt"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `spoof_records: ["evil.com,TXT,a&b<c>"]`)
	assert.NotContains(t, string(data), `\u0026`)

	path, err = r.Save(filepath.Join(dir, "session.html"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "evil.com,TXT,a&amp;b&lt;c&gt;")
	assert.NotContains(t, string(data), `\u003c`)

	path, err = r.Save(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a&b<c>")
}
