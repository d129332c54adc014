package output

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/modules/dns_attacks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatServers(t *testing.T) {
	servers := []string{"10.0.0.1", "10.0.0.53"}

	txt, err := FormatServers(servers, "10.0.0.0/24", "txt")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1\n10.0.0.53", txt)

	csvOut, err := FormatServers(servers, "10.0.0.0/24", "csv")
	require.NoError(t, err)
	assert.Equal(t, "server\n10.0.0.1\n10.0.0.53\n", csvOut)

	js, err := FormatServers(servers, "10.0.0.0/24", "json")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(js), &doc))
	assert.Equal(t, "10.0.0.0/24", doc["network"])

	console, err := FormatServers(nil, "10.0.0.0/24", "console")
	require.NoError(t, err)
	assert.Equal(t, "No DNS servers found in 10.0.0.0/24.", console)
}

func TestFormatZone(t *testing.T) {
	zone := dns_attacks.ZoneRecords{
		"www.example.com": {"A": {"10.0.0.10"}},
		"example.com":     {"MX": {"10 mail.example.com."}},
	}

	txt, err := FormatZone(zone, "example.com", "txt")
	require.NoError(t, err)
	assert.Equal(t, "example.com MX 10 mail.example.com.\nwww.example.com A 10.0.0.10", txt)

	csvOut, err := FormatZone(zone, "example.com", "csv")
	require.NoError(t, err)
	assert.Equal(t, "name,type,value\nexample.com,MX,10 mail.example.com.\nwww.example.com,A,10.0.0.10\n", csvOut)

	console, err := FormatZone(zone, "example.com", "console")
	require.NoError(t, err)
	assert.Contains(t, console, "www.example.com")

	empty, err := FormatZone(dns_attacks.ZoneRecords{}, "example.com", "console")
	require.NoError(t, err)
	assert.Equal(t, "No records transferred for example.com.", empty)
}

func TestFormat_Unsupported(t *testing.T) {
	_, err := FormatServers(nil, "", "xml")
	assert.True(t, errors.Is(err, core.ErrOutputFormat))
	_, err = FormatZone(nil, "", "xml")
	assert.True(t, errors.Is(err, core.ErrOutputFormat))
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, WriteOutput(path, "10.0.0.1"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", string(data))

	err = WriteOutput(filepath.Join(t.TempDir(), "nope", "out.txt"), "x")
	assert.True(t, errors.Is(err, core.ErrFileWrite))
}
