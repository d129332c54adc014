package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runShell(script string) string {
	var out bytes.Buffer
	StartShell(strings.NewReader(script), &out)
	return out.String()
}

func TestShell_ListsDNSModules(t *testing.T) {
	out := runShell("list\nexit\n")
	for _, name := range []string{"DNSDiscovery", "DNSZoneTransfer", "DNSCachePoison"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "Goodbye!")
}

func TestShell_UseInfoSet(t *testing.T) {
	out := runShell("use dnscachepoison\ninfo\nset spoof_ip 10.0.0.66\nset bogus 1\nshow options\nback\n")

	assert.Contains(t, out, "Module 'DNSCachePoison' selected.")
	assert.Contains(t, out, "spoof_ip")
	assert.Contains(t, out, "Set spoof_ip = 10.0.0.66")
	assert.Contains(t, out, "Invalid option 'bogus'")
	assert.Contains(t, out, "10.0.0.66")
	assert.Contains(t, out, "Back to main shell.")
	assert.Contains(t, out, "Goodbye!", "EOF ends the shell")
}

func TestShell_RunChecksRequiredOptions(t *testing.T) {
	out := runShell("use dnscachepoison\nrun\nexit\n")
	assert.Contains(t, out, "Missing required options: spoof_ip")
}

func TestShell_RunReportsModuleErrors(t *testing.T) {
	out := runShell("use dnsdiscovery\nset target not-a-cidr\nrun\nexit\n")
	assert.Contains(t, out, "Running DNSDiscovery against not-a-cidr...")
	assert.Contains(t, out, "Error: invalid configuration")
}

func TestShell_UnknownModule(t *testing.T) {
	out := runShell("use nosuchmodule\nfrobnicate\nexit\n")
	assert.Contains(t, out, "Module not found.")
	assert.Contains(t, out, "Unknown command.")
}
