package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromSettings(t *testing.T) {
	info := BuildInfo{GitCommit: "abc"}
	fillFromSettings(&info, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-03-01T12:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	})

	assert.Equal(t, "abc", info.GitCommit, "ldflags value wins")
	assert.Equal(t, "2024-03-01T12:00:00Z", info.BuildDate)
	assert.True(t, info.Modified)
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.True(t, strings.HasPrefix(v, "dev-"), v)
	assert.Contains(t, GetFullVersion(), "go: go")
}
