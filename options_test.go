package remotedisk_test

import (
	"testing"

	remotedisk "github.com/mwantia/remotedisk"
	"github.com/mwantia/remotedisk/log"
)

// TestDiskOptions_LogLevelName verifies parsing of textual level names,
// including the Info fallback for unknown ones.
func TestDiskOptions_LogLevelName(t *testing.T) {
	cases := map[string]log.LogLevel{
		"debug":   log.Debug,
		"WARN":    log.Warn,
		"Error":   log.Error,
		"unknown": log.Info,
	}

	for name, want := range cases {
		opts := &remotedisk.DiskOptions{}
		if err := remotedisk.WithLogLevelName(name)(opts); err != nil {
			t.Fatalf("WithLogLevelName(%q) failed: %v", name, err)
		}

		if opts.LogLevel != want {
			t.Errorf("Expected level %v for %q, got %v", want, name, opts.LogLevel)
		}
	}
}
