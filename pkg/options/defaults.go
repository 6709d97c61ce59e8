package options

import (
	"os"
	"path/filepath"
)

const (
	// DefaultListenAddr is the address the server binds to when none is
	// configured.
	DefaultListenAddr = "127.0.0.1:4000"

	// DefaultPoolSize is the number of workers serving connections for the
	// concurrent engine.
	DefaultPoolSize = 5

	// DefaultCompactionThreshold is the dead-byte count that triggers
	// compaction in the single-writer engine.
	DefaultCompactionThreshold uint64 = 1024

	// DefaultSharedCompactionThreshold is the dead-byte count that triggers
	// compaction in the concurrent engine.
	DefaultSharedCompactionThreshold uint64 = 1024 * 1024

	// DefaultDataSubdir is the directory under the working directory where
	// segment files live when no data dir is configured.
	DefaultDataSubdir = "data"
)

// DefaultDataDir resolves the default segment directory, "<cwd>/data".
// It falls back to a relative path when the working directory cannot be
// determined.
func DefaultDataDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultDataSubdir
	}
	return filepath.Join(cwd, DefaultDataSubdir)
}

// NewDefaultOptions returns the default configuration for an Ember instance.
func NewDefaultOptions() Options {
	return Options{
		DataDir:                   DefaultDataDir(),
		ListenAddr:                DefaultListenAddr,
		PoolSize:                  DefaultPoolSize,
		CompactionThreshold:       DefaultCompactionThreshold,
		SharedCompactionThreshold: DefaultSharedCompactionThreshold,
	}
}
