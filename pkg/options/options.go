// Package options provides data structures and functions for configuring
// the Ember store. It defines the parameters that control storage behavior
// and the network frontend: directory paths, compaction thresholds, the
// listen address, and the serving worker pool.
package options

import "strings"

// Options defines the configuration parameters for an Ember instance.
type Options struct {
	// Specifies the directory where segment files are stored.
	//
	// Default: "<cwd>/data"
	DataDir string `json:"dataDir"`

	// Address the network frontend binds to.
	//
	// Default: "127.0.0.1:4000"
	ListenAddr string `json:"listenAddr"`

	// Number of workers serving connections when the concurrent engine is
	// used. The single-writer engine is always served sequentially.
	//
	// Default: 5
	PoolSize int `json:"poolSize"`

	// Bytes of dead records that trigger compaction in the single-writer
	// engine.
	//
	// Default: 1024
	CompactionThreshold uint64 `json:"compactionThreshold"`

	// Bytes of dead records that trigger compaction in the concurrent engine.
	// Higher than the single-writer threshold because compaction briefly
	// stalls the writer.
	//
	// Default: 1MiB
	SharedCompactionThreshold uint64 `json:"sharedCompactionThreshold"`

	// When set, the appender syncs file contents to stable storage after
	// every flush and before compaction unlinks superseded segments. Off by
	// default: the store promises crash-safety by append-only semantics, not
	// power-loss durability of the most recent writes.
	SyncWrites bool `json:"syncWrites"`
}

// OptionFunc is a function type that modifies the store's configuration.
type OptionFunc func(*Options)

// WithDataDir sets the directory holding segment files.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithListenAddr sets the address the network frontend binds to.
func WithListenAddr(addr string) OptionFunc {
	return func(o *Options) {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			o.ListenAddr = addr
		}
	}
}

// WithPoolSize sets the number of serving workers.
func WithPoolSize(size int) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.PoolSize = size
		}
	}
}

// WithCompactionThreshold sets the dead-byte threshold for the
// single-writer engine.
func WithCompactionThreshold(bytes uint64) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.CompactionThreshold = bytes
		}
	}
}

// WithSharedCompactionThreshold sets the dead-byte threshold for the
// concurrent engine.
func WithSharedCompactionThreshold(bytes uint64) OptionFunc {
	return func(o *Options) {
		if bytes > 0 {
			o.SharedCompactionThreshold = bytes
		}
	}
}

// WithSyncWrites enables fsync after every flush.
func WithSyncWrites(sync bool) OptionFunc {
	return func(o *Options) {
		o.SyncWrites = sync
	}
}
