package engine

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/codec"
	"github.com/iamNilotpal/ember/internal/index"
	"github.com/iamNilotpal/ember/internal/metrics"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/filesys"
	"github.com/iamNilotpal/ember/pkg/seginfo"
)

// SharedEngine is the concurrent form of the storage core: the same
// on-disk format and algorithms as Engine, arranged so that many readers
// proceed in parallel with one writer.
//
// The index is shared and guarded by its own lock; readers hold it only
// long enough to copy a CmdIdx. The writer is guarded by a separate mutex
// so at most one Set/Remove/Compact is in progress. Each clone owns a
// private lazy cache of segment read handles, so no file handle is ever
// shared across goroutines. A global safe point (the smallest segment id
// still valid) is advanced by compaction after the index has been
// redirected and before old files are unlinked; readers drop cached
// handles below it before their next read. A reader that copied a CmdIdx
// before the redirect still finds the referenced bytes, because the old
// file is not unlinked until the safe point has been published and any
// handle it already held keeps the unlinked inode alive.
type SharedEngine struct {
	writer *storeWriter
	reader *storeReader
	index  *index.Index
	log    *zap.SugaredLogger
	closed *atomic.Bool
}

// OpenShared initializes the concurrent engine on the configured data
// directory, rebuilding the index exactly as Open does. The compaction
// threshold comes from SharedCompactionThreshold.
func OpenShared(ctx context.Context, config *Config) (*SharedEngine, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New(nil)
	}

	dataPath := config.Options.DataDir
	if err := filesys.CreateDir(dataPath, 0755, true); err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to create data directory",
		).WithPath(dataPath)
	}

	ids, err := seginfo.ListSegments(dataPath)
	if err != nil {
		return nil, err
	}

	var lastID uint32
	if len(ids) > 0 {
		lastID = ids[len(ids)-1]
	}
	activeID := lastID + 1

	config.Logger.Infow(
		"Opening shared engine",
		"dataDir", dataPath,
		"existingSegments", len(ids),
		"activeSegment", activeID,
	)

	idx := index.New()
	handles := make(map[uint32]*os.File, len(ids))
	uncompacted, err := loadIndex(dataPath, ids, handles, idx)
	if err != nil {
		for _, file := range handles {
			closeErr := file.Close()
			_ = closeErr
		}
		return nil, err
	}

	activeWriter, activeReader, err := openSegmentPair(dataPath, activeID)
	if err != nil {
		for _, file := range handles {
			closeErr := file.Close()
			_ = closeErr
		}
		return nil, err
	}
	handles[activeID] = activeReader

	reader := &storeReader{
		dataPath:  dataPath,
		safePoint: &atomic.Uint32{},
		handles:   handles,
	}

	writer := &storeWriter{
		dataPath:    dataPath,
		activeID:    activeID,
		appender:    activeWriter,
		uncompacted: uncompacted,
		threshold:   config.Options.SharedCompactionThreshold,
		syncWrites:  config.Options.SyncWrites,
		index:       idx,
		reader:      reader.clone(),
		metrics:     config.Metrics,
		log:         config.Logger,
	}

	config.Metrics.ActiveSegment.Set(float64(activeID))
	config.Metrics.UncompactedBytes.Set(float64(uncompacted))

	config.Logger.Infow(
		"Shared engine opened",
		"liveKeys", idx.Len(),
		"uncompactedBytes", uncompacted,
	)

	return &SharedEngine{
		writer: writer,
		reader: reader,
		index:  idx,
		log:    config.Logger,
		closed: &atomic.Bool{},
	}, nil
}

// Clone returns a handle sharing the writer, index and safe point but
// owning a fresh, empty read-handle cache. Each serving goroutine takes its
// own clone and calls Release when done with it.
func (s *SharedEngine) Clone() *SharedEngine {
	return &SharedEngine{
		writer: s.writer,
		reader: s.reader.clone(),
		index:  s.index,
		log:    s.log,
		closed: s.closed,
	}
}

// Set appends an upsert record under the writer lock.
func (s *SharedEngine) Set(key, value string) error {
	if s.closed.Load() {
		return ErrEngineClosed
	}
	s.writer.mu.Lock()
	defer s.writer.mu.Unlock()
	return s.writer.set(key, value)
}

// Get copies the key's CmdIdx under the index lock, releases it, and reads
// the range through this clone's private handle cache.
//
// A lookup can lose a race with compaction: the copied CmdIdx points into a
// segment that gets rewritten and unlinked before this goroutine opens a
// handle to it. The published safe point makes that case detectable: the
// stale entry's segment id sits below it. The index already holds the
// redirected entry, so the lookup simply retries.
func (s *SharedEngine) Get(key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrEngineClosed
	}

	s.writer.metrics.GetsTotal.Inc()

	for {
		idx, ok := s.index.Get(key)
		if !ok {
			return "", false, nil
		}

		value, err := s.reader.get(idx)
		if err != nil {
			if idx.File < s.reader.safePoint.Load() {
				continue
			}
			return "", false, err
		}
		return value, true, nil
	}
}

// Remove appends a tombstone under the writer lock.
func (s *SharedEngine) Remove(key string) error {
	if s.closed.Load() {
		return ErrEngineClosed
	}
	s.writer.mu.Lock()
	defer s.writer.mu.Unlock()
	return s.writer.remove(key)
}

// Compact forces a compaction run regardless of the dead-byte threshold.
func (s *SharedEngine) Compact() error {
	if s.closed.Load() {
		return ErrEngineClosed
	}
	s.writer.mu.Lock()
	defer s.writer.mu.Unlock()
	return s.writer.compact()
}

// Release closes this clone's private read handles. The shared writer and
// index are untouched, so other clones keep working.
func (s *SharedEngine) Release() error {
	return s.reader.closeAll()
}

// Close shuts the engine down: the appender is flushed and closed and this
// handle's read cache released. Clones still alive fail their next
// operation with ErrEngineClosed.
func (s *SharedEngine) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	s.writer.mu.Lock()
	defer s.writer.mu.Unlock()

	err := s.writer.appender.Close()
	return multierr.Append(err, s.reader.closeAll())
}

// storeReader performs all file reads for one goroutine. The handle cache
// is private to its owner; only the safe point and data path are shared
// between clones.
type storeReader struct {
	dataPath  string
	safePoint *atomic.Uint32
	handles   map[uint32]*os.File
}

func (r *storeReader) clone() *storeReader {
	return &storeReader{
		dataPath:  r.dataPath,
		safePoint: r.safePoint,
		handles:   make(map[uint32]*os.File),
	}
}

// closeStaleHandles drops every cached handle below the safe point. Called
// before each read so handles to unlinked segments don't pile up.
func (r *storeReader) closeStaleHandles() {
	safePoint := r.safePoint.Load()
	for id, file := range r.handles {
		if id < safePoint {
			closeErr := file.Close()
			_ = closeErr
			delete(r.handles, id)
		}
	}
}

func (r *storeReader) handle(id uint32) (*os.File, error) {
	if file, ok := r.handles[id]; ok {
		return file, nil
	}

	path := seginfo.SegmentPath(r.dataPath, id)
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to open segment for reading",
		).WithSegmentID(id).WithPath(path)
	}
	r.handles[id] = file
	return file, nil
}

// get reads the indexed range and decodes it, requiring a set record.
func (r *storeReader) get(idx index.CmdIdx) (string, error) {
	r.closeStaleHandles()

	file, err := r.handle(idx.File)
	if err != nil {
		return "", err
	}
	return readSetValue(file, idx)
}

// copyTo streams the indexed range into w. Used by compaction.
func (r *storeReader) copyTo(idx index.CmdIdx, w io.Writer) error {
	r.closeStaleHandles()

	file, err := r.handle(idx.File)
	if err != nil {
		return err
	}

	section := io.NewSectionReader(file, int64(idx.Pos), int64(idx.Len))
	if _, err := io.Copy(w, section); err != nil {
		return errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to copy live record during compaction",
		).WithSegmentID(idx.File).WithOffset(idx.Pos)
	}
	return nil
}

func (r *storeReader) closeAll() error {
	var err error
	for id, file := range r.handles {
		err = multierr.Append(err, file.Close())
		delete(r.handles, id)
	}
	return err
}

// storeWriter owns the active appender and the dead-byte accounting. All
// methods run under SharedEngine's writer mutex. It keeps its own
// storeReader clone so compaction can use the same read-and-copy primitive
// as lookups.
type storeWriter struct {
	mu          sync.Mutex
	dataPath    string
	activeID    uint32
	appender    *appender
	uncompacted uint64
	threshold   uint64
	syncWrites  bool
	index       *index.Index
	reader      *storeReader
	metrics     *metrics.Metrics
	log         *zap.SugaredLogger
}

func (w *storeWriter) flush() error {
	if w.syncWrites {
		return w.appender.Sync()
	}
	return w.appender.Flush()
}

func (w *storeWriter) set(key, value string) error {
	data, err := codec.Encode(codec.Set(key, value))
	if err != nil {
		return err
	}

	start := w.appender.Pos()
	if _, err := w.appender.Write(data); err != nil {
		return err
	}
	if err := w.flush(); err != nil {
		return err
	}
	end := w.appender.Pos()

	old, displaced := w.index.Insert(key, index.CmdIdx{
		File: w.activeID,
		Pos:  start,
		Len:  end - start,
	})
	if displaced {
		w.uncompacted += old.Len
	}

	w.metrics.SetsTotal.Inc()
	w.metrics.UncompactedBytes.Set(float64(w.uncompacted))

	if w.uncompacted > w.threshold {
		return w.compact()
	}
	return nil
}

func (w *storeWriter) remove(key string) error {
	if !w.index.Contains(key) {
		return errors.NewKeyNotFoundError(key)
	}

	data, err := codec.Encode(codec.Remove(key))
	if err != nil {
		return err
	}

	start := w.appender.Pos()
	if _, err := w.appender.Write(data); err != nil {
		return err
	}
	if err := w.flush(); err != nil {
		return err
	}
	end := w.appender.Pos()

	if old, ok := w.index.Remove(key); ok {
		w.uncompacted += old.Len
	}
	w.uncompacted += end - start

	w.metrics.RemovesTotal.Inc()
	w.metrics.UncompactedBytes.Set(float64(w.uncompacted))

	if w.uncompacted > w.threshold {
		return w.compact()
	}
	return nil
}

// compact rewrites live records into segment activeID+1 and moves appends
// to activeID+2, then publishes the new safe point and unlinks everything
// older. Readers mid-lookup keep working throughout: entries are redirected
// one at a time (each update atomic under the index lock), and no file is
// unlinked before the safe point announces it stale.
func (w *storeWriter) compact() error {
	compactionID := w.activeID + 1
	newActiveID := w.activeID + 2

	w.log.Infow(
		"Starting compaction",
		"compactionSegment", compactionID,
		"newActiveSegment", newActiveID,
		"uncompactedBytes", w.uncompacted,
	)

	compactionWriter, err := newAppender(seginfo.SegmentPath(w.dataPath, compactionID))
	if err != nil {
		return err
	}

	activeWriter, err := newAppender(seginfo.SegmentPath(w.dataPath, newActiveID))
	if err != nil {
		closeErr := compactionWriter.Close()
		_ = closeErr
		return err
	}

	if err := w.appender.Close(); err != nil {
		return err
	}
	w.appender = activeWriter
	w.activeID = newActiveID

	for _, key := range w.index.Keys() {
		idx, ok := w.index.Get(key)
		if !ok {
			continue
		}

		start := compactionWriter.Pos()
		if err := w.reader.copyTo(idx, compactionWriter); err != nil {
			return err
		}
		end := compactionWriter.Pos()

		w.index.Update(key, index.CmdIdx{File: compactionID, Pos: start, Len: end - start})
	}

	if w.syncWrites {
		if err := compactionWriter.Sync(); err != nil {
			return err
		}
	} else if err := compactionWriter.Flush(); err != nil {
		return err
	}
	if err := compactionWriter.Close(); err != nil {
		return err
	}

	reclaimed := w.uncompacted
	w.uncompacted = 0

	// Publish the safe point before unlinking: any reader entering after
	// this line invalidates its handles to the doomed segments.
	w.reader.safePoint.Store(compactionID)
	w.reader.closeStaleHandles()

	ids, err := seginfo.ListSegments(w.dataPath)
	if err != nil {
		return err
	}

	var removeErr error
	for _, id := range ids {
		if id >= compactionID {
			continue
		}
		if err := os.Remove(seginfo.SegmentPath(w.dataPath, id)); err != nil {
			removeErr = multierr.Append(removeErr, err)
		}
	}
	if removeErr != nil {
		return errors.NewStorageError(
			removeErr, errors.ErrorCodeIO, "failed to remove superseded segments",
		)
	}

	w.metrics.CompactionsTotal.Inc()
	w.metrics.ReclaimedBytes.Add(float64(reclaimed))
	w.metrics.UncompactedBytes.Set(0)
	w.metrics.ActiveSegment.Set(float64(newActiveID))

	w.log.Infow("Compaction finished", "reclaimedBytes", reclaimed, "liveKeys", w.index.Len())
	return nil
}
