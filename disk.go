package remotedisk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/data"
	"github.com/mwantia/remotedisk/log"
	"github.com/mwantia/remotedisk/metrics"
)

// WriteMode controls how ReadOrCreateMetaForWriting treats an existing
// logical file.
type WriteMode int

const (
	// WriteModeRewrite discards the previous record and starts a brand-new
	// empty one. A record shared through hardlinks is never mutated in
	// place; the old record is released through the regular removal path.
	WriteModeRewrite WriteMode = iota
	// WriteModeAppend loads the existing record, or creates one when the
	// logical file does not exist yet.
	WriteModeAppend
)

// SpaceUnbounded is the sentinel returned by the capacity queries.
// True remote capacity is not locally observable, so the disk reports it
// as unbounded rather than guessing.
const SpaceUnbounded int64 = math.MaxInt64

// Disk treats a non-POSIX remote backend as an ordinary hierarchical
// filesystem. Every logical file is described by a local metadata sidecar
// (see Metadata); operations reason over those records and never inspect
// remote content. Destructive operations hand released remote objects to
// the backend as chunked batches.
//
// Concurrent writers to the same logical path must be serialized by the
// caller; the only internally synchronized state is the reservation
// counter pair.
type Disk struct {
	name       string
	remoteRoot string
	diskPath   string

	remote   backend.RemoteBackend
	log      *log.Logger
	executor *AsyncExecutor
	metrics  *metrics.DiskMetrics

	reservationMu    sync.Mutex
	reservedBytes    int64
	reservationCount int64
}

// NewDisk creates a disk named name, storing metadata sidecars under
// diskPath and addressing remote objects below remoteRoot on the given
// backend. The local metadata root is created if missing.
func NewDisk(name, remoteRoot, diskPath string, remote backend.RemoteBackend, opts ...DiskOption) (*Disk, error) {
	options := newDefaultDiskOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(diskPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata root %s: %w", diskPath, err)
	}

	logName := options.LogName
	if logName == "" {
		logName = name
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewLogger(logName, options.LogLevel, "", false)
	} else {
		logger = logger.Named(logName)
	}

	d := &Disk{
		name:       name,
		remoteRoot: remoteRoot,
		diskPath:   diskPath,
		remote:     remote,
		log:        logger,
		metrics:    options.Metrics,
	}

	d.executor = NewAsyncExecutor(logName, options.ThreadPoolSize, options.QueueSize, logger)

	return d, nil
}

// Name returns the logical disk name.
func (d *Disk) Name() string {
	return d.name
}

// Path returns the local metadata root.
func (d *Disk) Path() string {
	return d.diskPath
}

// RemoteRoot returns the remote root path/URI objects are stored under.
func (d *Disk) RemoteRoot() string {
	return d.remoteRoot
}

// Executor returns the disk's async executor.
func (d *Disk) Executor() *AsyncExecutor {
	return d.executor
}

// Open runs the backend's lifecycle open.
func (d *Disk) Open(ctx context.Context) error {
	return d.remote.Open(ctx)
}

// Close drains the async executor and closes the backend.
func (d *Disk) Close(ctx context.Context) error {
	if err := d.executor.Shutdown(ctx); err != nil {
		return err
	}

	return d.remote.Close(ctx)
}

// localPath resolves a logical path inside the local metadata tree.
func (d *Disk) localPath(path string) string {
	return filepath.Join(d.diskPath, filepath.FromSlash(CleanPath(path)))
}

// Capacity queries. Remote capacity is treated as unbounded.

func (d *Disk) TotalSpace() int64 {
	return SpaceUnbounded
}

func (d *Disk) AvailableSpace() int64 {
	return SpaceUnbounded
}

func (d *Disk) UnreservedSpace() int64 {
	return SpaceUnbounded
}

// ReadMeta loads the metadata record for path, failing with
// data.ErrNotFound when absent.
func (d *Disk) ReadMeta(path string) (*Metadata, error) {
	return loadMetadata(d.remoteRoot, d.diskPath, CleanPath(path), false)
}

// CreateMeta returns a fresh empty record for path, overwriting any
// existing record's identity on the next Save.
func (d *Disk) CreateMeta(path string) (*Metadata, error) {
	return loadMetadata(d.remoteRoot, d.diskPath, CleanPath(path), true)
}

// ReadOrCreateMetaForWriting prepares a record for an open-for-writing
// session. Rewrite releases any existing record through the regular removal
// path (respecting shared hardlinks) and starts a new one; Append loads the
// existing record or creates it. The returned record is already persisted
// so the file size is observable before the session finishes.
func (d *Disk) ReadOrCreateMetaForWriting(ctx context.Context, path string, mode WriteMode) (*Metadata, error) {
	if d.Exists(path) {
		meta, err := d.ReadMeta(path)
		if err != nil {
			return nil, err
		}

		if meta.ReadOnly {
			return nil, fmt.Errorf("%w: %s", data.ErrReadOnly, path)
		}

		if mode == WriteModeAppend {
			return meta, nil
		}

		if err := d.RemoveFile(ctx, path); err != nil {
			return nil, err
		}
	}

	meta, err := d.CreateMeta(path)
	if err != nil {
		return nil, err
	}

	if err := meta.Save(false); err != nil {
		return nil, err
	}

	return meta, nil
}

// Read-only queries against the local metadata tree, which mirrors the
// logical directory structure 1:1.

func (d *Disk) Exists(path string) bool {
	_, err := os.Stat(d.localPath(path))
	return err == nil
}

func (d *Disk) IsFile(path string) bool {
	info, err := os.Stat(d.localPath(path))
	return err == nil && info.Mode().IsRegular()
}

func (d *Disk) IsDirectory(path string) bool {
	info, err := os.Stat(d.localPath(path))
	return err == nil && info.IsDir()
}

// FileSize returns the record's total remote object size, not the local
// sidecar size.
func (d *Disk) FileSize(path string) (int64, error) {
	meta, err := d.ReadMeta(path)
	if err != nil {
		return 0, err
	}

	return meta.TotalSize, nil
}

// ListFiles returns the entry names directly inside a directory.
func (d *Disk) ListFiles(path string) ([]string, error) {
	entries, err := os.ReadDir(d.localPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", data.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to list directory %s: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

// IterateDirectory returns an iterator over the entries of a directory.
func (d *Disk) IterateDirectory(path string) (*DirectoryIterator, error) {
	entries, err := os.ReadDir(d.localPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", data.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to iterate directory %s: %w", path, err)
	}

	return &DirectoryIterator{
		folderPath: CleanPath(path),
		entries:    entries,
	}, nil
}

func (d *Disk) LastModified(path string) (time.Time, error) {
	info, err := os.Stat(d.localPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: %s", data.ErrNotFound, path)
		}
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return info.ModTime(), nil
}

func (d *Disk) SetLastModified(path string, t time.Time) error {
	if err := os.Chtimes(d.localPath(path), t, t); err != nil {
		return fmt.Errorf("failed to set modification time of %s: %w", path, err)
	}

	return nil
}

// SetReadOnly marks the record at path read-only.
func (d *Disk) SetReadOnly(path string) error {
	meta, err := d.ReadMeta(path)
	if err != nil {
		return err
	}

	meta.ReadOnly = true
	return meta.Save(true)
}

// Create part

// CreateFile creates an empty metadata record at path.
func (d *Disk) CreateFile(path string) error {
	meta, err := d.CreateMeta(path)
	if err != nil {
		return err
	}

	return meta.Save(false)
}

func (d *Disk) CreateDirectory(path string) error {
	if err := os.Mkdir(d.localPath(path), 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", data.ErrExist, path)
		}
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}

	return nil
}

func (d *Disk) CreateDirectories(path string) error {
	if err := os.MkdirAll(d.localPath(path), 0755); err != nil {
		return fmt.Errorf("failed to create directories %s: %w", path, err)
	}

	return nil
}

// CreateHardLink makes dst a second logical path resolving to src's record.
// The shared reference count is incremented and persisted before the local
// link is created, so a crash in between leaks at most one count, never an
// object.
func (d *Disk) CreateHardLink(src, dst string) error {
	meta, err := d.ReadMeta(src)
	if err != nil {
		return err
	}

	meta.RefCount++
	if err := meta.Save(true); err != nil {
		return err
	}

	if err := os.Link(d.localPath(src), d.localPath(dst)); err != nil {
		return fmt.Errorf("failed to create hardlink %s -> %s: %w", dst, src, err)
	}

	return nil
}

// Move part

// MoveFile renames the metadata file within the local tree. Remote object
// identity is independent of the logical path, so this is constant-time and
// moves no remote data. Fails when the target already exists.
func (d *Disk) MoveFile(from, to string) error {
	if d.Exists(to) {
		return fmt.Errorf("%w: %s", data.ErrExist, to)
	}

	if err := os.Rename(d.localPath(from), d.localPath(to)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", data.ErrNotFound, from)
		}
		return fmt.Errorf("failed to move %s to %s: %w", from, to, err)
	}

	return nil
}

// ReplaceFile moves from onto to, first removing any existing record at to
// under its own reference-count rules.
func (d *Disk) ReplaceFile(ctx context.Context, from, to string) error {
	if d.Exists(to) {
		if err := d.RemoveFile(ctx, to); err != nil {
			return err
		}
	}

	return d.MoveFile(from, to)
}

// MoveDirectory renames a directory within the local metadata tree.
func (d *Disk) MoveDirectory(from, to string) error {
	if hasPathPrefix(CleanPath(to), CleanPath(from)) {
		return fmt.Errorf("%w: cannot move %s into itself", data.ErrInvalidPath, from)
	}

	return d.MoveFile(from, to)
}

// Remove part

// RemoveFile removes the logical file at path, deleting its remote objects
// once no other hardlink references them.
func (d *Disk) RemoveFile(ctx context.Context, path string) error {
	return d.RemoveSharedFile(ctx, path, false)
}

// RemoveFileIfExists is RemoveFile for a path that may be absent.
func (d *Disk) RemoveFileIfExists(ctx context.Context, path string) error {
	if !d.Exists(path) {
		return nil
	}

	return d.RemoveFile(ctx, path)
}

// RemoveRecursive removes the whole subtree at path, including remote
// objects released by the walk.
func (d *Disk) RemoveRecursive(ctx context.Context, path string) error {
	return d.RemoveSharedRecursive(ctx, path, false)
}

// RemoveSharedFile removes the logical file at path. The record's reference
// count is decremented and its local sidecar entry deleted; when the count
// reaches 0 and keepInRemote is unset, every remote object of the record is
// handed to the backend as one batched delete. With a count still above 0
// the remote objects stay untouched for the remaining hardlinks.
func (d *Disk) RemoveSharedFile(ctx context.Context, path string, keepInRemote bool) error {
	keeper, err := d.createKeeper(keepInRemote)
	if err != nil {
		return err
	}

	if err := d.removeMeta(path, keeper); err != nil {
		return err
	}

	return d.removeFromRemote(ctx, keeper)
}

// RemoveSharedRecursive removes the subtree rooted at path, accumulating
// every released remote object into a single keeper and issuing one
// (possibly multi-chunk) batched delete at the end.
//
// Local sidecars are deleted eagerly while walking; a remote batch failing
// afterwards leaves already-unreferenced objects on the backend. That
// divergence is surfaced as a data.ErrRemoteDelete failure and needs an
// out-of-band reconciliation pass, it is never masked as success.
func (d *Disk) RemoveSharedRecursive(ctx context.Context, path string, keepInRemote bool) error {
	keeper, err := d.createKeeper(keepInRemote)
	if err != nil {
		return err
	}

	if err := d.removeMetaRecursive(path, keeper); err != nil {
		return err
	}

	return d.removeFromRemote(ctx, keeper)
}

// ScheduleRemoveRecursive runs RemoveSharedRecursive on the disk's worker
// pool, returning the completion handle.
func (d *Disk) ScheduleRemoveRecursive(ctx context.Context, path string, keepInRemote bool) (*Future, error) {
	return d.executor.Execute(func() error {
		return d.RemoveSharedRecursive(ctx, path, keepInRemote)
	})
}

// ClearDirectory removes every file directly inside path, one level deep.
// Released remote objects across all of them go out as one batched delete.
func (d *Disk) ClearDirectory(ctx context.Context, path string) error {
	keeper, err := d.createKeeper(false)
	if err != nil {
		return err
	}

	it, err := d.IterateDirectory(path)
	if err != nil {
		return err
	}

	for ; it.IsValid(); it.Next() {
		if d.IsFile(it.Path()) {
			if err := d.removeMeta(it.Path(), keeper); err != nil {
				return err
			}
		}
	}

	return d.removeFromRemote(ctx, keeper)
}

// RemoveDirectory removes an empty directory.
func (d *Disk) RemoveDirectory(path string) error {
	if err := os.Remove(d.localPath(path)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", data.ErrNotFound, path)
		}
		return fmt.Errorf("%w: %s: %v", data.ErrDirectoryNotEmpty, path, err)
	}

	return nil
}

// Reserve part

// Reserve acquires a scoped byte-budget token. Reported capacity is
// unbounded, so this always succeeds; it exists for accounting and metrics,
// not quota enforcement.
func (d *Disk) Reserve(bytes int64) (*Reservation, error) {
	d.tryReserve(bytes)

	return &Reservation{
		disk: d,
		size: bytes,
	}, nil
}

// ReservedBytes returns the bytes currently held by live reservations.
func (d *Disk) ReservedBytes() int64 {
	d.reservationMu.Lock()
	defer d.reservationMu.Unlock()

	return d.reservedBytes
}

// ReservationCount returns the number of live reservations.
func (d *Disk) ReservationCount() int64 {
	d.reservationMu.Lock()
	defer d.reservationMu.Unlock()

	return d.reservationCount
}

func (d *Disk) tryReserve(bytes int64) bool {
	d.reservationMu.Lock()
	d.reservedBytes += bytes
	d.reservationCount++

	d.metrics.AddReservedBytes(d.name, bytes)
	d.metrics.AddReservations(d.name, 1)
	d.reservationMu.Unlock()

	// Log only after the unlock; the critical section stays free of I/O.
	d.log.Debug("Reserving %d bytes on disk %s", bytes, d.name)

	return true
}

// adjustReserved applies a byte delta and a reservation-count delta under
// the reservation mutex. No I/O happens under this lock.
func (d *Disk) adjustReserved(bytesDelta, countDelta int64) {
	d.reservationMu.Lock()
	defer d.reservationMu.Unlock()

	d.reservedBytes += bytesDelta
	d.reservationCount += countDelta

	d.metrics.AddReservedBytes(d.name, bytesDelta)
	d.metrics.AddReservations(d.name, countDelta)
}

// Internals

// createKeeper returns a keeper from the backend, or nil when remote
// objects are to be kept.
func (d *Disk) createKeeper(keepInRemote bool) (*backend.PathKeeper, error) {
	if keepInRemote {
		return nil, nil
	}

	return d.remote.CreatePathKeeper()
}

// removeFromRemote flushes a non-empty keeper through the backend's batched
// delete.
func (d *Disk) removeFromRemote(ctx context.Context, keeper *backend.PathKeeper) error {
	if keeper == nil || keeper.Empty() {
		return nil
	}

	d.log.Debug("Removing %d remote objects from disk %s", keeper.Len(), d.name)
	d.metrics.RecordDeleteBatch(d.name)

	if err := d.remote.RemoveFromRemote(ctx, keeper); err != nil {
		d.metrics.RecordDeleteFailure(d.name)
		return fmt.Errorf("%w: %v", data.ErrRemoteDelete, err)
	}

	return nil
}

// removeMeta decrements the record's reference count and deletes the local
// sidecar entry for path. At count 0 the record's objects are collected
// into the keeper; above 0 the decremented record is persisted for the
// remaining hardlinks.
func (d *Disk) removeMeta(path string, keeper *backend.PathKeeper) error {
	local := d.localPath(path)

	info, err := os.Stat(local)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", data.ErrNotFound, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", data.ErrNotFile, path)
	}

	meta, err := d.ReadMeta(path)
	if err != nil {
		// A sidecar that no longer parses cannot name its remote
		// objects. Drop the local file and leave the remote alone;
		// an operator-driven reconciliation has to collect strays.
		if errors.Is(err, data.ErrCorruptedMetadata) || errors.Is(err, data.ErrUnknownVersion) {
			d.log.Warn("Removing corrupted metadata file %s without remote cleanup: %v", path, err)
			return os.Remove(local)
		}
		return err
	}

	if meta.RefCount <= 1 {
		if err := os.Remove(local); err != nil {
			return fmt.Errorf("failed to remove metadata file %s: %w", path, err)
		}

		if keeper != nil {
			for _, obj := range meta.Objects {
				keeper.AddPath(data.JoinObjectPath(d.remoteRoot, obj.Path))
			}
		}

		return nil
	}

	meta.RefCount--
	if err := meta.Save(false); err != nil {
		return err
	}

	if err := os.Remove(local); err != nil {
		return fmt.Errorf("failed to remove metadata file %s: %w", path, err)
	}

	return nil
}

// removeMetaRecursive walks the subtree at path depth-first, removing files
// via removeMeta and directories once emptied.
func (d *Disk) removeMetaRecursive(path string, keeper *backend.PathKeeper) error {
	if d.IsFile(path) {
		return d.removeMeta(path, keeper)
	}

	it, err := d.IterateDirectory(path)
	if err != nil {
		return err
	}

	for ; it.IsValid(); it.Next() {
		if err := d.removeMetaRecursive(it.Path(), keeper); err != nil {
			return err
		}
	}

	if err := os.Remove(d.localPath(path)); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}

	return nil
}
