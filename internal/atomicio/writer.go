// Package atomicio writes files so that a concurrent reader always observes
// either the complete previous content or the complete new content, never a
// partial write. It layers two behaviors on top of a temp-file-in-same-dir
// plus rename: idempotent skip (no-op when content is already correct) and
// compare-and-swap (CAS) preconditions against caller-observed metadata.
// Cross-process mutual exclusion is a separate sidecar flock (see lock.go):
// AtomicWriter.Write does not acquire it, so its CAS check is serialized
// against other writers only when the caller holds AcquireFileLock around
// the call, as config.Save does.
package atomicio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rtk-mem/rtk-mem/internal/hashutil"
)

// DurabilityMode controls whether a write fsyncs the new content and its
// parent directory before returning.
type DurabilityMode string

const (
	Durable DurabilityMode = "durable"
	Fast    DurabilityMode = "fast"
)

// FileSnapshot captures the observable state of a file at some point in
// time, used to build CAS preconditions for a later write.
type FileSnapshot struct {
	Len      int64
	Modified time.Time
	Hash     uint64
	HasHash  bool
}

// WriteOptions configures a single AtomicWriter.Write call.
type WriteOptions struct {
	Durability               DurabilityMode
	BufferSize                int
	PreservePermissions       bool
	IdempotentSkip            bool
	CompareHashWhenSameSize   bool
	CAS                       *CasOptions
}

// DefaultWriteOptions mirrors the grounding source's Durable default: a
// 64 KiB buffer, permission preservation, and idempotent skip all on.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Durability:              Durable,
		BufferSize:              64 * 1024,
		PreservePermissions:     true,
		IdempotentSkip:          true,
		CompareHashWhenSameSize: false,
	}
}

// FastWriteOptions skips fsync for throughput-sensitive callers that accept
// weaker durability (e.g. rebuilding a derived cache that can be regenerated).
func FastWriteOptions() WriteOptions {
	opts := DefaultWriteOptions()
	opts.Durability = Fast
	return opts
}

// WriteStats reports what a Write call actually did.
type WriteStats struct {
	BytesWritten     int64
	FsyncCount       int
	RenameCount      int
	Elapsed          time.Duration
	SkippedUnchanged bool
	Durability       DurabilityMode
}

// AtomicWriter performs CAS-guarded, idempotent, atomic file writes.
type AtomicWriter struct {
	options WriteOptions
}

// NewAtomicWriter constructs a writer bound to the given options.
func NewAtomicWriter(options WriteOptions) *AtomicWriter {
	return &AtomicWriter{options: options}
}

// WriteString is a convenience wrapper over Write for string content.
func (w *AtomicWriter) WriteString(path string, content string) (WriteStats, error) {
	return w.Write(path, []byte(content))
}

// Write atomically replaces path's content with the given bytes, honoring
// CAS preconditions and idempotent-skip before touching the filesystem.
// It does not take the sidecar lock (see AcquireFileLock).
func (w *AtomicWriter) Write(path string, content []byte) (WriteStats, error) {
	start := time.Now()

	parent := filepath.Dir(path)
	if parent == "" {
		parent = "."
	}

	existing, err := os.Stat(path)
	var existingErr error
	if err != nil {
		if !os.IsNotExist(err) {
			return WriteStats{}, fmt.Errorf("atomicio: stat %s: %w", path, err)
		}
		existingErr = err
	}
	existingMeta := existing
	_ = existingErr

	if w.options.CAS != nil {
		if err := verifyCAS(path, existingMeta, *w.options.CAS); err != nil {
			return WriteStats{}, err
		}
	}

	if w.options.IdempotentSkip && existingMeta != nil {
		unchanged, err := isUnchanged(path, existingMeta, content, w.options.CompareHashWhenSameSize)
		if err != nil {
			return WriteStats{}, err
		}
		if unchanged {
			return WriteStats{
				Elapsed:          time.Since(start),
				SkippedUnchanged: true,
				Durability:       w.options.Durability,
			}, nil
		}
	}

	fsyncCount := 0

	if existingMeta == nil {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return WriteStats{}, fmt.Errorf("atomicio: create parent dir for %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(parent, ".rtk-mem-tmp-*")
	if err != nil {
		return WriteStats{}, fmt.Errorf("atomicio: create temp file in %s: %w", parent, err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bufSize := w.options.BufferSize
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	if err := writeBuffered(tmp, content, bufSize); err != nil {
		return WriteStats{}, fmt.Errorf("atomicio: write temp file for %s: %w", path, err)
	}

	if w.options.PreservePermissions && existingMeta != nil {
		if err := os.Chmod(tmpPath, existingMeta.Mode()); err != nil {
			return WriteStats{}, fmt.Errorf("atomicio: preserve permissions for %s: %w", path, err)
		}
	}

	if w.options.Durability == Durable {
		if err := tmp.Sync(); err != nil {
			return WriteStats{}, fmt.Errorf("atomicio: fsync temp file for %s: %w", path, err)
		}
		fsyncCount++
	}

	if err := tmp.Close(); err != nil {
		return WriteStats{}, fmt.Errorf("atomicio: close temp file for %s: %w", path, err)
	}
	cleanupTmp = false

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return WriteStats{}, fmt.Errorf("atomicio: atomically replace %s: %w", path, err)
	}

	if w.options.Durability == Durable {
		if err := fsyncDir(parent); err != nil {
			return WriteStats{}, fmt.Errorf("atomicio: fsync parent dir %s: %w", parent, err)
		}
		fsyncCount++
	}

	return WriteStats{
		BytesWritten: int64(len(content)),
		FsyncCount:   fsyncCount,
		RenameCount:  1,
		Elapsed:      time.Since(start),
		Durability:   w.options.Durability,
	}, nil
}

func writeBuffered(f *os.File, content []byte, bufSize int) error {
	w := io.Writer(f)
	if bufSize > 0 {
		return writeChunked(w, content, bufSize)
	}
	_, err := w.Write(content)
	return err
}

func writeChunked(w io.Writer, content []byte, chunk int) error {
	for len(content) > 0 {
		n := chunk
		if n > len(content) {
			n = len(content)
		}
		if _, err := w.Write(content[:n]); err != nil {
			return err
		}
		content = content[n:]
	}
	return nil
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func isUnchanged(path string, meta os.FileInfo, content []byte, compareHash bool) (bool, error) {
	if meta.Size() != int64(len(content)) {
		return false, nil
	}

	if compareHash {
		existingHash, err := hashFile(path)
		if err != nil {
			return false, err
		}
		if existingHash != hashutil.RawBytes(content) {
			return false, nil
		}
	}

	existing, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("atomicio: read existing file %s: %w", path, err)
	}
	return bytes.Equal(existing, content), nil
}

// SnapshotFile stats path and optionally hashes its content, for building
// CAS preconditions ahead of a read-modify-write cycle. Returns nil, nil if
// the file does not exist.
func SnapshotFile(path string, includeHash bool) (*FileSnapshot, error) {
	meta, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("atomicio: stat %s: %w", path, err)
	}

	snap := &FileSnapshot{Len: meta.Size(), Modified: meta.ModTime()}
	if includeHash {
		h, err := hashFile(path)
		if err != nil {
			return nil, err
		}
		snap.Hash = h
		snap.HasHash = true
	}
	return snap, nil
}

// SnapshotFromContent builds a CAS snapshot from content already held in
// memory, avoiding a second read of the file for its hash.
func SnapshotFromContent(path string, content []byte, includeHash bool) (*FileSnapshot, error) {
	meta, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("atomicio: stat %s: %w", path, err)
	}

	snap := &FileSnapshot{Len: meta.Size(), Modified: meta.ModTime()}
	if includeHash {
		snap.Hash = hashutil.RawBytes(content)
		snap.HasHash = true
	}
	return snap, nil
}

func hashFile(path string) (uint64, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("atomicio: read existing file %s: %w", path, err)
	}
	return hashutil.RawBytes(content), nil
}
