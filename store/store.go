// Package store persists compiled LVS models to disk and serves them
// back through read-only memory maps, so a long-running producer or
// consumer does not have to recompile LVS source on every restart.
//
// It is grounded on the teacher's fsContainer (container.go): a
// lockfile-guarded path on disk, repurposed here from "XMSS private key
// plus cached subtrees" to "one immutable compiled model blob". A
// compiled Model never changes after Compile/Decode (spec.md §3
// Lifecycle), which makes it a natural read-only mmap candidate the same
// way the teacher's precomputed Merkle subtrees are.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/nightlyone/lockfile"

	"github.com/named-data/go-lvs"
)

// Store guards one on-disk compiled-model file at path with a sibling
// path+".lock" lockfile, mirroring the teacher's
//
//	path/to/key        the payload
//	path/to/key.lock    a lockfile
//
// layout from container.go's fsContainer doc comment.
type Store struct {
	path  string
	flock lockfile.Lockfile
}

// Open acquires the store at path, creating its lockfile if necessary.
// It does not require the payload file to already exist: a Store may be
// opened purely to Save a freshly compiled model.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve absolute path for %s: %w", path, err)
	}

	lockPath := abs + ".lock"
	fl, err := lockfile.New(lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create lockfile %s: %w", lockPath, err)
	}

	if err := fl.TryLock(); err != nil {
		if _, ok := err.(interface{ Temporary() bool }); ok {
			return nil, fmt.Errorf("%s is locked by another process", abs)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", abs, err)
	}

	return &Store{path: abs, flock: fl}, nil
}

// Close releases the store's lock. It does not close any Mapped model
// obtained from Load; call Mapped.Close separately.
func (s *Store) Close() error {
	return s.flock.Unlock()
}

// Save encodes m and writes it to the store's path. The write goes to a
// temporary sibling file first and is then renamed into place, so a
// concurrent Load never observes a partially written blob.
func (s *Store) Save(m *lvs.Model) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp file %s: %w", tmp, err)
	}
	if err := lvs.EncodeTo(f, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync model file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close model file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s into place: %w", tmp, err)
	}
	return nil
}

// Mapped is a compiled Model backed by a read-only memory map of its
// on-disk encoding. Multiple readers may hold a Mapped over the same
// file concurrently (spec.md §5: "The model is immutable after load;
// multiple threads may call matcher/checker concurrently").
type Mapped struct {
	Model *lvs.Model

	file *os.File
	mm   mmap.MMap
}

// Load memory-maps the store's path read-only and decodes the model
// from the mapped bytes. The caller must call Close when done to release
// the mapping and file descriptor.
func (s *Store) Load() (*Mapped, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", s.path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("%s is empty", s.path)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap %s: %w", s.path, err)
	}

	model, err := lvs.Decode(mm)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}

	return &Mapped{Model: model, file: f, mm: mm}, nil
}

// Close unmaps the underlying memory map and closes the file descriptor.
// Model must not be used after Close returns.
func (mp *Mapped) Close() error {
	if mp.mm != nil {
		if err := mp.mm.Unmap(); err != nil {
			mp.file.Close()
			return fmt.Errorf("failed to unmap: %w", err)
		}
	}
	return mp.file.Close()
}
