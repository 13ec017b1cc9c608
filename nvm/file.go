// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cznic/fileutil"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
)

// FileNvmBuilder configures how a file-backed NonVolatileMemory opens its
// underlying file.
type FileNvmBuilder struct {
	directIO      bool
	exclusiveLock bool
}

// NewFileNvmBuilder returns a builder with cannyls's usual defaults: both
// direct I/O and an advisory exclusive lock enabled.
func NewFileNvmBuilder() *FileNvmBuilder {
	return &FileNvmBuilder{directIO: true, exclusiveLock: true}
}

// DirectIO toggles O_DIRECT (Linux only; silently ignored elsewhere).
func (b *FileNvmBuilder) DirectIO(enable bool) *FileNvmBuilder {
	b.directIO = enable
	return b
}

// ExclusiveLock toggles taking an advisory flock(2) LOCK_EX on the file, to
// guard against a second process accidentally opening the same lusf file.
func (b *FileNvmBuilder) ExclusiveLock(enable bool) *FileNvmBuilder {
	b.exclusiveLock = enable
	return b
}

// Create creates a new file of the given capacity (in bytes) and wraps it,
// materializing any missing parent directories first.
func (b *FileNvmBuilder) Create(path string, capacity uint64) (*FileNvm, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	f, err := b.openFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}
	if b.exclusiveLock {
		if err := lockExclusive(f); err != nil {
			f.Close()
			return nil, errors.WithStack(err)
		}
	}
	return &FileNvm{file: f, capacity: capacity}, nil
}

// Open opens an existing file and wraps it; its capacity is the file's
// current size.
func (b *FileNvmBuilder) Open(path string) (*FileNvm, error) {
	f, err := b.openFile(path, os.O_RDWR)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}
	if b.exclusiveLock {
		if err := lockExclusive(f); err != nil {
			f.Close()
			return nil, errors.WithStack(err)
		}
	}
	return &FileNvm{file: f, capacity: uint64(fi.Size())}, nil
}

// CreateOrOpen opens path if it already exists, or creates it with the
// given capacity otherwise, reporting which happened via created.
func (b *FileNvmBuilder) CreateOrOpen(path string, capacity uint64) (nv *FileNvm, created bool, err error) {
	nv, err = b.Open(path)
	if err == nil {
		return nv, false, nil
	}
	if !os.IsNotExist(errors.Cause(err)) {
		return nil, false, err
	}
	nv, err = b.Create(path, capacity)
	if err != nil {
		return nil, false, err
	}
	return nv, true, nil
}

func (b *FileNvmBuilder) openFile(path string, flags int) (*os.File, error) {
	if b.directIO && runtime.GOOS == "linux" {
		return os.OpenFile(path, flags|unix.O_DIRECT, 0644)
	}
	return os.OpenFile(path, flags, 0644)
}

func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// FileNvm is a real-file-backed NonVolatileMemory.
type FileNvm struct {
	file      *os.File
	capacity  uint64
	position  uint64
	blockSize block.Size
}

// CreateFileNvm creates path with cannyls's default builder settings.
func CreateFileNvm(path string, capacity uint64) (*FileNvm, error) {
	return NewFileNvmBuilder().Create(path, capacity)
}

// OpenFileNvm opens path with cannyls's default builder settings.
func OpenFileNvm(path string) (*FileNvm, error) {
	return NewFileNvmBuilder().Open(path)
}

// ensureBlockSize lazily defaults blockSize to the O_DIRECT sector floor.
// FileNvm always aligns at block.Min(): the storage layer's own, possibly
// larger, logical block size is tracked separately (see storage.Builder)
// and only ever checked against this floor for a multiple-of relationship,
// never substituted into it.
func (f *FileNvm) ensureBlockSize() block.Size {
	if f.blockSize == 0 {
		f.blockSize = block.Min()
	}
	return f.blockSize
}

func (f *FileNvm) Read(p []byte) (int, error) {
	if !f.ensureBlockSize().IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"read of %d bytes is not block aligned", len(p)))
	}
	n, err := f.file.Read(p)
	f.position += uint64(n)
	return n, err
}

func (f *FileNvm) Write(p []byte) (int, error) {
	if !f.ensureBlockSize().IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"write of %d bytes is not block aligned", len(p)))
	}
	n, err := f.file.Write(p)
	f.position += uint64(n)
	return n, err
}

func (f *FileNvm) Seek(offset int64, whence int) (int64, error) {
	position, err := ConvertToOffset(f, offset, whence)
	if err != nil {
		return 0, err
	}
	if !f.ensureBlockSize().IsAligned(position) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"seek target %d is not block aligned", position))
	}
	if _, err := f.file.Seek(int64(position), io.SeekStart); err != nil {
		return 0, errors.WithStack(err)
	}
	f.position = position
	return int64(position), nil
}

// Sync issues fdatasync(2)-equivalent durability via File.Sync.
func (f *FileNvm) Sync() error {
	return errors.WithStack(f.file.Sync())
}

// Position returns the current read/write cursor.
func (f *FileNvm) Position() uint64 { return f.position }

// Capacity returns the file's size as recorded at open/create time.
func (f *FileNvm) Capacity() uint64 { return f.capacity }

// BlockSize returns this file's alignment unit.
func (f *FileNvm) BlockSize() block.Size { return f.ensureBlockSize() }

// Split divides the file in two at position, returning two windowed views
// sharing the same descriptor (positioned I/O keeps them independent),
// mirroring SharedMemoryNvm's windowing technique.
func (f *FileNvm) Split(position uint64) (NonVolatileMemory, NonVolatileMemory, error) {
	if position != f.BlockSize().CeilAlign(position) {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d is not block aligned", position))
	}
	if position > f.Capacity() {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d exceeds capacity %d", position, f.Capacity()))
	}
	left := &windowedFileNvm{file: f.file, blockSize: f.ensureBlockSize(), start: 0, end: position}
	right := &windowedFileNvm{file: f.file, blockSize: f.ensureBlockSize(), start: position, end: f.capacity}
	return left, right, nil
}

// PunchHole deallocates the physical storage backing [offset, offset+size)
// while preserving the file's logical size.
func (f *FileNvm) PunchHole(offset, size int64) error {
	return fileutil.PunchHole(f.file, offset, size)
}

// windowedFileNvm is a NonVolatileMemory over a byte-range window of a
// shared *os.File, as produced by FileNvm.Split.
type windowedFileNvm struct {
	file       *os.File
	blockSize  block.Size
	start, end uint64
	position   uint64
}

func (w *windowedFileNvm) Read(p []byte) (int, error) {
	if !w.blockSize.IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"read of %d bytes is not block aligned", len(p)))
	}
	n, err := w.file.ReadAt(p, int64(w.start+w.position))
	w.position += uint64(n)
	return n, err
}

func (w *windowedFileNvm) Write(p []byte) (int, error) {
	if !w.blockSize.IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"write of %d bytes is not block aligned", len(p)))
	}
	n, err := w.file.WriteAt(p, int64(w.start+w.position))
	w.position += uint64(n)
	return n, err
}

func (w *windowedFileNvm) Seek(offset int64, whence int) (int64, error) {
	position, err := ConvertToOffset(w, offset, whence)
	if err != nil {
		return 0, err
	}
	if !w.blockSize.IsAligned(position) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"seek target %d is not block aligned", position))
	}
	w.position = position
	return int64(position), nil
}

func (w *windowedFileNvm) Sync() error { return errors.WithStack(w.file.Sync()) }

func (w *windowedFileNvm) Position() uint64 { return w.position }

func (w *windowedFileNvm) Capacity() uint64 { return w.end - w.start }

func (w *windowedFileNvm) BlockSize() block.Size { return w.blockSize }

func (w *windowedFileNvm) Split(position uint64) (NonVolatileMemory, NonVolatileMemory, error) {
	if position != w.blockSize.CeilAlign(position) {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d is not block aligned", position))
	}
	if position > w.Capacity() {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d exceeds capacity %d", position, w.Capacity()))
	}
	left := &windowedFileNvm{file: w.file, blockSize: w.blockSize, start: w.start, end: w.start + position}
	right := &windowedFileNvm{file: w.file, blockSize: w.blockSize, start: w.start + position, end: w.end}
	return left, right, nil
}
