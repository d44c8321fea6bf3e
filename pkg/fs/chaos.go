package fs

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Partially initialized configs
// only inject faults for the specified rates; unset fields default to 0.0.
//
// Fault injection is enabled by default ([ChaosModeActive]). Use
// [Chaos.SetMode] with [ChaosModeNoOp] to disable injection and pass
// all operations through to the underlying filesystem.
//
// Only the fault surface this module's tests actually drive is modeled:
// failing to open/create a log segment or config temp file, failing a
// buffered write, and failing the fsync that's supposed to make a write
// durable. Other fault shapes (partial reads, directory-listing errors,
// rename failures, ...) aren't exercised by anything here and aren't
// worth carrying.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open, FS.Create, and FS.OpenFile fail
	// to open a file. For read-only opens: EACCES, EIO, EMFILE, ENFILE, ENOTDIR.
	// For write opens (Create, O_WRONLY, etc.): adds ENOSPC, EDQUOT, EROFS.
	OpenFailRate float64

	// WriteFailRate controls how often File.Write fails entirely, writing zero
	// bytes and returning an error (EIO, ENOSPC, EDQUOT, or EROFS).
	WriteFailRate float64

	// SyncFailRate controls how often File.Sync (fsync) fails. Returns EIO,
	// ENOSPC, EDQUOT, or EROFS. Sync failures can surface delayed write errors
	// that weren't reported during Write.
	SyncFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string { return "chaos: " + e.Err.Error() }
func (e *chaosError) Unwrap() error { return e.Err }

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Chaos never injects ENOENT (any os.IsNotExist result originates from the
// wrapped [FS]) so tests can still distinguish "missing" from "faulted".
// Every method that isn't named in [ChaosConfig] is a pure passthrough to
// the wrapped filesystem.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: config,
	}
}

// SetMode updates [Chaos] behavior.
//
// SetMode is safe to call concurrently with filesystem operations.
//
// Modes:
//   - [ChaosModeActive]: inject random failures according to [ChaosConfig].
//     This is the default.
//   - [ChaosModeNoOp]: pass all operations to the underlying filesystem.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	return c.openWithChaos(path, chaosOpOpen, func() (File, error) {
		return c.fs.Open(path)
	})
}

// Create creates a file for writing with fault injection.
func (c *Chaos) Create(path string) (File, error) {
	return c.openWithChaos(path, chaosOpCreate, func() (File, error) {
		return c.fs.Create(path)
	})
}

// OpenFile opens a file with the specified flags and permissions with fault injection.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	op := chaosOpOpen
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		op = chaosOpCreate
	}

	return c.openWithChaos(path, op, func() (File, error) {
		return c.fs.OpenFile(path, flag, perm)
	})
}

// ReadFile reads a file's contents. Passthrough: no fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	return c.fs.ReadFile(path)
}

// WriteFile writes data to a file via OpenFile + Write + Close, so
// OpenFailRate and WriteFailRate apply naturally.
func (c *Chaos) WriteFile(path string, data []byte, perm os.FileMode) error {
	file, err := c.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close() // best-effort close on write error

		return err
	}

	return file.Close()
}

// ReadDir reads directory contents. Passthrough: no fault injection.
func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	return c.fs.ReadDir(path)
}

// MkdirAll creates a directory and parents. Passthrough: no fault injection.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.fs.MkdirAll(path, perm)
}

// Stat returns file info. Passthrough: no fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	return c.fs.Stat(path)
}

// Exists checks file existence. Passthrough: no fault injection.
func (c *Chaos) Exists(path string) (bool, error) {
	return c.fs.Exists(path)
}

// Remove removes a file. Passthrough: no fault injection.
func (c *Chaos) Remove(path string) error {
	return c.fs.Remove(path)
}

// RemoveAll removes a path and its contents. Passthrough: no fault injection.
func (c *Chaos) RemoveAll(path string) error {
	return c.fs.RemoveAll(path)
}

// Rename renames a file. Passthrough: no fault injection.
func (c *Chaos) Rename(oldpath, newpath string) error {
	return c.fs.Rename(oldpath, newpath)
}

// getMode returns the current ChaosMode safely.
func (c *Chaos) getMode() ChaosMode {
	v := c.mode.Load()
	if v > uint32(ChaosModeNoOp) {
		return ChaosModeActive
	}

	return ChaosMode(v)
}

// openWithChaos wraps file-open operations with fault injection.
// The op parameter controls which errno set is used (via pickError).
// Returns the wrapped chaosFile on success, or an injected error.
func (c *Chaos) openWithChaos(path, op string, openFn func() (File, error)) (File, error) {
	mode := c.getMode()
	if mode == ChaosModeActive && c.should(c.config.OpenFailRate) {
		return nil, pathError("open", path, c.pickError(op))
	}

	file, err := openFn()
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: file, chaos: c, path: path}, nil
}

// chaosOp identifies operation names used in Chaos fault injection.
const (
	chaosOpOpen   = "open"
	chaosOpCreate = "create"
)

// should returns true with the given probability when chaos is injecting.
// Only call this when the caller already knows mode == ChaosModeActive.
func (c *Chaos) should(rate float64) bool {
	return c.randFloat() < rate
}

// randFloat returns a random float64 in [0.0, 1.0) (thread-safe).
func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	result := c.rng.Float64()
	c.rngMu.Unlock()

	return result
}

// randIntn returns a random int in [0, n) (thread-safe).
func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	result := c.rng.IntN(n)
	c.rngMu.Unlock()

	return result
}

// pathError creates an injected [*fs.PathError] with the given operation, path, and errno.
// The error is wrapped in [chaosError] so [IsChaosErr] can identify it, while
// [errors.As] and helpers like [os.IsPermission] still work via unwrapping.
func pathError(op, path string, errno syscall.Errno) error {
	pe := &fs.PathError{Op: op, Path: path, Err: errno}

	return &chaosError{Err: pe}
}

// pickRandom selects a random error from the slice.
func (c *Chaos) pickRandom(errs []syscall.Errno) syscall.Errno {
	return errs[c.randIntn(len(errs))]
}

// pickError selects an injected errno for the given operation.
func (c *Chaos) pickError(op string) syscall.Errno {
	switch op {
	case chaosOpOpen:
		// EACCES: permission denied (file/directory permissions or ACLs)
		// EIO: I/O error (device/filesystem failure)
		// EMFILE: too many open files for this process (per-process FD limit)
		// ENFILE: too many open files in the system (system-wide FD limit)
		// ENOTDIR: expected a directory, but a path component is not a directory
		return c.pickRandom([]syscall.Errno{
			syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE, syscall.ENOTDIR,
		})

	case chaosOpCreate:
		// Same as open, plus the write-opens-only failure modes.
		// ENOSPC: no space left on device
		// EDQUOT: disk quota exceeded
		// EROFS: read-only filesystem (writes/mutations are rejected)
		return c.pickRandom([]syscall.Errno{
			syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS,
			syscall.EMFILE, syscall.ENFILE, syscall.ENOTDIR,
		})

	case "write":
		// EIO, ENOSPC, EDQUOT, EROFS. Avoid EACCES/ENOENT post-open.
		return c.pickRandom([]syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS})

	default: // "sync"
		// fsync can surface delayed write failures.
		return c.pickRandom([]syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS})
	}
}

// chaosFile wraps a [File] and injects faults on Write/Sync.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(buf []byte) (int, error) { return cf.f.Read(buf) }

func (cf *chaosFile) Write(data []byte) (int, error) {
	if cf.chaos.getMode() == ChaosModeActive && cf.chaos.should(cf.chaos.config.WriteFailRate) {
		return 0, pathError("write", cf.path, cf.chaos.pickError("write"))
	}

	return cf.f.Write(data)
}

// Close always closes the underlying file, even if a fault were to be
// injected here; there is no CloseFailRate to model since nothing in this
// module needs to assert on close-time failures specifically.
func (cf *chaosFile) Close() error { return cf.f.Close() }

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) { return cf.f.Seek(offset, whence) }

func (cf *chaosFile) Fd() uintptr { return cf.f.Fd() }

func (cf *chaosFile) Stat() (os.FileInfo, error) { return cf.f.Stat() }

func (cf *chaosFile) Sync() error {
	if cf.chaos.getMode() == ChaosModeActive && cf.chaos.should(cf.chaos.config.SyncFailRate) {
		return pathError("sync", cf.path, cf.chaos.pickError("sync"))
	}

	return cf.f.Sync()
}

func (cf *chaosFile) Chmod(mode os.FileMode) error { return cf.f.Chmod(mode) }

var _ FS = (*Chaos)(nil)
