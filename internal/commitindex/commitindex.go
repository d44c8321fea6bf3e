// Package commitindex is a tiny mmap-backed sidecar: a fixed-capacity
// table mapping a writer ID to the LSN of its most recently committed
// record. It exists so an operator tool can answer "what has writer X
// last committed" without scanning the log itself.
//
// The on-disk layout and the registry-entry RWMutex discipline are
// grounded on pkg/slotcache's SLC1 format and locking model (fixed
// 64-byte header with a CRC and a generation counter, a flat array of
// fixed-size slots, readers taking the shared lock and the one writer
// taking the exclusive lock) scaled down to this package's much smaller
// problem: no hashing, no scanning, no ordered keys, just a linear table
// sized for the small number of writers a single WAL instance expects.
package commitindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	magic      = "WCI1"
	version    = 1
	headerSize = 64

	writerIDSize = 16
	slotSize     = writerIDSize + 4 + 8 // writer ID + LSN.FileID + LSN.Offset

	offMagic      = 0
	offVersion    = 4
	offCapacity   = 8
	offGeneration = 16
	offCRC32      = 24
)

// ErrWriterIDTooLong is returned when a writer ID does not fit in the
// fixed-width field the index uses as its key.
var ErrWriterIDTooLong = errors.New("commitindex: writer id exceeds 16 bytes")

// ErrFull is returned when Put is called for a new writer ID and every
// slot already holds a different one.
var ErrFull = errors.New("commitindex: capacity exhausted")

// LSN mirrors slotengine.LSN's shape without importing pkg/slotengine,
// keeping this package usable by anything that can name a file ID and an
// offset, not only the slot engine.
type LSN struct {
	FileID uint32
	Offset int64
}

// Index is an open commit index file.
type Index struct {
	mu       sync.RWMutex
	f        *os.File
	data     []byte // mmap'd file contents, header + capacity*slotSize
	capacity uint64
}

// Open opens (creating if necessary) a commit index file at path sized
// for capacity distinct writer IDs.
func Open(path string, capacity uint64) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("commitindex: open: %w", err)
	}

	size := int64(headerSize + capacity*slotSize)

	fi, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("commitindex: stat: %w", err)
	}

	if fi.Size() == 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()

			return nil, fmt.Errorf("commitindex: truncate: %w", err)
		}

		if err := writeHeader(f, capacity); err != nil {
			f.Close()

			return nil, err
		}
	} else if fi.Size() != size {
		f.Close()

		return nil, fmt.Errorf("commitindex: %s: size %d does not match expected %d for capacity %d",
			path, fi.Size(), size, capacity)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("commitindex: mmap: %w", err)
	}

	idx := &Index{f: f, data: data, capacity: capacity}
	if err := idx.validateHeader(); err != nil {
		idx.Close()

		return nil, err
	}

	return idx, nil
}

func writeHeader(f *os.File, capacity uint64) error {
	buf := make([]byte, headerSize)
	copy(buf[offMagic:], magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], version)
	binary.LittleEndian.PutUint64(buf[offCapacity:], capacity)
	binary.LittleEndian.PutUint64(buf[offGeneration:], 0)
	binary.LittleEndian.PutUint32(buf[offCRC32:], crc32.ChecksumIEEE(buf[:offCRC32]))

	_, err := f.WriteAt(buf, 0)
	if err != nil {
		return fmt.Errorf("commitindex: write header: %w", err)
	}

	return nil
}

func (idx *Index) validateHeader() error {
	h := idx.data[:headerSize]
	if string(h[offMagic:offMagic+4]) != magic {
		return fmt.Errorf("commitindex: bad magic %q", h[offMagic:offMagic+4])
	}

	if got := binary.LittleEndian.Uint32(h[offVersion:]); got != version {
		return fmt.Errorf("commitindex: unsupported version %d", got)
	}

	if got := binary.LittleEndian.Uint64(h[offCapacity:]); got != idx.capacity {
		return fmt.Errorf("commitindex: capacity mismatch: file has %d, opened with %d", got, idx.capacity)
	}

	want := binary.LittleEndian.Uint32(h[offCRC32:])
	if got := crc32.ChecksumIEEE(h[:offCRC32]); got != want {
		return fmt.Errorf("commitindex: header checksum mismatch (corrupt file)")
	}

	return nil
}

func (idx *Index) slotOffset(i uint64) int {
	return headerSize + int(i*slotSize)
}

func encodeWriterID(id []byte) ([writerIDSize]byte, error) {
	var key [writerIDSize]byte

	if len(id) > writerIDSize {
		return key, ErrWriterIDTooLong
	}

	copy(key[:], id)

	return key, nil
}

// Put records lsn as writerID's most recent commit, reusing writerID's
// existing slot if it already has one or claiming the first empty slot
// otherwise.
func (idx *Index) Put(writerID []byte, lsn LSN) error {
	key, err := encodeWriterID(writerID)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	slot, found := idx.findSlot(key)
	if !found {
		free, ok := idx.firstEmptySlot()
		if !ok {
			return ErrFull
		}

		slot = free
	}

	off := idx.slotOffset(slot)
	copy(idx.data[off:off+writerIDSize], key[:])
	binary.LittleEndian.PutUint32(idx.data[off+writerIDSize:], lsn.FileID)
	binary.LittleEndian.PutUint64(idx.data[off+writerIDSize+4:], uint64(lsn.Offset))

	gen := binary.LittleEndian.Uint64(idx.data[offGeneration:]) + 1
	binary.LittleEndian.PutUint64(idx.data[offGeneration:], gen)
	binary.LittleEndian.PutUint32(idx.data[offCRC32:], crc32.ChecksumIEEE(idx.data[:offCRC32]))

	return nil
}

// Get returns the last LSN recorded for writerID, or found=false if none.
func (idx *Index) Get(writerID []byte) (lsn LSN, found bool, err error) {
	key, err := encodeWriterID(writerID)
	if err != nil {
		return LSN{}, false, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	slot, found := idx.findSlot(key)
	if !found {
		return LSN{}, false, nil
	}

	off := idx.slotOffset(slot)
	lsn = LSN{
		FileID: binary.LittleEndian.Uint32(idx.data[off+writerIDSize:]),
		Offset: int64(binary.LittleEndian.Uint64(idx.data[off+writerIDSize+4:])),
	}

	return lsn, true, nil
}

// findSlot scans linearly for key, which is the right tradeoff at this
// package's scale (a handful of writers, not a hash table's worth).
func (idx *Index) findSlot(key [writerIDSize]byte) (uint64, bool) {
	for i := uint64(0); i < idx.capacity; i++ {
		off := idx.slotOffset(i)
		if string(idx.data[off:off+writerIDSize]) == string(key[:]) {
			return i, true
		}
	}

	return 0, false
}

func (idx *Index) firstEmptySlot() (uint64, bool) {
	var zero [writerIDSize]byte

	for i := uint64(0); i < idx.capacity; i++ {
		off := idx.slotOffset(i)
		if string(idx.data[off:off+writerIDSize]) == string(zero[:]) {
			return i, true
		}
	}

	return 0, false
}

// Close syncs and unmaps the index file.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var errs []error

	if idx.data != nil {
		if err := unix.Msync(idx.data, unix.MS_SYNC); err != nil {
			errs = append(errs, fmt.Errorf("commitindex: msync: %w", err))
		}

		if err := unix.Munmap(idx.data); err != nil {
			errs = append(errs, fmt.Errorf("commitindex: munmap: %w", err))
		}

		idx.data = nil
	}

	if err := idx.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("commitindex: close: %w", err))
	}

	return errors.Join(errs...)
}
