// Package trace reads and writes a fixed-width binary access trace: a
// sequence of (timestamp, key hash, class, size) records that cmd/tracegen
// produces and an offline analysis tool can replay through a Profiler's
// FeedHash. It intentionally drops the zstd framing of the OracleGeneral
// binary trace format it is grounded on; see DESIGN.md for why.
package trace

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/inexplicable/slabmrc/internal/window"
)

// recordSize is the on-disk width of one Record: 4 (Timestamp) + 8 (KeyHash)
// + 4 (Class) + 4 (Size) bytes.
const recordSize = 20

// Record is one access trace event.
type Record struct {
	Timestamp uint32
	KeyHash   uint64
	Class     window.ClassId
	Size      uint32
}

// Writer appends Records to a binary trace file.
type Writer struct {
	f *os.File
	w *bufio.Writer
}

// Create truncates or creates path and returns a Writer over it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// Write appends one Record.
func (w *Writer) Write(r Record) error {
	var buf [recordSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], r.Timestamp)
	binary.LittleEndian.PutUint64(buf[4:12], r.KeyHash)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.Class))
	binary.LittleEndian.PutUint32(buf[16:20], r.Size)
	_, err := w.w.Write(buf[:])
	return err
}

// Close flushes buffered writes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader replays a trace file previously produced by a Writer. It mmaps the
// file read-only so scanning a multi-gigabyte trace does not require
// reading it into the Go heap.
type Reader struct {
	f   *os.File
	mm  mmap.MMap
	pos int
}

// Open mmaps path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{f: f, mm: mm}, nil
}

// Next returns the next Record, or io.EOF once the trace is exhausted.
func (r *Reader) Next() (Record, error) {
	if r.pos+recordSize > len(r.mm) {
		return Record{}, io.EOF
	}
	buf := r.mm[r.pos : r.pos+recordSize]
	r.pos += recordSize
	return Record{
		Timestamp: binary.LittleEndian.Uint32(buf[0:4]),
		KeyHash:   binary.LittleEndian.Uint64(buf[4:12]),
		Class:     window.ClassId(binary.LittleEndian.Uint32(buf[12:16])),
		Size:      binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// Rewind resets replay to the first record.
func (r *Reader) Rewind() {
	r.pos = 0
}

// Close unmaps and closes the underlying file.
func (r *Reader) Close() error {
	if err := r.mm.Unmap(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}
