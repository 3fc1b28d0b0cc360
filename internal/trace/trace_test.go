package trace

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/inexplicable/slabmrc/internal/window"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")

	w, err := Create(path)
	if err != nil {
		panic(err)
	}
	want := []Record{
		{Timestamp: 1, KeyHash: 111, Class: window.ClassId(0), Size: 64},
		{Timestamp: 2, KeyHash: 222, Class: window.ClassId(1), Size: 128},
	}
	for _, r := range want {
		if err := w.Write(r); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}

	r, err := Open(path)
	if err != nil {
		panic(err)
	}
	defer r.Close()

	for i, wantRec := range want {
		got, err := r.Next()
		if err != nil {
			panic(err)
		}
		if got != wantRec {
			panic("record mismatch at index")
		}
		_ = i
	}
	if _, err := r.Next(); err != io.EOF {
		panic("expected io.EOF after the last record")
	}
}

func TestRewindReplaysFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")
	w, _ := Create(path)
	_ = w.Write(Record{Timestamp: 5, KeyHash: 9, Class: 0, Size: 1})
	_ = w.Close()

	r, _ := Open(path)
	defer r.Close()

	first, _ := r.Next()
	if _, err := r.Next(); err != io.EOF {
		panic("expected EOF on the second read of a one-record trace")
	}
	r.Rewind()
	second, err := r.Next()
	if err != nil {
		panic(err)
	}
	if first != second {
		panic("rewind should replay the identical record")
	}
}

func TestOpenMissingFileFails(t *testing.T) {
	if _, err := Open(filepath.Join(os.TempDir(), "does-not-exist.bin")); err == nil {
		panic("expected an error opening a missing trace file")
	}
}
