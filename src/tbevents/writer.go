package tbevents

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// Writer emits minimal but valid event files (simple_value scalars only).
// Used to build fixtures and tests; real training logs come from the
// frameworks themselves.
type Writer struct {
	f *os.File
	w *bufio.Writer
}

// Create opens path for writing as a fresh event file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// WriteScalar appends one scalar observation as its own Event record.
func (w *Writer) WriteScalar(tag string, step int64, wallTime float64, value float64) error {
	// Summary.Value{tag=1, simple_value=2}
	var sv []byte
	sv = protowire.AppendTag(sv, 1, protowire.BytesType)
	sv = protowire.AppendString(sv, tag)
	sv = protowire.AppendTag(sv, 2, protowire.Fixed32Type)
	sv = protowire.AppendFixed32(sv, math.Float32bits(float32(value)))

	// Summary{value=1}
	var sum []byte
	sum = protowire.AppendTag(sum, 1, protowire.BytesType)
	sum = protowire.AppendBytes(sum, sv)

	// Event{wall_time=1, step=2, summary=5}
	var ev []byte
	ev = protowire.AppendTag(ev, 1, protowire.Fixed64Type)
	ev = protowire.AppendFixed64(ev, math.Float64bits(wallTime))
	ev = protowire.AppendTag(ev, 2, protowire.VarintType)
	ev = protowire.AppendVarint(ev, uint64(step))
	ev = protowire.AppendTag(ev, 5, protowire.BytesType)
	ev = protowire.AppendBytes(ev, sum)

	return w.writeRecord(ev)
}

func (w *Writer) writeRecord(payload []byte) error {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(hdr[8:], maskCRC(crc32.Checksum(hdr[:8], crcTable)))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], maskCRC(crc32.Checksum(payload, crcTable)))
	_, err := w.w.Write(tail[:])
	return err
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
