// Package tbevents reads scalar summaries from TensorBoard event-log files.
//
// Event files are TFRecord streams: each record is an 8-byte little-endian
// payload length, a masked CRC32C of those length bytes, the payload, and a
// masked CRC32C of the payload. Payloads are serialized Event protos; only
// scalar summaries (simple_value, or 0-d float/double tensors as written by
// newer summary writers) are extracted, everything else is skipped.
package tbevents

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// FilePrefix is the filename marker identifying TensorBoard event files.
const FilePrefix = "events.out.tfevents"

// ScalarEvent is one observation of one scalar tag.
type ScalarEvent struct {
	Step     int64
	Value    float64
	WallTime float64
}

// EventFile provides access to the scalar contents of one event file.
// Open records the path; Load parses the whole file; Tags/Scalars then
// serve from memory.
type EventFile struct {
	path    string
	order   []string
	scalars map[string][]ScalarEvent
}

// Open prepares an EventFile for the given path. No I/O happens until Load.
func Open(path string) *EventFile {
	return &EventFile{path: path, scalars: map[string][]ScalarEvent{}}
}

// Path returns the file path this EventFile reads from.
func (f *EventFile) Path() string { return f.path }

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// maskCRC applies the TFRecord CRC mask so CRCs embedded in CRC'd data
// don't degenerate.
func maskCRC(c uint32) uint32 {
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

var errChecksum = errors.New("tfrecord checksum mismatch")

// Load reads and parses the entire file. A truncated final record (a writer
// killed mid-append leaves one) ends the scan cleanly; a checksum mismatch
// on a complete record is an error.
func (f *EventFile) Load() error {
	fh, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer fh.Close()

	r := bufio.NewReader(fh)
	var hdr [12]byte // 8-byte length + 4-byte length CRC
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
		length := binary.LittleEndian.Uint64(hdr[:8])
		lenCRC := binary.LittleEndian.Uint32(hdr[8:])
		if maskCRC(crc32.Checksum(hdr[:8], crcTable)) != lenCRC {
			return fmt.Errorf("%w (record length)", errChecksum)
		}
		if length > 1<<30 {
			return fmt.Errorf("implausible record length %d", length)
		}
		payload := make([]byte, length+4)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil // partial trailing record
			}
			return err
		}
		data := payload[:length]
		dataCRC := binary.LittleEndian.Uint32(payload[length:])
		if maskCRC(crc32.Checksum(data, crcTable)) != dataCRC {
			return fmt.Errorf("%w (record payload)", errChecksum)
		}
		if err := f.consumeEvent(data); err != nil {
			return err
		}
	}
}

// Tags returns the scalar tag names in first-seen order.
func (f *EventFile) Tags() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Scalars returns all observations recorded for tag, in file order.
func (f *EventFile) Scalars(tag string) []ScalarEvent {
	return f.scalars[tag]
}

func (f *EventFile) add(tag string, ev ScalarEvent) {
	if _, seen := f.scalars[tag]; !seen {
		f.order = append(f.order, tag)
	}
	f.scalars[tag] = append(f.scalars[tag], ev)
}

// consumeEvent decodes one Event proto and appends any scalar summary values.
//
// Event: 1=wall_time (double), 2=step (int64), 5=summary (Summary).
func (f *EventFile) consumeEvent(b []byte) error {
	var wallTime float64
	var step int64
	var summary []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			wallTime = math.Float64frombits(v)
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			step = int64(v)
			b = b[n:]
		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			summary = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if summary == nil {
		return nil
	}
	return f.consumeSummary(summary, step, wallTime)
}

// Summary: repeated Value value = 1.
func (f *EventFile) consumeSummary(b []byte, step int64, wallTime float64) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			tag, val, ok, err := decodeSummaryValue(v)
			if err != nil {
				return err
			}
			if ok && tag != "" {
				f.add(tag, ScalarEvent{Step: step, Value: val, WallTime: wallTime})
			}
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

// Summary.Value: 1=tag, 2=simple_value (float), 8=tensor (TensorProto).
func decodeSummaryValue(b []byte) (tag string, val float64, ok bool, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", 0, false, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", 0, false, protowire.ParseError(n)
			}
			tag = v
			b = b[n:]
		case num == 2 && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return "", 0, false, protowire.ParseError(n)
			}
			val = float64(math.Float32frombits(v))
			ok = true
			b = b[n:]
		case num == 8 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", 0, false, protowire.ParseError(n)
			}
			b = b[n:]
			if tv, tok := decodeScalarTensor(v); tok {
				val = tv
				ok = true
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", 0, false, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return tag, val, ok, nil
}

// decodeScalarTensor extracts a single float/double from a TensorProto
// (4=tensor_content, 5=float_val, 6=double_val). Non-numeric or non-scalar
// tensors report !ok and are skipped by the caller.
func decodeScalarTensor(b []byte) (float64, bool) {
	var val float64
	var ok bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, false
		}
		b = b[n:]
		switch {
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, false
			}
			b = b[n:]
			switch len(v) {
			case 4:
				val = float64(math.Float32frombits(binary.LittleEndian.Uint32(v)))
				ok = true
			case 8:
				val = math.Float64frombits(binary.LittleEndian.Uint64(v))
				ok = true
			}
		case num == 5 && typ == protowire.BytesType: // packed float_val
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, false
			}
			b = b[n:]
			if len(v) >= 4 {
				val = float64(math.Float32frombits(binary.LittleEndian.Uint32(v[:4])))
				ok = true
			}
		case num == 5 && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return 0, false
			}
			b = b[n:]
			val = float64(math.Float32frombits(v))
			ok = true
		case num == 6 && typ == protowire.BytesType: // packed double_val
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, false
			}
			b = b[n:]
			if len(v) >= 8 {
				val = math.Float64frombits(binary.LittleEndian.Uint64(v[:8]))
				ok = true
			}
		case num == 6 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return 0, false
			}
			b = b[n:]
			val = math.Float64frombits(v)
			ok = true
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, false
			}
			b = b[n:]
		}
	}
	return val, ok
}
