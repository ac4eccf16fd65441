// Package stream implements the typed value stream encoded inside tdata
// containers.
//
// Integers are big-endian. Byte arrays are length-prefixed with a
// big-endian uint32, where both 0 and 0xFFFFFFFF decode to an empty
// array. Strings are byte arrays holding UTF-16BE text. This is distinct
// from the little-endian framing of the outer file envelope; both
// endianness choices are load-bearing and live only here and in the
// envelope parser.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrShortRead is returned when a value extends past the end of the
	// stream.
	ErrShortRead = errors.New("unexpected end of stream")

	// ErrInvalidData is returned when a value decodes but its content is
	// malformed (e.g. ill-formed UTF-16).
	ErrInvalidData = errors.New("invalid data")

	// ErrExtraneousData is returned by ShouldBeDone when bytes remain.
	ErrExtraneousData = errors.New("extraneous data")
)

// nullBytesLen is the length prefix historically written for absent byte
// arrays. It decodes to empty, same as an explicit zero length.
const nullBytesLen = 0xFFFFFFFF

// Reader is a seekable typed view over a byte buffer. All read and skip
// operations advance the position by exactly the encoded size of the
// value; a failed read leaves the position where the failure occurred.
type Reader struct {
	buf []byte
	pos int
	log *slog.Logger
}

// New creates a Reader over buf. The Reader does not copy buf; callers
// hand over ownership.
func New(buf []byte) *Reader {
	return &Reader{buf: buf, log: slog.New(slog.DiscardHandler)}
}

// WithLogger attaches a logger used for format-quirk diagnostics and
// returns the same Reader.
func (r *Reader) WithLogger(log *slog.Logger) *Reader {
	if log != nil {
		r.log = log
	}
	return r
}

// Pos returns the current position in bytes from the start of the buffer.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// IsDone reports whether the position is at the end of the buffer.
func (r *Reader) IsDone() bool { return r.pos == len(r.buf) }

// ShouldBeDone returns ErrExtraneousData unless the stream is exhausted.
func (r *Reader) ShouldBeDone() error {
	if rem := r.Remaining(); rem != 0 {
		return fmt.Errorf("%w: %d bytes left", ErrExtraneousData, rem)
	}
	return nil
}

// ReadRaw returns the next n bytes verbatim.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRead, n, r.Remaining())
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadInt32 reads a big-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads a big-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadBytes reads a length-prefixed byte array. Length prefixes of 0 and
// 0xFFFFFFFF both decode to an empty (nil) array; the latter is a
// historical writer quirk and is logged when encountered.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == nullBytesLen {
		r.log.Debug("null-sentinel byte array length", "pos", r.pos-4)
		return nil, nil
	}
	if n == 0 {
		return nil, nil
	}
	return r.ReadRaw(int(n))
}

// SkipBytes advances past a length-prefixed byte array without retaining
// it.
func (r *Reader) SkipBytes() error {
	_, err := r.ReadBytes()
	return err
}

// ReadString reads a byte array and decodes it as UTF-16BE. Ill-formed
// sequences are a hard error: the stream would otherwise desynchronise
// silently on writer bugs.
func (r *Reader) ReadString() (string, error) {
	payload, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", nil
	}
	if len(payload)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 payload length %d", ErrInvalidData, len(payload))
	}
	dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := dec.Bytes(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	s := string(decoded)
	if strings.ContainsRune(s, '�') {
		return "", fmt.Errorf("%w: ill-formed UTF-16", ErrInvalidData)
	}
	return s, nil
}

// SkipString advances past a string value, still validating its encoding.
func (r *Reader) SkipString() error {
	_, err := r.ReadString()
	return err
}

// SkipUint16 advances past a uint16.
func (r *Reader) SkipUint16() error {
	_, err := r.ReadUint16()
	return err
}

// SkipUint32 advances past a uint32.
func (r *Reader) SkipUint32() error {
	_, err := r.ReadUint32()
	return err
}

// SkipUint64 advances past a uint64.
func (r *Reader) SkipUint64() error {
	_, err := r.ReadUint64()
	return err
}

// SkipInt32 advances past an int32.
func (r *Reader) SkipInt32() error {
	_, err := r.ReadInt32()
	return err
}

// SkipInt64 advances past an int64.
func (r *Reader) SkipInt64() error {
	_, err := r.ReadInt64()
	return err
}

// SkipUint64s advances past n consecutive uint64 values.
func (r *Reader) SkipUint64s(n int) error {
	for i := 0; i < n; i++ {
		if err := r.SkipUint64(); err != nil {
			return err
		}
	}
	return nil
}

// SkipInt32s advances past n consecutive int32 values.
func (r *Reader) SkipInt32s(n int) error {
	for i := 0; i < n; i++ {
		if err := r.SkipInt32(); err != nil {
			return err
		}
	}
	return nil
}

// ReadVecLen reads the big-endian uint32 length prefix of a vector.
func (r *Reader) ReadVecLen() (int, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SkipVec advances past a vector whose items are skipped by item.
func (r *Reader) SkipVec(item func(*Reader) error) error {
	n, err := r.ReadVecLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := item(r); err != nil {
			return err
		}
	}
	return nil
}
