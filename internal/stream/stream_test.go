package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"unicode/utf16"
)

func TestReader_Integers(t *testing.T) {
	buf := []byte{
		0x00, 0x00, 0x00, 0x07, // i32 7
		0xFF, 0xFF, 0xFF, 0xFF, // i32 -1
		0x12, 0x34, // u16
		0xDE, 0xAD, 0xBE, 0xEF, // u32
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, // u64
	}
	r := New(buf)

	if v, err := r.ReadInt32(); err != nil || v != 7 {
		t.Errorf("ReadInt32() = %d, %v, want 7", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != -1 {
		t.Errorf("ReadInt32() = %d, %v, want -1", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x1234 {
		t.Errorf("ReadUint16() = %#x, %v, want 0x1234", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadUint32() = %#x, %v, want 0xDEADBEEF", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 0x0102030405060708 {
		t.Errorf("ReadUint64() = %#x, %v", v, err)
	}
	if !r.IsDone() {
		t.Error("IsDone() = false after reading everything")
	}
	if err := r.ShouldBeDone(); err != nil {
		t.Errorf("ShouldBeDone() = %v", err)
	}
}

func TestReader_PositionAdvance(t *testing.T) {
	// Each successful read advances by exactly the encoded size.
	buf := make([]byte, 64)
	r := New(buf)

	steps := []struct {
		read func() error
		size int
	}{
		{func() error { _, err := r.ReadUint16(); return err }, 2},
		{func() error { _, err := r.ReadUint32(); return err }, 4},
		{func() error { _, err := r.ReadUint64(); return err }, 8},
		{func() error { _, err := r.ReadInt32(); return err }, 4},
		{func() error { _, err := r.ReadInt64(); return err }, 8},
		{func() error { _, err := r.ReadBytes(); return err }, 4}, // zero length prefix
	}
	for i, step := range steps {
		before := r.Pos()
		if err := step.read(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := r.Pos() - before; got != step.size {
			t.Errorf("step %d advanced %d bytes, want %d", i, got, step.size)
		}
	}
}

func TestReader_ShortRead(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	if _, err := r.ReadUint32(); !errors.Is(err, ErrShortRead) {
		t.Errorf("ReadUint32() error = %v, want ErrShortRead", err)
	}
}

func TestReader_Bytes(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		want    []byte
		wantErr error
	}{
		{
			name: "normal",
			buf:  []byte{0x00, 0x00, 0x00, 0x03, 0xAA, 0xBB, 0xCC},
			want: []byte{0xAA, 0xBB, 0xCC},
		},
		{
			name: "zero length",
			buf:  []byte{0x00, 0x00, 0x00, 0x00},
			want: nil,
		},
		{
			name: "null sentinel",
			buf:  []byte{0xFF, 0xFF, 0xFF, 0xFF},
			want: nil,
		},
		{
			name:    "truncated payload",
			buf:     []byte{0x00, 0x00, 0x00, 0x08, 0x01},
			wantErr: ErrShortRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.buf)
			got, err := r.ReadBytes()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadBytes() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadBytes() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ReadBytes() = % x, want % x", got, tt.want)
			}
			if !r.IsDone() {
				t.Error("stream not exhausted")
			}
		})
	}
}

// encodeString builds the wire form of a string: u32 BE length, then
// UTF-16BE code units.
func encodeString(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 4+2*len(units))
	binary.BigEndian.PutUint32(out, uint32(2*len(units)))
	for i, u := range units {
		binary.BigEndian.PutUint16(out[4+2*i:], u)
	}
	return out
}

func TestReader_String(t *testing.T) {
	for _, want := range []string{"", "data", "héllo", "☃ snowman", "emoji 🚀"} {
		r := New(encodeString(want))
		got, err := r.ReadString()
		if err != nil {
			t.Errorf("ReadString(%q) error = %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("ReadString() = %q, want %q", got, want)
		}
	}
}

func TestReader_StringInvalid(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{
			name: "odd payload length",
			buf:  []byte{0x00, 0x00, 0x00, 0x03, 0x00, 0x61, 0x00},
		},
		{
			name: "unpaired high surrogate",
			buf:  []byte{0x00, 0x00, 0x00, 0x02, 0xD8, 0x00},
		},
		{
			name: "unpaired low surrogate",
			buf:  []byte{0x00, 0x00, 0x00, 0x04, 0xDC, 0x00, 0x00, 0x61},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.buf)
			if _, err := r.ReadString(); !errors.Is(err, ErrInvalidData) {
				t.Errorf("ReadString() error = %v, want ErrInvalidData", err)
			}
		})
	}
}

func TestReader_ShouldBeDone(t *testing.T) {
	r := New([]byte{0x00, 0x00, 0x00, 0x01, 0x00})
	if _, err := r.ReadUint32(); err != nil {
		t.Fatal(err)
	}
	err := r.ShouldBeDone()
	if !errors.Is(err, ErrExtraneousData) {
		t.Errorf("ShouldBeDone() error = %v, want ErrExtraneousData", err)
	}
}

func TestReader_SkipVec(t *testing.T) {
	// Vector of three (u64, u16) pairs followed by a marker.
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, 3)
	for i := 0; i < 3; i++ {
		buf = binary.BigEndian.AppendUint64(buf, uint64(i))
		buf = binary.BigEndian.AppendUint16(buf, uint16(i))
	}
	buf = binary.BigEndian.AppendUint32(buf, 0xCAFEBABE)

	r := New(buf)
	err := r.SkipVec(func(r *Reader) error {
		if err := r.SkipUint64(); err != nil {
			return err
		}
		return r.SkipUint16()
	})
	if err != nil {
		t.Fatalf("SkipVec() error = %v", err)
	}
	marker, err := r.ReadUint32()
	if err != nil || marker != 0xCAFEBABE {
		t.Errorf("marker after SkipVec = %#x, %v", marker, err)
	}
}
