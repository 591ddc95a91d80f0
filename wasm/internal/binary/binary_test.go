package binary

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(bytes.NewReader(data))

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	_, err := r.ReadByte()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytesTruncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}))
	_, err := r.ReadBytes(3)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestU32RoundTrip(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteU32(tt.value)
		if !bytes.Equal(w.Bytes(), tt.encoded) {
			t.Errorf("WriteU32(%d) = %x, want %x", tt.value, w.Bytes(), tt.encoded)
		}
		got, err := NewReader(bytes.NewReader(tt.encoded)).ReadU32()
		if err != nil {
			t.Errorf("ReadU32(%x): %v", tt.encoded, err)
			continue
		}
		if got != tt.value {
			t.Errorf("ReadU32(%x) = %d, want %d", tt.encoded, got, tt.value)
		}
	}
}

func TestS32Encoding(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x40}, -64},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, math.MinInt32},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteS32(tt.value)
		if !bytes.Equal(w.Bytes(), tt.encoded) {
			t.Errorf("WriteS32(%d) = %x, want %x", tt.value, w.Bytes(), tt.encoded)
		}
		got, err := NewReader(bytes.NewReader(tt.encoded)).ReadS32()
		if err != nil {
			t.Errorf("ReadS32(%x): %v", tt.encoded, err)
			continue
		}
		if got != tt.value {
			t.Errorf("ReadS32(%x) = %d, want %d", tt.encoded, got, tt.value)
		}
	}
}

func TestS64RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 1 << 40, math.MaxInt64, math.MinInt64}
	for _, v := range values {
		w := NewWriter()
		w.WriteS64(v)
		got, err := NewReader(bytes.NewReader(w.Bytes())).ReadS64()
		if err != nil {
			t.Fatalf("ReadS64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("S64 round trip: got %d, want %d", got, v)
		}
	}
}

func TestReadU32Overflow(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}))
	_, err := r.ReadU32()
	if !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteF32(1.5)
	w.WriteF64(-2.25)
	if w.Len() != 12 {
		t.Fatalf("expected 12 bytes, got %d", w.Len())
	}

	r := NewReader(bytes.NewReader(w.Bytes()))
	f32, err := r.ReadF32()
	if err != nil || f32 != 1.5 {
		t.Errorf("ReadF32 = %v, %v", f32, err)
	}
	f64, err := r.ReadF64()
	if err != nil || f64 != -2.25 {
		t.Errorf("ReadF64 = %v, %v", f64, err)
	}
}

func TestNameAndVec(t *testing.T) {
	w := NewWriter()
	w.WriteName("memory")
	w.WriteVec([]byte{0xAA, 0xBB})

	r := NewReader(bytes.NewReader(w.Bytes()))
	name, err := r.ReadName()
	if err != nil || name != "memory" {
		t.Fatalf("ReadName = %q, %v", name, err)
	}
	vec, err := r.ReadVec()
	if err != nil || !bytes.Equal(vec, []byte{0xAA, 0xBB}) {
		t.Fatalf("ReadVec = %x, %v", vec, err)
	}
}

func TestReadNameInvalidUTF8(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x02, 0xff, 0xfe}))
	if _, err := r.ReadName(); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestParseError(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01}))
	_, _ = r.ReadByte()
	inner := errors.New("boom")
	err := r.WrapError("code", inner)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 1 || pe.Section != "code" {
		t.Errorf("unexpected ParseError %+v", pe)
	}
	if !errors.Is(err, inner) {
		t.Error("ParseError should unwrap to the cause")
	}
	if got := err.Error(); got != "wasm: code at position 1: boom" {
		t.Errorf("Error() = %q", got)
	}
}
