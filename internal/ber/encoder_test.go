package ber

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteLengthShortForm(t *testing.T) {
	cases := []struct {
		length int
		want   []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{42, []byte{0x2A}},
		{127, []byte{0x7F}},
	}
	for _, tc := range cases {
		e := NewEncoder(8)
		if err := e.WriteLength(tc.length); err != nil {
			t.Fatalf("WriteLength(%d): %v", tc.length, err)
		}
		if !bytes.Equal(e.Bytes(), tc.want) {
			t.Errorf("WriteLength(%d) = %x, want %x", tc.length, e.Bytes(), tc.want)
		}
	}
}

func TestWriteLengthLongForm(t *testing.T) {
	cases := []struct {
		length int
		want   []byte
	}{
		{128, []byte{0x81, 0x80}},
		{255, []byte{0x81, 0xFF}},
		{256, []byte{0x82, 0x01, 0x00}},
		{65536, []byte{0x83, 0x01, 0x00, 0x00}},
	}
	for _, tc := range cases {
		e := NewEncoder(8)
		if err := e.WriteLength(tc.length); err != nil {
			t.Fatalf("WriteLength(%d): %v", tc.length, err)
		}
		if !bytes.Equal(e.Bytes(), tc.want) {
			t.Errorf("WriteLength(%d) = %x, want %x", tc.length, e.Bytes(), tc.want)
		}
	}
}

func TestWriteLengthNegative(t *testing.T) {
	e := NewEncoder(8)
	if err := e.WriteLength(-1); !errors.Is(err, ErrNegativeLength) {
		t.Errorf("expected ErrNegativeLength, got %v", err)
	}
}

func TestOctetStringBoundary(t *testing.T) {
	// 127 content octets stay in short form, 128 switch to long form.
	e := NewEncoder(256)
	if err := e.WriteOctetString(bytes.Repeat([]byte{'a'}, 127)); err != nil {
		t.Fatal(err)
	}
	if got := e.Bytes()[:2]; !bytes.Equal(got, []byte{0x04, 0x7F}) {
		t.Errorf("127-byte header = %x, want 047f", got)
	}

	e.Reset()
	if err := e.WriteOctetString(bytes.Repeat([]byte{'a'}, 128)); err != nil {
		t.Fatal(err)
	}
	if got := e.Bytes()[:3]; !bytes.Equal(got, []byte{0x04, 0x81, 0x80}) {
		t.Errorf("128-byte header = %x, want 048180", got)
	}
}

func TestWriteInteger(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x02, 0x01, 0x00}},
		{3, []byte{0x02, 0x01, 0x03}},
		{127, []byte{0x02, 0x01, 0x7F}},
		{128, []byte{0x02, 0x02, 0x00, 0x80}},
		{256, []byte{0x02, 0x02, 0x01, 0x00}},
		{-1, []byte{0x02, 0x01, 0xFF}},
		{-128, []byte{0x02, 0x01, 0x80}},
		{-129, []byte{0x02, 0x02, 0xFF, 0x7F}},
	}
	for _, tc := range cases {
		e := NewEncoder(16)
		if err := e.WriteInteger(tc.v); err != nil {
			t.Fatalf("WriteInteger(%d): %v", tc.v, err)
		}
		if !bytes.Equal(e.Bytes(), tc.want) {
			t.Errorf("WriteInteger(%d) = %x, want %x", tc.v, e.Bytes(), tc.want)
		}
	}
}

func TestWriteBoolean(t *testing.T) {
	e := NewEncoder(8)
	if err := e.WriteBoolean(true); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteBoolean(false); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x01, 0xFF, 0x01, 0x01, 0x00}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("booleans = %x, want %x", e.Bytes(), want)
	}
}

func TestWriteTagLongForm(t *testing.T) {
	e := NewEncoder(8)
	if err := e.WriteTag(ClassContext, TypePrimitive, 42); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x9F, 0x2A}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("tag 42 = %x, want %x", e.Bytes(), want)
	}
}

func TestWriteTagInvalid(t *testing.T) {
	e := NewEncoder(8)
	if err := e.WriteTag(0x55, TypePrimitive, 1); !errors.Is(err, ErrInvalidTagClass) {
		t.Errorf("expected ErrInvalidTagClass, got %v", err)
	}
	if err := e.WriteTag(ClassUniversal, TypePrimitive, -1); !errors.Is(err, ErrInvalidTagNumber) {
		t.Errorf("expected ErrInvalidTagNumber, got %v", err)
	}
}

func TestWrapSequence(t *testing.T) {
	inner := NewEncoder(16)
	if err := inner.WriteInteger(3); err != nil {
		t.Fatal(err)
	}
	out := WrapSequence(inner.Bytes())
	want := []byte{0x30, 0x03, 0x02, 0x01, 0x03}
	if !bytes.Equal(out, want) {
		t.Errorf("WrapSequence = %x, want %x", out, want)
	}
}

func TestRoundTrip(t *testing.T) {
	e := NewEncoder(64)
	if err := e.WriteInteger(1234); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteOctetString([]byte("cn=admin")); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteBoolean(true); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteEnumerated(49); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(WrapSequence(e.Bytes()))
	seq, err := d.ReadSequence()
	if err != nil {
		t.Fatal(err)
	}
	if v, err := seq.ReadInteger(); err != nil || v != 1234 {
		t.Errorf("ReadInteger = %d, %v", v, err)
	}
	if s, err := seq.ReadOctetString(); err != nil || string(s) != "cn=admin" {
		t.Errorf("ReadOctetString = %q, %v", s, err)
	}
	if b, err := seq.ReadBoolean(); err != nil || !b {
		t.Errorf("ReadBoolean = %v, %v", b, err)
	}
	if v, err := seq.ReadEnumerated(); err != nil || v != 49 {
		t.Errorf("ReadEnumerated = %d, %v", v, err)
	}
	if seq.Remaining() != 0 {
		t.Errorf("expected empty sequence, %d bytes left", seq.Remaining())
	}
}

func TestNegativeIntegerRoundTrip(t *testing.T) {
	for _, v := range []int64{-1, -128, -129, -70000} {
		e := NewEncoder(16)
		if err := e.WriteInteger(v); err != nil {
			t.Fatal(err)
		}
		got, err := NewDecoder(e.Bytes()).ReadInteger()
		if err != nil {
			t.Fatalf("decoding %d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d = %d", v, got)
		}
	}
}
