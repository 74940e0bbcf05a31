package ber

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadLengthLongForm(t *testing.T) {
	d := NewDecoder(append([]byte{0x81, 0x80}, make([]byte, 128)...))
	length, err := d.ReadLength()
	if err != nil {
		t.Fatal(err)
	}
	if length != 128 {
		t.Errorf("length = %d, want 128", length)
	}
}

func TestReadLengthIndefiniteRejected(t *testing.T) {
	d := NewDecoder([]byte{0x80, 0x00, 0x00})
	if _, err := d.ReadLength(); !errors.Is(err, ErrBadLength) {
		t.Errorf("expected ErrBadLength for indefinite length, got %v", err)
	}
}

func TestReadLengthTruncated(t *testing.T) {
	// claims 5 content octets, only 2 present
	d := NewDecoder([]byte{0x05, 0xAA, 0xBB})
	if _, err := d.ReadLength(); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestUnexpectedTag(t *testing.T) {
	e := NewEncoder(8)
	if err := e.WriteBoolean(true); err != nil {
		t.Fatal(err)
	}
	d := NewDecoder(e.Bytes())
	if _, err := d.ReadInteger(); !errors.Is(err, ErrUnexpectedTag) {
		t.Errorf("expected ErrUnexpectedTag, got %v", err)
	}
}

func TestReadTagged(t *testing.T) {
	e := NewEncoder(16)
	if err := e.WriteTagged(2, false, []byte("geheim")); err != nil {
		t.Fatal(err)
	}
	number, constructed, content, err := NewDecoder(e.Bytes()).ReadTagged()
	if err != nil {
		t.Fatal(err)
	}
	if number != 2 || constructed || !bytes.Equal(content, []byte("geheim")) {
		t.Errorf("ReadTagged = (%d, %v, %q)", number, constructed, content)
	}
}

func TestSkip(t *testing.T) {
	e := NewEncoder(32)
	if err := e.WriteOctetString([]byte("ignored")); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteInteger(7); err != nil {
		t.Fatal(err)
	}
	d := NewDecoder(e.Bytes())
	if err := d.Skip(); err != nil {
		t.Fatal(err)
	}
	if v, err := d.ReadInteger(); err != nil || v != 7 {
		t.Errorf("after Skip: %d, %v", v, err)
	}
}

func TestPeekTagDoesNotConsume(t *testing.T) {
	e := NewEncoder(8)
	if err := e.WriteInteger(1); err != nil {
		t.Fatal(err)
	}
	d := NewDecoder(e.Bytes())
	_, _, number, err := d.PeekTag()
	if err != nil || number != TagInteger {
		t.Fatalf("PeekTag = %d, %v", number, err)
	}
	if v, err := d.ReadInteger(); err != nil || v != 1 {
		t.Errorf("ReadInteger after peek = %d, %v", v, err)
	}
}
