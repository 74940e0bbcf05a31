package ber

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated     = errors.New("ber: truncated element")
	ErrUnexpectedTag = errors.New("ber: unexpected tag")
	ErrBadLength     = errors.New("ber: invalid length encoding")
)

// Decoder reads BER elements from a byte slice.
type Decoder struct {
	data []byte
	off  int
}

// NewDecoder creates a Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Offset returns the current read position.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.data) - d.off }

// ReadTag reads an identifier octet, including long-form tag numbers.
func (d *Decoder) ReadTag() (class, constructed, number int, err error) {
	if d.Remaining() < 1 {
		return 0, 0, 0, ErrTruncated
	}
	b := d.data[d.off]
	d.off++
	class = int(b & 0xC0)
	constructed = int(b & 0x20)
	number = int(b & 0x1F)
	if number != 0x1F {
		return class, constructed, number, nil
	}
	number = 0
	for {
		if d.Remaining() < 1 {
			return 0, 0, 0, ErrTruncated
		}
		c := d.data[d.off]
		d.off++
		number = number<<7 | int(c&0x7F)
		if c&0x80 == 0 {
			return class, constructed, number, nil
		}
		if number > 1<<24 {
			return 0, 0, 0, fmt.Errorf("%w: tag number too large", ErrBadLength)
		}
	}
}

// PeekTag reads the next identifier octet without consuming it.
func (d *Decoder) PeekTag() (class, constructed, number int, err error) {
	save := d.off
	class, constructed, number, err = d.ReadTag()
	d.off = save
	return
}

// ReadLength reads a length octet sequence (short or long form).
func (d *Decoder) ReadLength() (int, error) {
	if d.Remaining() < 1 {
		return 0, ErrTruncated
	}
	b := d.data[d.off]
	d.off++
	if b&LengthLongForm == 0 {
		if int(b) > d.Remaining() {
			return 0, ErrTruncated
		}
		return int(b), nil
	}
	numBytes := int(b & 0x7F)
	if numBytes == 0 {
		// indefinite lengths are not used by LDAP
		return 0, fmt.Errorf("%w: indefinite length", ErrBadLength)
	}
	if numBytes > 4 {
		return 0, fmt.Errorf("%w: %d length octets", ErrBadLength, numBytes)
	}
	if d.Remaining() < numBytes {
		return 0, ErrTruncated
	}
	length := 0
	for i := 0; i < numBytes; i++ {
		length = length<<8 | int(d.data[d.off])
		d.off++
	}
	if length > d.Remaining() {
		return 0, ErrTruncated
	}
	return length, nil
}

func (d *Decoder) readContent(length int) ([]byte, error) {
	if d.Remaining() < length {
		return nil, ErrTruncated
	}
	v := d.data[d.off : d.off+length]
	d.off += length
	return v, nil
}

func (d *Decoder) expect(class, constructed, number int) (int, error) {
	c, f, n, err := d.ReadTag()
	if err != nil {
		return 0, err
	}
	if c != class || f != constructed || n != number {
		return 0, fmt.Errorf("%w: got class=%#x constructed=%#x number=%#x",
			ErrUnexpectedTag, c, f, n)
	}
	return d.ReadLength()
}

// ReadBoolean reads a universal BOOLEAN.
func (d *Decoder) ReadBoolean() (bool, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagBoolean)
	if err != nil {
		return false, err
	}
	if length != 1 {
		return false, fmt.Errorf("%w: boolean length %d", ErrBadLength, length)
	}
	v, err := d.readContent(1)
	if err != nil {
		return false, err
	}
	return v[0] != 0, nil
}

// ReadInteger reads a universal INTEGER.
func (d *Decoder) ReadInteger() (int64, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagInteger)
	if err != nil {
		return 0, err
	}
	return d.readInt(length)
}

// ReadEnumerated reads a universal ENUMERATED.
func (d *Decoder) ReadEnumerated() (int64, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagEnumerated)
	if err != nil {
		return 0, err
	}
	return d.readInt(length)
}

func (d *Decoder) readInt(length int) (int64, error) {
	if length == 0 || length > 8 {
		return 0, fmt.Errorf("%w: integer length %d", ErrBadLength, length)
	}
	content, err := d.readContent(length)
	if err != nil {
		return 0, err
	}
	v := int64(0)
	if content[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range content {
		v = v<<8 | int64(b)
	}
	return v, nil
}

// ReadOctetString reads a universal OCTET STRING.
func (d *Decoder) ReadOctetString() ([]byte, error) {
	length, err := d.expect(ClassUniversal, TypePrimitive, TagOctetString)
	if err != nil {
		return nil, err
	}
	return d.readContent(length)
}

// ExpectSequence consumes a constructed SEQUENCE header and returns its
// content length.
func (d *Decoder) ExpectSequence() (int, error) {
	return d.expect(ClassUniversal, TypeConstructed, TagSequence)
}

// ExpectSet consumes a constructed SET header and returns its content length.
func (d *Decoder) ExpectSet() (int, error) {
	return d.expect(ClassUniversal, TypeConstructed, TagSet)
}

// ReadSequence consumes a SEQUENCE and returns a sub-decoder over its
// contents.
func (d *Decoder) ReadSequence() (*Decoder, error) {
	length, err := d.ExpectSequence()
	if err != nil {
		return nil, err
	}
	content, err := d.readContent(length)
	if err != nil {
		return nil, err
	}
	return NewDecoder(content), nil
}

// ReadSet consumes a SET and returns a sub-decoder over its contents.
func (d *Decoder) ReadSet() (*Decoder, error) {
	length, err := d.ExpectSet()
	if err != nil {
		return nil, err
	}
	content, err := d.readContent(length)
	if err != nil {
		return nil, err
	}
	return NewDecoder(content), nil
}

// ReadTagged reads any context-specific tagged element and returns its tag
// number and raw content.
func (d *Decoder) ReadTagged() (number int, constructed bool, content []byte, err error) {
	c, f, n, err := d.ReadTag()
	if err != nil {
		return 0, false, nil, err
	}
	if c != ClassContext {
		return 0, false, nil, fmt.Errorf("%w: expected context class, got %#x", ErrUnexpectedTag, c)
	}
	length, err := d.ReadLength()
	if err != nil {
		return 0, false, nil, err
	}
	v, err := d.readContent(length)
	if err != nil {
		return 0, false, nil, err
	}
	return n, f == TypeConstructed, v, nil
}

// ReadApplication reads an application-class element with the expected tag
// number and returns a sub-decoder over its contents.
func (d *Decoder) ReadApplication(number int) (*Decoder, error) {
	length, err := d.expect(ClassApplication, TypeConstructed, number)
	if err != nil {
		return nil, err
	}
	content, err := d.readContent(length)
	if err != nil {
		return nil, err
	}
	return NewDecoder(content), nil
}

// Skip consumes one complete element of any type.
func (d *Decoder) Skip() error {
	if _, _, _, err := d.ReadTag(); err != nil {
		return err
	}
	length, err := d.ReadLength()
	if err != nil {
		return err
	}
	_, err = d.readContent(length)
	return err
}
