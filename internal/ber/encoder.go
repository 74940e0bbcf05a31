package ber

import "errors"

var (
	ErrInvalidTagClass  = errors.New("ber: invalid tag class")
	ErrInvalidTagNumber = errors.New("ber: invalid tag number")
	ErrNegativeLength   = errors.New("ber: negative length not allowed")
	ErrLengthOverflow   = errors.New("ber: length value overflow")
)

// Encoder appends BER-encoded values to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an Encoder with the given initial capacity.
func NewEncoder(capacity int) *Encoder {
	if capacity <= 0 {
		capacity = 64
	}
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Reset clears the buffer for reuse.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// WriteTag writes an identifier octet. Tag numbers above 30 use the
// long-form base-128 encoding.
func (e *Encoder) WriteTag(class, constructed, number int) error {
	switch class {
	case ClassUniversal, ClassApplication, ClassContext, ClassPrivate:
	default:
		return ErrInvalidTagClass
	}
	if number < 0 {
		return ErrInvalidTagNumber
	}
	if number <= 30 {
		e.buf = append(e.buf, byte(class)|byte(constructed)|byte(number))
		return nil
	}
	e.buf = append(e.buf, byte(class)|byte(constructed)|0x1F)
	var tmp []byte
	for number > 0 {
		tmp = append(tmp, byte(number&0x7F))
		number >>= 7
	}
	for i := len(tmp) - 1; i >= 0; i-- {
		b := tmp[i]
		if i > 0 {
			b |= 0x80
		}
		e.buf = append(e.buf, b)
	}
	return nil
}

// WriteLength writes a length in minimal form: short form for 0-127, long
// form with a length-of-length octet and big-endian continuation octets
// otherwise.
func (e *Encoder) WriteLength(length int) error {
	if length < 0 {
		return ErrNegativeLength
	}
	if length <= MaxShortLength {
		e.buf = append(e.buf, byte(length))
		return nil
	}
	numBytes := 0
	for v := length; v > 0; v >>= 8 {
		numBytes++
	}
	if numBytes > 127 {
		return ErrLengthOverflow
	}
	e.buf = append(e.buf, byte(LengthLongForm|numBytes))
	for i := numBytes - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(length>>(i*8)))
	}
	return nil
}

// WriteBoolean writes a universal BOOLEAN (FALSE = 0x00, TRUE = 0xFF).
func (e *Encoder) WriteBoolean(v bool) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagBoolean); err != nil {
		return err
	}
	if err := e.WriteLength(1); err != nil {
		return err
	}
	if v {
		e.buf = append(e.buf, 0xFF)
	} else {
		e.buf = append(e.buf, 0x00)
	}
	return nil
}

// WriteInteger writes a universal INTEGER in minimal two's complement form.
func (e *Encoder) WriteInteger(v int64) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagInteger); err != nil {
		return err
	}
	enc := encodeInt(v)
	if err := e.WriteLength(len(enc)); err != nil {
		return err
	}
	e.buf = append(e.buf, enc...)
	return nil
}

// WriteEnumerated writes a universal ENUMERATED; content octets are the same
// as INTEGER.
func (e *Encoder) WriteEnumerated(v int64) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagEnumerated); err != nil {
		return err
	}
	enc := encodeInt(v)
	if err := e.WriteLength(len(enc)); err != nil {
		return err
	}
	e.buf = append(e.buf, enc...)
	return nil
}

// WriteOctetString writes a universal OCTET STRING.
func (e *Encoder) WriteOctetString(v []byte) error {
	if err := e.WriteTag(ClassUniversal, TypePrimitive, TagOctetString); err != nil {
		return err
	}
	if err := e.WriteLength(len(v)); err != nil {
		return err
	}
	e.buf = append(e.buf, v...)
	return nil
}

// WriteTagged writes a context-specific tagged value with the given content.
func (e *Encoder) WriteTagged(number int, constructed bool, content []byte) error {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	if err := e.WriteTag(ClassContext, flag, number); err != nil {
		return err
	}
	if err := e.WriteLength(len(content)); err != nil {
		return err
	}
	e.buf = append(e.buf, content...)
	return nil
}

// WriteRaw appends pre-encoded bytes verbatim.
func (e *Encoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

// Wrap returns tag+length+content for already-encoded content. It is the
// nesting primitive: inner structures are encoded first, then wrapped.
func Wrap(class, constructed, number int, content []byte) []byte {
	e := NewEncoder(len(content) + 8)
	// errors can only arise from invalid class/number, which callers pass
	// as constants
	_ = e.WriteTag(class, constructed, number)
	_ = e.WriteLength(len(content))
	e.buf = append(e.buf, content...)
	return e.buf
}

// WrapSequence wraps content in a universal constructed SEQUENCE.
func WrapSequence(content []byte) []byte {
	return Wrap(ClassUniversal, TypeConstructed, TagSequence, content)
}

func encodeInt(v int64) []byte {
	if v == 0 {
		return []byte{0x00}
	}
	n := 8
	// strip redundant leading octets: 0x00 before a clear sign bit,
	// 0xFF before a set sign bit
	for n > 1 {
		top := byte(v >> ((n - 1) * 8))
		next := byte(v >> ((n - 2) * 8))
		if (top == 0x00 && next&0x80 == 0) || (top == 0xFF && next&0x80 != 0) {
			n--
			continue
		}
		break
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(v >> ((n - 1 - i) * 8))
	}
	return out
}
