// Package ber implements the subset of ASN.1 BER (ITU-T X.690) needed to
// speak the LDAP protocol as a client.
package ber

// Tag classes (bits 7-8 of the identifier octet).
const (
	ClassUniversal       = 0x00
	ClassApplication     = 0x40
	ClassContext         = 0x80
	ClassPrivate         = 0xC0
)

// Constructed flag (bit 6 of the identifier octet).
const (
	TypePrimitive   = 0x00
	TypeConstructed = 0x20
)

// Universal tag numbers.
const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagOctetString = 0x04
	TagNull        = 0x05
	TagEnumerated  = 0x0A
	TagSequence    = 0x10
	TagSet         = 0x11
)

// Length encoding.
const (
	// LengthLongForm marks a long-form length octet (bit 8 set).
	LengthLongForm = 0x80
	// MaxShortLength is the largest length encodable in short form.
	MaxShortLength = 127
)
