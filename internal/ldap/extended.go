package ldap

import (
	"fmt"

	"github.com/org/barrel/internal/ber"
)

// EncodeExtendedRequest builds an ExtendedRequest protocol op:
//
//	ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
//	     requestName  [0] LDAPOID,
//	     requestValue [1] OCTET STRING OPTIONAL }
func EncodeExtendedRequest(oid string, value []byte) ([]byte, error) {
	e := ber.NewEncoder(len(oid) + len(value) + 16)
	if err := e.WriteTagged(extendedRequestName, false, []byte(oid)); err != nil {
		return nil, err
	}
	if value != nil {
		if err := e.WriteTagged(extendedRequestValue, false, value); err != nil {
			return nil, err
		}
	}
	return ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationExtendedRequest, e.Bytes()), nil
}

// Extended performs an extended operation. The response payload is opaque to
// this client; only the result code matters.
func (c *Conn) Extended(oid string, value []byte) error {
	op, err := EncodeExtendedRequest(oid, value)
	if err != nil {
		return fmt.Errorf("ldap: encoding extended request: %w", err)
	}
	return c.exchange(op, func(appTag int, body *ber.Decoder) (bool, error) {
		if appTag != ApplicationExtendedResponse {
			return false, fmt.Errorf("ldap: unexpected response op %d to extended request", appTag)
		}
		return true, readResult(body)
	})
}
