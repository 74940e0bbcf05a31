package ldap

import (
	"fmt"

	"github.com/org/barrel/internal/ber"
)

// EncodeBindRequest builds the body of a simple BindRequest.
//
//	BindRequest ::= [APPLICATION 0] SEQUENCE {
//	     version        INTEGER (1 .. 127),
//	     name           LDAPDN,
//	     authentication AuthenticationChoice }
//	AuthenticationChoice ::= CHOICE { simple [0] OCTET STRING, ... }
func EncodeBindRequest(dn, password string) ([]byte, error) {
	e := ber.NewEncoder(len(dn) + len(password) + 16)
	if err := e.WriteInteger(protocolVersion); err != nil {
		return nil, err
	}
	if err := e.WriteOctetString([]byte(dn)); err != nil {
		return nil, err
	}
	if err := e.WriteTagged(bindAuthSimple, false, []byte(password)); err != nil {
		return nil, err
	}
	return ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationBindRequest, e.Bytes()), nil
}

// Bind performs a simple bind. A non-success result, including
// invalidCredentials, is returned as a *ResultError.
func (c *Conn) Bind(dn, password string) error {
	op, err := EncodeBindRequest(dn, password)
	if err != nil {
		return fmt.Errorf("ldap: encoding bind request: %w", err)
	}
	return c.exchange(op, func(appTag int, body *ber.Decoder) (bool, error) {
		if appTag != ApplicationBindResponse {
			return false, fmt.Errorf("ldap: unexpected response op %d to bind", appTag)
		}
		return true, readResult(body)
	})
}
