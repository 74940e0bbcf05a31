package ldap

import (
	"errors"

	"github.com/org/barrel/internal/ber"
)

// PasswordModifyOID identifies the RFC 3062 Password Modify extended
// operation.
const PasswordModifyOID = "1.3.6.1.4.1.4203.1.11.1"

// Context tags of PasswdModifyRequestValue fields.
const (
	passwordModifyUserIdentity = 0
	passwordModifyOldPassword  = 1
	passwordModifyNewPassword  = 2
)

var ErrEmptyNewPassword = errors.New("ldap: new password must not be empty")

// PasswordModifyRequest is an RFC 3062 PasswdModifyRequestValue:
//
//	PasswdModifyRequestValue ::= SEQUENCE {
//	     userIdentity [0] OCTET STRING OPTIONAL,
//	     oldPasswd    [1] OCTET STRING OPTIONAL,
//	     newPasswd    [2] OCTET STRING OPTIONAL }
//
// A nil OldPassword omits the field entirely, which requests an
// administrative (unchecked) change.
type PasswordModifyRequest struct {
	UserIdentity string
	OldPassword  []byte
	NewPassword  []byte
}

// Encode returns the BER octets of the request value.
func (r *PasswordModifyRequest) Encode() ([]byte, error) {
	if len(r.NewPassword) == 0 {
		return nil, ErrEmptyNewPassword
	}
	e := ber.NewEncoder(len(r.UserIdentity) + len(r.OldPassword) + len(r.NewPassword) + 16)
	if err := e.WriteTagged(passwordModifyUserIdentity, false, []byte(r.UserIdentity)); err != nil {
		return nil, err
	}
	if r.OldPassword != nil {
		if err := e.WriteTagged(passwordModifyOldPassword, false, r.OldPassword); err != nil {
			return nil, err
		}
	}
	if err := e.WriteTagged(passwordModifyNewPassword, false, r.NewPassword); err != nil {
		return nil, err
	}
	return ber.WrapSequence(e.Bytes()), nil
}

// PasswordModify submits an RFC 3062 password change on this connection.
func (c *Conn) PasswordModify(req *PasswordModifyRequest) error {
	value, err := req.Encode()
	if err != nil {
		return err
	}
	return c.Extended(PasswordModifyOID, value)
}
