package ldap

import (
	"errors"
	"fmt"

	"github.com/org/barrel/internal/ber"
)

// Result codes (RFC 4511 section 4.1.9) observed by this client.
const (
	ResultSuccess                  = 0
	ResultProtocolError            = 2
	ResultNoSuchObject             = 32
	ResultInvalidCredentials       = 49
	ResultInsufficientAccessRights = 50
	ResultUnwillingToPerform       = 53
)

var resultNames = map[int]string{
	ResultSuccess:                  "success",
	ResultProtocolError:            "protocolError",
	ResultNoSuchObject:             "noSuchObject",
	ResultInvalidCredentials:       "invalidCredentials",
	ResultInsufficientAccessRights: "insufficientAccessRights",
	ResultUnwillingToPerform:       "unwillingToPerform",
}

// ResultError is a non-success LDAPResult returned by the server.
type ResultError struct {
	Code       int
	MatchedDN  string
	Diagnostic string
}

func (e *ResultError) Error() string {
	name, ok := resultNames[e.Code]
	if !ok {
		name = "resultCode " + fmt.Sprint(e.Code)
	}
	if e.Diagnostic != "" {
		return fmt.Sprintf("ldap: %s: %s", name, e.Diagnostic)
	}
	return "ldap: " + name
}

// IsResultCode reports whether err is a ResultError with the given code.
func IsResultCode(err error, code int) bool {
	var re *ResultError
	return errors.As(err, &re) && re.Code == code
}

// readResult parses the common LDAPResult prefix (resultCode, matchedDN,
// diagnosticMessage) and returns nil on success.
func readResult(d *ber.Decoder) error {
	code, err := d.ReadEnumerated()
	if err != nil {
		return fmt.Errorf("ldap: reading result code: %w", err)
	}
	matched, err := d.ReadOctetString()
	if err != nil {
		return fmt.Errorf("ldap: reading matched DN: %w", err)
	}
	diag, err := d.ReadOctetString()
	if err != nil {
		return fmt.Errorf("ldap: reading diagnostic message: %w", err)
	}
	if code != ResultSuccess {
		return &ResultError{Code: int(code), MatchedDN: string(matched), Diagnostic: string(diag)}
	}
	return nil
}
