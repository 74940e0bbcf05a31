package directory

import (
	"context"
	"fmt"

	"github.com/org/barrel/internal/ldap"
	"github.com/rs/zerolog/log"
)

// ChangePasswordChecked submits an RFC 3062 password modify carrying the old
// password, letting the directory verify it. Returns false without error
// when the directory rejects the old password; that is a normal outcome,
// not a fault. Returns ErrUnknownUser when the username does not resolve.
func (c *Client) ChangePasswordChecked(ctx context.Context, username, oldPassword, newPassword string) (bool, error) {
	dn, err := c.ResolveDN(ctx, username)
	if err != nil {
		return false, err
	}
	err = c.passwordModify(ctx, &ldap.PasswordModifyRequest{
		UserIdentity: dn,
		OldPassword:  []byte(oldPassword),
		NewPassword:  []byte(newPassword),
	})
	switch {
	case err == nil:
		return true, nil
	case ldap.IsResultCode(err, ldap.ResultInvalidCredentials),
		ldap.IsResultCode(err, ldap.ResultUnwillingToPerform):
		log.Info().Str("username", username).Msg("password change rejected by directory")
		return false, nil
	case ldap.IsResultCode(err, ldap.ResultProtocolError):
		// the server does not implement the extension at all; a
		// deployment problem, not a wrong password
		return false, fmt.Errorf("directory: password modify extension unsupported by server: %w", err)
	default:
		return false, fmt.Errorf("directory: password modify for %q: %w", username, err)
	}
}

// ChangePasswordUnchecked submits a password modify without the old
// password, the administrative override. Returns ErrUnknownUser when the
// username does not resolve.
func (c *Client) ChangePasswordUnchecked(ctx context.Context, username, newPassword string) error {
	dn, err := c.ResolveDN(ctx, username)
	if err != nil {
		return err
	}
	err = c.passwordModify(ctx, &ldap.PasswordModifyRequest{
		UserIdentity: dn,
		NewPassword:  []byte(newPassword),
	})
	if err != nil {
		return fmt.Errorf("directory: password modify for %q: %w", username, err)
	}
	log.Info().Str("username", username).Msg("password changed")
	return nil
}

func (c *Client) passwordModify(ctx context.Context, req *ldap.PasswordModifyRequest) error {
	value, err := req.Encode()
	if err != nil {
		return err
	}
	return c.withService(ctx, func(conn Conn) error {
		return conn.Extended(ldap.PasswordModifyOID, value)
	})
}
