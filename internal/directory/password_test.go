package directory

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/org/barrel/internal/ldap"
)

func TestChangePasswordCheckedSuccess(t *testing.T) {
	c, srv := newFakeClient(t)
	dn := srv.addUser("oli", "alt", nil)

	changed, err := c.ChangePasswordChecked(context.Background(), "oli", "alt", "neu")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected changed = true")
	}
	if len(srv.extended) != 1 {
		t.Fatalf("extended calls = %d", len(srv.extended))
	}
	call := srv.extended[0]
	if call.oid != ldap.PasswordModifyOID {
		t.Errorf("oid = %q", call.oid)
	}
	// userIdentity [0], oldPassword [1], newPassword [2]
	if !bytes.Contains(call.value, append([]byte{0x80, byte(len(dn))}, dn...)) {
		t.Error("request value lacks the user identity")
	}
	if !bytes.Contains(call.value, []byte{0x81, 0x03, 'a', 'l', 't'}) {
		t.Error("request value lacks the old password")
	}
	if !bytes.Contains(call.value, []byte{0x82, 0x03, 'n', 'e', 'u'}) {
		t.Error("request value lacks the new password")
	}
}

func TestChangePasswordCheckedRejected(t *testing.T) {
	// A rejected old password is a normal outcome, reported as
	// changed = false without an error.
	for _, code := range []int{ldap.ResultInvalidCredentials, ldap.ResultUnwillingToPerform} {
		c, srv := newFakeClient(t)
		srv.addUser("oli", "alt", nil)
		srv.extendedErr = &ldap.ResultError{Code: code}

		changed, err := c.ChangePasswordChecked(context.Background(), "oli", "falsch", "neu")
		if err != nil {
			t.Errorf("result code %d: unexpected error %v", code, err)
		}
		if changed {
			t.Errorf("result code %d: expected changed = false", code)
		}
	}
}

func TestChangePasswordCheckedExtensionUnsupported(t *testing.T) {
	c, srv := newFakeClient(t)
	srv.addUser("oli", "alt", nil)
	srv.extendedErr = &ldap.ResultError{Code: ldap.ResultProtocolError}

	_, err := c.ChangePasswordChecked(context.Background(), "oli", "alt", "neu")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected extension-unsupported error, got %v", err)
	}
}

func TestChangePasswordCheckedUnknownUser(t *testing.T) {
	c, _ := newFakeClient(t)

	if _, err := c.ChangePasswordChecked(context.Background(), "ghost", "alt", "neu"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
}

func TestChangePasswordUncheckedOmitsOldPassword(t *testing.T) {
	c, srv := newFakeClient(t)
	srv.addUser("oli", "alt", nil)

	if err := c.ChangePasswordUnchecked(context.Background(), "oli", "neu"); err != nil {
		t.Fatal(err)
	}
	if len(srv.extended) != 1 {
		t.Fatalf("extended calls = %d", len(srv.extended))
	}
	value := srv.extended[0].value
	if !bytes.Contains(value, []byte{0x82, 0x03, 'n', 'e', 'u'}) {
		t.Error("request value lacks the new password")
	}
	// no oldPassword tag anywhere in the payload
	if bytes.Contains(value, []byte{0x81, 0x03}) {
		t.Error("administrative change must not carry an old password")
	}
}

func TestChangePasswordUncheckedUnknownUser(t *testing.T) {
	c, srv := newFakeClient(t)

	err := c.ChangePasswordUnchecked(context.Background(), "ghost", "neu")
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
	if len(srv.extended) != 0 {
		t.Error("no password modify may be sent for an unknown user")
	}
}

func TestChangePasswordUncheckedDirectoryRefusal(t *testing.T) {
	c, srv := newFakeClient(t)
	srv.addUser("oli", "alt", nil)
	srv.extendedErr = &ldap.ResultError{Code: ldap.ResultInsufficientAccessRights}

	err := c.ChangePasswordUnchecked(context.Background(), "oli", "neu")
	if !ldap.IsResultCode(err, ldap.ResultInsufficientAccessRights) {
		t.Errorf("expected wrapped result error, got %v", err)
	}
}
