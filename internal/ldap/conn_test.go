package ldap

import (
	"bufio"
	"errors"
	"net"
	"testing"

	"github.com/org/barrel/internal/ber"
)

func resultBytes(t *testing.T, code int, matched, diag string) []byte {
	t.Helper()
	e := ber.NewEncoder(32)
	if err := e.WriteEnumerated(int64(code)); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteOctetString([]byte(matched)); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteOctetString([]byte(diag)); err != nil {
		t.Fatal(err)
	}
	return e.Bytes()
}

// serve reads one message off nc and answers with the given protocol ops,
// echoing the request's message ID.
func serve(t *testing.T, nc net.Conn, ops ...[]byte) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		br := bufio.NewReader(nc)
		raw, err := readElement(br)
		if err != nil {
			done <- err
			return
		}
		msg, err := ber.NewDecoder(raw).ReadSequence()
		if err != nil {
			done <- err
			return
		}
		id, err := msg.ReadInteger()
		if err != nil {
			done <- err
			return
		}
		for _, op := range ops {
			if _, err := nc.Write(envelope(id, op)); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	return done
}

func TestBindSuccess(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn(client)
	done := serve(t, server,
		ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationBindResponse,
			resultBytes(t, ResultSuccess, "", "")))

	if err := c.Bind("cn=admin,dc=example", "geheim"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestBindInvalidCredentials(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn(client)
	serve(t, server,
		ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationBindResponse,
			resultBytes(t, ResultInvalidCredentials, "", "invalid credentials")))

	err := c.Bind("cn=admin,dc=example", "falsch")
	if !IsResultCode(err, ResultInvalidCredentials) {
		t.Fatalf("expected invalidCredentials, got %v", err)
	}
}

func TestSearchCollectsEntries(t *testing.T) {
	// SearchResultEntry for uid=oli followed by a success done.
	attrVals := ber.Wrap(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet,
		mustOctetString(t, "oli"))
	attrE := ber.NewEncoder(32)
	if err := attrE.WriteOctetString([]byte("uid")); err != nil {
		t.Fatal(err)
	}
	attrE.WriteRaw(attrVals)
	attrs := ber.WrapSequence(ber.WrapSequence(attrE.Bytes()))

	entryE := ber.NewEncoder(64)
	if err := entryE.WriteOctetString([]byte("uid=oli,ou=Mitglieder")); err != nil {
		t.Fatal(err)
	}
	entryE.WriteRaw(attrs)

	client, server := net.Pipe()
	c := NewConn(client)
	serve(t, server,
		ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchResultEntry, entryE.Bytes()),
		ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchResultDone,
			resultBytes(t, ResultSuccess, "", "")))

	entries, err := c.Search(SearchRequest{
		BaseDN: "ou=Mitglieder",
		Scope:  ScopeSingleLevel,
		Filter: EqualityFilter{Attribute: "uid", Value: "oli"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].DN != "uid=oli,ou=Mitglieder" {
		t.Errorf("DN = %q", entries[0].DN)
	}
	if entries[0].Attr("uid") != "oli" {
		t.Errorf("uid = %q", entries[0].Attr("uid"))
	}
}

func TestSearchNoSuchObject(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn(client)
	serve(t, server,
		ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchResultDone,
			resultBytes(t, ResultNoSuchObject, "ou=Mitglieder", "no such object")))

	_, err := c.Search(SearchRequest{BaseDN: "ou=Nirgendwo"})
	if !IsResultCode(err, ResultNoSuchObject) {
		t.Fatalf("expected noSuchObject, got %v", err)
	}
}

func TestExtendedReturnsResultError(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn(client)
	serve(t, server,
		ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationExtendedResponse,
			resultBytes(t, ResultUnwillingToPerform, "", "password policy")))

	err := c.Extended(PasswordModifyOID, []byte{0x30, 0x00})
	if !IsResultCode(err, ResultUnwillingToPerform) {
		t.Fatalf("expected unwillingToPerform, got %v", err)
	}
	var re *ResultError
	if !errors.As(err, &re) || re.Diagnostic != "password policy" {
		t.Errorf("diagnostic not carried: %v", err)
	}
}

func TestStaleMessageIDSkipped(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn(client)

	done := make(chan error, 1)
	go func() {
		br := bufio.NewReader(server)
		raw, err := readElement(br)
		if err != nil {
			done <- err
			return
		}
		msg, err := ber.NewDecoder(raw).ReadSequence()
		if err != nil {
			done <- err
			return
		}
		id, err := msg.ReadInteger()
		if err != nil {
			done <- err
			return
		}
		resp := ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationBindResponse,
			resultBytes(t, ResultSuccess, "", ""))
		// a leftover response from an earlier exchange arrives first
		if _, err := server.Write(envelope(id+100, resp)); err != nil {
			done <- err
			return
		}
		_, err = server.Write(envelope(id, resp))
		done <- err
	}()

	if err := c.Bind("cn=admin,dc=example", "geheim"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func mustOctetString(t *testing.T, s string) []byte {
	t.Helper()
	e := ber.NewEncoder(len(s) + 4)
	if err := e.WriteOctetString([]byte(s)); err != nil {
		t.Fatal(err)
	}
	return e.Bytes()
}
