package ldap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/org/barrel/internal/ber"
)

func TestPasswordModifyEncodeExactBytes(t *testing.T) {
	req := &PasswordModifyRequest{
		UserIdentity: "uid=oli,ou=Mitglieder",
		OldPassword:  []byte("alt"),
		NewPassword:  []byte("neu"),
	}
	got, err := req.Encode()
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{
		0x30, 0x21, // SEQUENCE, 33 octets
		0x80, 0x15, // [0] userIdentity, 21 octets
	}
	want = append(want, []byte("uid=oli,ou=Mitglieder")...)
	want = append(want, 0x81, 0x03) // [1] oldPasswd
	want = append(want, []byte("alt")...)
	want = append(want, 0x82, 0x03) // [2] newPasswd
	want = append(want, []byte("neu")...)

	if !bytes.Equal(got, want) {
		t.Errorf("Encode =\n%x\nwant\n%x", got, want)
	}
}

func TestPasswordModifyOmitsNilOldPassword(t *testing.T) {
	req := &PasswordModifyRequest{
		UserIdentity: "uid=oli,ou=Mitglieder",
		NewPassword:  []byte("neu"),
	}
	got, err := req.Encode()
	if err != nil {
		t.Fatal(err)
	}
	// no [1] element anywhere in the value
	d := ber.NewDecoder(got)
	seq, err := d.ReadSequence()
	if err != nil {
		t.Fatal(err)
	}
	for seq.Remaining() > 0 {
		number, _, _, err := seq.ReadTagged()
		if err != nil {
			t.Fatal(err)
		}
		if number == 1 {
			t.Fatal("oldPasswd field must be omitted, not empty")
		}
	}
}

func TestPasswordModifyRejectsEmptyNewPassword(t *testing.T) {
	req := &PasswordModifyRequest{UserIdentity: "uid=oli,ou=Mitglieder"}
	if _, err := req.Encode(); !errors.Is(err, ErrEmptyNewPassword) {
		t.Errorf("expected ErrEmptyNewPassword, got %v", err)
	}
}

func TestPasswordModifyLengthBoundary(t *testing.T) {
	// A 127-octet password keeps the short length form on its field.
	req := &PasswordModifyRequest{
		NewPassword: bytes.Repeat([]byte{'x'}, 127),
	}
	got, err := req.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if i := bytes.Index(got, []byte{0x82, 0x7F, 'x'}); i < 0 {
		t.Errorf("expected short-form 7f header for 127-octet password in %x", got[:8])
	}

	// One octet more forces the long form 0x81 0x80.
	req.NewPassword = bytes.Repeat([]byte{'x'}, 128)
	got, err = req.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if i := bytes.Index(got, []byte{0x82, 0x81, 0x80, 'x'}); i < 0 {
		t.Errorf("expected long-form 8180 header for 128-octet password in %x", got[:8])
	}
}

func TestPasswordModifyRoundTrip(t *testing.T) {
	req := &PasswordModifyRequest{
		UserIdentity: "uid=vera,ou=Mitglieder",
		OldPassword:  []byte("altes passwort"),
		NewPassword:  []byte("neues passwort"),
	}
	encoded, err := req.Encode()
	if err != nil {
		t.Fatal(err)
	}

	seq, err := ber.NewDecoder(encoded).ReadSequence()
	if err != nil {
		t.Fatal(err)
	}
	fields := map[int][]byte{}
	for seq.Remaining() > 0 {
		number, constructed, content, err := seq.ReadTagged()
		if err != nil {
			t.Fatal(err)
		}
		if constructed {
			t.Errorf("field [%d] must be primitive", number)
		}
		fields[number] = content
	}
	if string(fields[0]) != req.UserIdentity {
		t.Errorf("userIdentity = %q", fields[0])
	}
	if !bytes.Equal(fields[1], req.OldPassword) {
		t.Errorf("oldPasswd = %q", fields[1])
	}
	if !bytes.Equal(fields[2], req.NewPassword) {
		t.Errorf("newPasswd = %q", fields[2])
	}
}

func TestEncodeExtendedRequestCarriesOIDAndValue(t *testing.T) {
	value := []byte{0x30, 0x00}
	op, err := EncodeExtendedRequest(PasswordModifyOID, value)
	if err != nil {
		t.Fatal(err)
	}

	d, err := ber.NewDecoder(op).ReadApplication(ApplicationExtendedRequest)
	if err != nil {
		t.Fatal(err)
	}
	number, _, oid, err := d.ReadTagged()
	if err != nil || number != 0 {
		t.Fatalf("requestName tag = %d, %v", number, err)
	}
	if string(oid) != PasswordModifyOID {
		t.Errorf("requestName = %q", oid)
	}
	number, _, got, err := d.ReadTagged()
	if err != nil || number != 1 {
		t.Fatalf("requestValue tag = %d, %v", number, err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("requestValue = %x", got)
	}
}
