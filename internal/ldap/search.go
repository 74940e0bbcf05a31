package ldap

import (
	"fmt"

	"github.com/org/barrel/internal/ber"
)

// EqualityFilter is the only filter type Barrel needs: (attr=value).
type EqualityFilter struct {
	Attribute string
	Value     string
}

func (f EqualityFilter) encode() []byte {
	e := ber.NewEncoder(len(f.Attribute) + len(f.Value) + 8)
	_ = e.WriteOctetString([]byte(f.Attribute))
	_ = e.WriteOctetString([]byte(f.Value))
	return ber.Wrap(ber.ClassContext, ber.TypeConstructed, filterEquality, e.Bytes())
}

// SearchRequest describes one search operation.
type SearchRequest struct {
	BaseDN     string
	Scope      int
	SizeLimit  int
	Filter     EqualityFilter
	Attributes []string
}

// Entry is one SearchResultEntry: a DN plus its returned attributes.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Attr returns the first value of the named attribute, or "".
func (e *Entry) Attr(name string) string {
	if vals := e.Attributes[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// EncodeSearchRequest builds a SearchRequest protocol op (RFC 4511 §4.5.1).
func EncodeSearchRequest(req SearchRequest) ([]byte, error) {
	e := ber.NewEncoder(128)
	if err := e.WriteOctetString([]byte(req.BaseDN)); err != nil {
		return nil, err
	}
	if err := e.WriteEnumerated(int64(req.Scope)); err != nil {
		return nil, err
	}
	if err := e.WriteEnumerated(DerefNever); err != nil {
		return nil, err
	}
	if err := e.WriteInteger(int64(req.SizeLimit)); err != nil {
		return nil, err
	}
	if err := e.WriteInteger(0); err != nil { // no time limit
		return nil, err
	}
	if err := e.WriteBoolean(false); err != nil { // typesOnly
		return nil, err
	}
	e.WriteRaw(req.Filter.encode())
	attrs := ber.NewEncoder(32)
	for _, a := range req.Attributes {
		if err := attrs.WriteOctetString([]byte(a)); err != nil {
			return nil, err
		}
	}
	e.WriteRaw(ber.WrapSequence(attrs.Bytes()))
	return ber.Wrap(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchRequest, e.Bytes()), nil
}

// Search runs a search and collects all result entries. A non-success
// SearchResultDone is returned as a *ResultError.
func (c *Conn) Search(req SearchRequest) ([]Entry, error) {
	op, err := EncodeSearchRequest(req)
	if err != nil {
		return nil, fmt.Errorf("ldap: encoding search request: %w", err)
	}
	var entries []Entry
	err = c.exchange(op, func(appTag int, body *ber.Decoder) (bool, error) {
		switch appTag {
		case ApplicationSearchResultEntry:
			entry, err := parseEntry(body)
			if err != nil {
				return false, err
			}
			entries = append(entries, entry)
			return false, nil
		case ApplicationSearchResultDone:
			return true, readResult(body)
		default:
			// referrals and intermediate responses are not expected from
			// the directories Barrel talks to
			return false, fmt.Errorf("ldap: unexpected response op %d to search", appTag)
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// parseEntry decodes a SearchResultEntry body. The application wrapper is
// already consumed, leaving:
//
//	objectName LDAPDN, attributes SEQUENCE OF SEQUENCE { type, vals SET OF }
func parseEntry(body *ber.Decoder) (Entry, error) {
	entry := Entry{Attributes: map[string][]string{}}
	dn, err := body.ReadOctetString()
	if err != nil {
		return entry, fmt.Errorf("ldap: reading entry DN: %w", err)
	}
	entry.DN = string(dn)
	attrList, err := body.ReadSequence()
	if err != nil {
		return entry, fmt.Errorf("ldap: reading attribute list: %w", err)
	}
	for attrList.Remaining() > 0 {
		attr, err := attrList.ReadSequence()
		if err != nil {
			return entry, fmt.Errorf("ldap: reading attribute: %w", err)
		}
		name, err := attr.ReadOctetString()
		if err != nil {
			return entry, fmt.Errorf("ldap: reading attribute type: %w", err)
		}
		vals, err := attr.ReadSet()
		if err != nil {
			return entry, fmt.Errorf("ldap: reading attribute values: %w", err)
		}
		for vals.Remaining() > 0 {
			v, err := vals.ReadOctetString()
			if err != nil {
				return entry, fmt.Errorf("ldap: reading attribute value: %w", err)
			}
			entry.Attributes[string(name)] = append(entry.Attributes[string(name)], string(v))
		}
	}
	return entry, nil
}
