package models

import "strings"

// Member is a person entry from the directory.
// DN is the full distinguished name of the entry; Username is the uid
// attribute used for login and lookups.
type Member struct {
	DN        string   `json:"-"`
	Username  string   `json:"username"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Name      string   `json:"name"`
	Active    bool     `json:"active"`
	Joining   int      `json:"joining"`
	Gender    string   `json:"gender"`
	Titles    []string `json:"titles,omitempty"`
	Official  bool     `json:"official"`
	Listed    bool     `json:"listed"`
}

// Compare orders members by joining year, then last name, then first name.
func (m *Member) Compare(other *Member) int {
	if m.Joining != other.Joining {
		if m.Joining < other.Joining {
			return -1
		}
		return 1
	}
	if c := strings.Compare(m.LastName, other.LastName); c != 0 {
		return c
	}
	return strings.Compare(m.FirstName, other.FirstName)
}

// Register is a directory group of members playing the same instrument class.
// AllMembers holds the raw member DNs as stored on the group entry; Members
// is populated on demand with the resolved entries.
type Register struct {
	DN           string    `json:"-"`
	Name         string    `json:"name"`
	NameSingular string    `json:"nameSingular"`
	AllMembers   []string  `json:"-"`
	Members      []*Member `json:"members,omitempty"`
}
