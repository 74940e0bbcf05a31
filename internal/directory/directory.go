// Package directory is Barrel's LDAP collaborator: credential verification
// by bind, username-to-DN resolution, authority population from group
// membership, and the member/register views the API serves.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/org/barrel/internal/auth"
	"github.com/org/barrel/internal/ldap"
	"github.com/org/barrel/pkg/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownUser means the username does not resolve to a directory
	// entry.
	ErrUnknownUser = errors.New("directory: unknown user")
	// ErrBadCredentials means the directory rejected the bind.
	ErrBadCredentials = errors.New("directory: invalid credentials")
)

// Conn is the slice of an LDAP connection the client uses. Satisfied by
// *ldap.Conn; tests substitute a fake.
type Conn interface {
	Bind(dn, password string) error
	Search(req ldap.SearchRequest) ([]ldap.Entry, error)
	Extended(oid string, value []byte) error
	Close() error
}

// Config locates users, groups, and registers in the directory tree.
type Config struct {
	Addr         string `yaml:"addr"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`

	UserSearchBase string `yaml:"user_search_base"`
	UserAttr       string `yaml:"user_attr"`

	GroupSearchBase string `yaml:"group_search_base"`
	GroupMemberAttr string `yaml:"group_member_attr"`
	GroupRoleAttr   string `yaml:"group_role_attr"`

	RegisterSearchBase  string `yaml:"register_search_base"`
	RegisterObjectClass string `yaml:"register_object_class"`
}

func (c *Config) applyDefaults() {
	if c.UserAttr == "" {
		c.UserAttr = "uid"
	}
	if c.GroupMemberAttr == "" {
		c.GroupMemberAttr = "member"
	}
	if c.GroupRoleAttr == "" {
		c.GroupRoleAttr = "cn"
	}
	if c.RegisterObjectClass == "" {
		c.RegisterObjectClass = "mvlGroup"
	}
}

// Client talks to the directory over a pooled service connection bound with
// the configured service credentials. User binds run on their own
// short-lived connections so they never disturb the service bind.
type Client struct {
	cfg  Config
	dial func(ctx context.Context) (Conn, error)

	mu   sync.Mutex
	conn Conn
}

// New creates a Client that dials cfg.Addr.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg: cfg,
		dial: func(ctx context.Context) (Conn, error) {
			return ldap.Dial(ctx, cfg.Addr)
		},
	}
}

// NewWithDialer creates a Client with a custom connection factory.
func NewWithDialer(cfg Config, dial func(ctx context.Context) (Conn, error)) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, dial: dial}
}

// Close releases the service connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close() //nolint:errcheck
		c.conn = nil
	}
}

// withService runs fn on the bound service connection, dialing on first use.
// Transport-level failures invalidate the connection so the next call
// redials; they are not retried here.
func (c *Client) withService(ctx context.Context, fn func(Conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			return err
		}
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			conn.Close() //nolint:errcheck
			return fmt.Errorf("directory: service bind: %w", err)
		}
		c.conn = conn
	}
	err := fn(c.conn)
	var re *ldap.ResultError
	if err != nil && !errors.As(err, &re) {
		// not a directory verdict but a broken connection
		c.conn.Close() //nolint:errcheck
		c.conn = nil
	}
	return err
}

// ResolveDN maps a username to the DN of its directory entry.
func (c *Client) ResolveDN(ctx context.Context, username string) (string, error) {
	entry, err := c.findUser(ctx, username, nil)
	if err != nil {
		return "", err
	}
	return entry.DN, nil
}

func (c *Client) findUser(ctx context.Context, username string, attrs []string) (*ldap.Entry, error) {
	var entries []ldap.Entry
	err := c.withService(ctx, func(conn Conn) error {
		var err error
		entries, err = conn.Search(ldap.SearchRequest{
			BaseDN:     c.cfg.UserSearchBase,
			Scope:      ldap.ScopeWholeSubtree,
			SizeLimit:  2,
			Filter:     ldap.EqualityFilter{Attribute: c.cfg.UserAttr, Value: username},
			Attributes: attrs,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("directory: searching user %q: %w", username, err)
	}
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	case 1:
		return &entries[0], nil
	default:
		// duplicate uid entries violate directory integrity; surfaced,
		// never guessed around
		return nil, fmt.Errorf("directory: username %q matches %d entries", username, len(entries))
	}
}

// Authenticate verifies credentials with a simple bind on a fresh
// connection and returns the principal with freshly populated authorities.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*auth.Principal, error) {
	if username == "" || password == "" {
		// an empty simple bind would be an anonymous bind, which must
		// never count as credential verification
		return nil, ErrBadCredentials
	}
	dn, err := c.ResolveDN(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck
	if err := conn.Bind(dn, password); err != nil {
		if ldap.IsResultCode(err, ldap.ResultInvalidCredentials) {
			log.Info().Str("username", username).Msg("bind rejected")
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("directory: bind for %q: %w", username, err)
	}
	return c.principal(ctx, username, dn)
}

// LookupPrincipal resolves the username and populates its authorities.
// Used when reconstructing a principal from a verified token subject.
func (c *Client) LookupPrincipal(ctx context.Context, username string) (*auth.Principal, error) {
	dn, err := c.ResolveDN(ctx, username)
	if err != nil {
		return nil, err
	}
	return c.principal(ctx, username, dn)
}

func (c *Client) principal(ctx context.Context, username, dn string) (*auth.Principal, error) {
	var entries []ldap.Entry
	err := c.withService(ctx, func(conn Conn) error {
		var err error
		entries, err = conn.Search(ldap.SearchRequest{
			BaseDN:     c.cfg.GroupSearchBase,
			Scope:      ldap.ScopeWholeSubtree,
			Filter:     ldap.EqualityFilter{Attribute: c.cfg.GroupMemberAttr, Value: dn},
			Attributes: []string{c.cfg.GroupRoleAttr},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("directory: searching groups of %q: %w", username, err)
	}
	var authorities []string
	for i := range entries {
		authorities = append(authorities, entries[i].Attributes[c.cfg.GroupRoleAttr]...)
	}
	return &auth.Principal{Name: username, Authorities: authorities}, nil
}

// MemberByUsername returns the member entry for a username.
func (c *Client) MemberByUsername(ctx context.Context, username string) (*models.Member, error) {
	entry, err := c.findUser(ctx, username, []string{
		c.cfg.UserAttr, "givenName", "sn", "cn", "active", "joining", "gender", "title", "official", "listed",
	})
	if err != nil {
		return nil, err
	}
	return memberFromEntry(entry, c.cfg.UserAttr), nil
}

// Registers returns all register groups with their raw member DN lists.
func (c *Client) Registers(ctx context.Context) ([]*models.Register, error) {
	var entries []ldap.Entry
	err := c.withService(ctx, func(conn Conn) error {
		var err error
		entries, err = conn.Search(ldap.SearchRequest{
			BaseDN:     c.cfg.RegisterSearchBase,
			Scope:      ldap.ScopeWholeSubtree,
			Filter:     ldap.EqualityFilter{Attribute: "objectClass", Value: c.cfg.RegisterObjectClass},
			Attributes: []string{"cn", "cns", c.cfg.GroupMemberAttr},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("directory: searching registers: %w", err)
	}
	registers := make([]*models.Register, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		registers = append(registers, &models.Register{
			DN:           e.DN,
			Name:         e.Attr("cn"),
			NameSingular: e.Attr("cns"),
			AllMembers:   e.Attributes[c.cfg.GroupMemberAttr],
		})
	}
	return registers, nil
}

func memberFromEntry(e *ldap.Entry, userAttr string) *models.Member {
	joining, _ := strconv.Atoi(e.Attr("joining"))
	return &models.Member{
		DN:        e.DN,
		Username:  e.Attr(userAttr),
		FirstName: e.Attr("givenName"),
		LastName:  e.Attr("sn"),
		Name:      e.Attr("cn"),
		Active:    ldapBool(e.Attr("active")),
		Joining:   joining,
		Gender:    e.Attr("gender"),
		Titles:    e.Attributes["title"],
		Official:  ldapBool(e.Attr("official")),
		Listed:    ldapBool(e.Attr("listed")),
	}
}

func ldapBool(v string) bool {
	return strings.EqualFold(v, "TRUE")
}

// UsernameFromDN extracts the value of the entry's leading RDN, which for
// member entries is the uid.
func UsernameFromDN(dn string) (string, error) {
	first, _, _ := strings.Cut(dn, ",")
	_, value, found := strings.Cut(first, "=")
	if !found || value == "" {
		return "", fmt.Errorf("directory: cannot extract username from DN %q", dn)
	}
	return strings.TrimSpace(value), nil
}
