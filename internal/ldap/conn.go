package ldap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/org/barrel/internal/ber"
)

var (
	ErrClosed          = errors.New("ldap: connection closed")
	ErrMessageTooLarge = errors.New("ldap: message exceeds size limit")
)

// maxMessageSize bounds a single inbound LDAP message. Directory entries in
// Barrel's deployment are small; anything past this is a protocol fault.
const maxMessageSize = 1 << 20

// Conn is a synchronous LDAP connection. One request/response exchange runs
// at a time; concurrent callers serialize on an internal mutex.
type Conn struct {
	mu     sync.Mutex
	nc     net.Conn
	br     *bufio.Reader
	nextID int64
	closed bool
}

// Dial opens an LDAP connection to addr (host:port).
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ldap: dialing %s: %w", addr, err)
	}
	return NewConn(nc), nil
}

// NewConn wraps an established network connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, br: bufio.NewReader(nc)}
}

// Close sends an unbind (best effort) and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	// UnbindRequest ::= [APPLICATION 2] NULL; no response follows
	c.nextID++
	env := envelope(c.nextID, ber.Wrap(ber.ClassApplication, ber.TypePrimitive, ApplicationUnbindRequest, nil))
	c.nc.SetWriteDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	c.nc.Write(env)                                        //nolint:errcheck
	return c.nc.Close()
}

// envelope wraps a protocol operation in an LDAPMessage SEQUENCE.
func envelope(msgID int64, op []byte) []byte {
	e := ber.NewEncoder(len(op) + 16)
	_ = e.WriteInteger(msgID)
	e.WriteRaw(op)
	return ber.WrapSequence(e.Bytes())
}

// exchange sends one protocol operation and feeds response operations with a
// matching message ID to handle until it reports done.
func (c *Conn) exchange(op []byte, handle func(appTag int, body *ber.Decoder) (done bool, err error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.nextID++
	id := c.nextID
	if _, err := c.nc.Write(envelope(id, op)); err != nil {
		return fmt.Errorf("ldap: writing request: %w", err)
	}
	for {
		msgID, appTag, body, err := c.readMessage()
		if err != nil {
			return err
		}
		if msgID != id {
			// stale response from an abandoned exchange; skip it
			continue
		}
		done, err := handle(appTag, body)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// readMessage reads one complete LDAPMessage off the wire and splits it into
// message ID, protocol-op application tag, and a decoder over the op body.
func (c *Conn) readMessage() (msgID int64, appTag int, body *ber.Decoder, err error) {
	raw, err := readElement(c.br)
	if err != nil {
		return 0, 0, nil, err
	}
	d := ber.NewDecoder(raw)
	msg, err := d.ReadSequence()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("ldap: malformed message envelope: %w", err)
	}
	msgID, err = msg.ReadInteger()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("ldap: reading message ID: %w", err)
	}
	class, _, number, err := msg.PeekTag()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("ldap: reading protocol op: %w", err)
	}
	if class != ber.ClassApplication {
		return 0, 0, nil, fmt.Errorf("ldap: protocol op has class %#x", class)
	}
	op, err := msg.ReadApplication(number)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("ldap: reading protocol op body: %w", err)
	}
	return msgID, number, op, nil
}

// readElement reads one full BER element (identifier, length, content) from
// the stream and returns its raw bytes.
func readElement(br *bufio.Reader) ([]byte, error) {
	header := make([]byte, 0, 8)
	tag, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("ldap: reading tag: %w", err)
	}
	header = append(header, tag)
	if tag&0x1F == 0x1F {
		// long-form tag number; LDAP messages start with SEQUENCE so this
		// only occurs on garbage input
		for {
			b, err := br.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("ldap: reading tag: %w", err)
			}
			header = append(header, b)
			if b&0x80 == 0 {
				break
			}
		}
	}
	first, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("ldap: reading length: %w", err)
	}
	header = append(header, first)
	length := 0
	if first&0x80 == 0 {
		length = int(first)
	} else {
		numBytes := int(first & 0x7F)
		if numBytes == 0 || numBytes > 4 {
			return nil, fmt.Errorf("ldap: unsupported length encoding (%d octets)", numBytes)
		}
		for i := 0; i < numBytes; i++ {
			b, err := br.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("ldap: reading length: %w", err)
			}
			header = append(header, b)
			length = length<<8 | int(b)
		}
	}
	if length > maxMessageSize {
		return nil, ErrMessageTooLarge
	}
	out := make([]byte, len(header)+length)
	copy(out, header)
	if _, err := readFull(br, out[len(header):]); err != nil {
		return nil, fmt.Errorf("ldap: reading message body: %w", err)
	}
	return out, nil
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := br.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
