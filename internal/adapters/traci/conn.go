package traci

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

const maxMessageLen = 64 << 20

// conn carries one request/response exchange at a time over a TraCI socket.
type conn struct {
	nc      net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	timeout time.Duration
}

func newConn(nc net.Conn, timeout time.Duration) *conn {
	return &conn{
		nc:      nc,
		r:       bufio.NewReaderSize(nc, 64<<10),
		w:       bufio.NewWriterSize(nc, 4<<10),
		timeout: timeout,
	}
}

// exchange sends a single command and checks its status response. The
// returned reader is positioned after the status, at any result commands.
// Transport and protocol failures come back as domain.ErrAdapterFatal; a
// refused command comes back as *domain.CommandError.
func (c *conn) exchange(id byte, content []byte) (*reader, error) {
	name := commandName(id)
	cmd := appendCommand(nil, id, content)

	if c.timeout > 0 {
		if err := c.nc.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, domain.Fatal(name, err)
		}
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(cmd)+4))
	if _, err := c.w.Write(hdr[:]); err != nil {
		return nil, domain.Fatal(name, err)
	}
	if _, err := c.w.Write(cmd); err != nil {
		return nil, domain.Fatal(name, err)
	}
	if err := c.w.Flush(); err != nil {
		return nil, domain.Fatal(name, err)
	}

	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return nil, domain.Fatal(name, err)
	}
	total := binary.BigEndian.Uint32(hdr[:])
	if total < 4 || total > maxMessageLen {
		return nil, domain.Fatal(name, fmt.Errorf("bad message length %d", total))
	}
	body := make([]byte, total-4)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, domain.Fatal(name, err)
	}

	r := newReader(body)
	statusID, status := r.command()
	result := status.ubyte()
	desc := status.str()
	if r.err != nil || status.err != nil {
		return nil, domain.Fatal(name, fmt.Errorf("malformed status: %v", firstErr(r.err, status.err)))
	}
	if statusID != id {
		return nil, domain.Fatal(name, fmt.Errorf("status for command 0x%02x, expected 0x%02x", statusID, id))
	}
	if result != rtypeOK {
		return nil, &domain.CommandError{Command: name, Description: desc}
	}
	return r, nil
}

// get reads one variable of one object and returns a reader at its typed value.
func (c *conn) get(id, variable byte, objectID string) (*reader, error) {
	var s storage
	s.ubyte(variable)
	s.str(objectID)

	r, err := c.exchange(id, s.buf)
	if err != nil {
		return nil, err
	}
	respID, body := r.command()
	gotVar := body.ubyte()
	gotObj := body.str()
	if err := firstErr(r.err, body.err); err != nil {
		return nil, domain.Fatal(commandName(id), err)
	}
	if respID != id+responseOffset || gotVar != variable || gotObj != objectID {
		return nil, domain.Fatal(commandName(id), fmt.Errorf("unexpected response 0x%02x/0x%02x for %q", respID, gotVar, gotObj))
	}
	return body, nil
}

func (c *conn) getDouble(id, variable byte, objectID string) (float64, error) {
	body, err := c.get(id, variable, objectID)
	if err != nil {
		return 0, err
	}
	v := body.typedDouble()
	if body.err != nil {
		return 0, domain.Fatal(commandName(id), body.err)
	}
	return v, nil
}

func (c *conn) getString(id, variable byte, objectID string) (string, error) {
	body, err := c.get(id, variable, objectID)
	if err != nil {
		return "", err
	}
	v := body.typedString()
	if body.err != nil {
		return "", domain.Fatal(commandName(id), body.err)
	}
	return v, nil
}

func (c *conn) getStringList(id, variable byte, objectID string) ([]string, error) {
	body, err := c.get(id, variable, objectID)
	if err != nil {
		return nil, err
	}
	body.expectType(typeStringList)
	v := body.strList()
	if body.err != nil {
		return nil, domain.Fatal(commandName(id), body.err)
	}
	return v, nil
}

func (c *conn) getPosition(id byte, objectID string) (float64, float64, error) {
	body, err := c.get(id, varPosition, objectID)
	if err != nil {
		return 0, 0, err
	}
	body.expectType(typePosition2D)
	x, y := body.double(), body.double()
	if body.err != nil {
		return 0, 0, domain.Fatal(commandName(id), body.err)
	}
	return x, y, nil
}

// set writes one variable; value must already carry its type byte.
func (c *conn) set(id, variable byte, objectID string, value []byte) error {
	var s storage
	s.ubyte(variable)
	s.str(objectID)
	s.buf = append(s.buf, value...)
	_, err := c.exchange(id, s.buf)
	return err
}

func (c *conn) close() error {
	return c.nc.Close()
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
