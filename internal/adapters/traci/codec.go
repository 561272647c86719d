package traci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

var errShortBuffer = errors.New("traci: short buffer")

// storage builds the payload of one command.
type storage struct {
	buf []byte
}

func (s *storage) ubyte(v byte) { s.buf = append(s.buf, v) }

func (s *storage) int32(v int32) { s.buf = binary.BigEndian.AppendUint32(s.buf, uint32(v)) }

func (s *storage) double(v float64) { s.buf = binary.BigEndian.AppendUint64(s.buf, math.Float64bits(v)) }

func (s *storage) str(v string) {
	s.int32(int32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *storage) strList(v []string) {
	s.int32(int32(len(v)))
	for _, e := range v {
		s.str(e)
	}
}

func (s *storage) typedString(v string) {
	s.ubyte(typeString)
	s.str(v)
}

func (s *storage) typedInt(v int32) {
	s.ubyte(typeInteger)
	s.int32(v)
}

func (s *storage) typedDouble(v float64) {
	s.ubyte(typeDouble)
	s.double(v)
}

func (s *storage) color(c domain.Color) {
	s.ubyte(typeColor)
	s.buf = append(s.buf, c.R, c.G, c.B, c.A)
}

// appendCommand frames one command: [len][id][content], switching to the
// extended [0][int32 len][id][content] form past 255 bytes.
func appendCommand(dst []byte, id byte, content []byte) []byte {
	if n := len(content) + 2; n <= 255 {
		dst = append(dst, byte(n), id)
	} else {
		dst = append(dst, 0)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(content)+6))
		dst = append(dst, id)
	}
	return append(dst, content...)
}

// reader decodes a received buffer. The first decode error sticks and every
// later read returns a zero value.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", errShortBuffer, n, r.off, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) ubyte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *reader) double() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func (r *reader) str() string {
	n := r.int32()
	return string(r.take(int(n)))
}

func (r *reader) strList() []string {
	n := int(r.int32())
	if r.err != nil || n < 0 || n > r.remaining()/4 {
		if r.err == nil {
			r.err = fmt.Errorf("%w: string list of %d entries", errShortBuffer, n)
		}
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.str())
	}
	return out
}

func (r *reader) expectType(want byte) {
	if got := r.ubyte(); r.err == nil && got != want {
		r.err = fmt.Errorf("traci: expected type 0x%02x, got 0x%02x", want, got)
	}
}

func (r *reader) typedString() string {
	r.expectType(typeString)
	return r.str()
}

func (r *reader) typedInt() int32 {
	r.expectType(typeInteger)
	return r.int32()
}

func (r *reader) typedDouble() float64 {
	r.expectType(typeDouble)
	return r.double()
}

func (r *reader) color() domain.Color {
	r.expectType(typeColor)
	b := r.take(4)
	if b == nil {
		return domain.Color{}
	}
	return domain.Color{R: b[0], G: b[1], B: b[2], A: b[3]}
}

// command splits off the next framed command and returns its id and body.
func (r *reader) command() (byte, *reader) {
	start := r.off
	n := int(r.ubyte())
	if n == 0 {
		n = int(r.int32())
	}
	id := r.ubyte()
	if r.err != nil {
		return 0, &reader{err: r.err}
	}
	end := start + n
	if n < 2 || end > len(r.buf) || end < r.off {
		r.err = fmt.Errorf("%w: command length %d at offset %d", errShortBuffer, n, start)
		return 0, &reader{err: r.err}
	}
	body := &reader{buf: r.buf[r.off:end]}
	r.off = end
	return id, body
}
