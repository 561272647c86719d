package traci

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

func TestStorageReaderPrimitives(t *testing.T) {
	var s storage
	s.ubyte(7)
	s.int32(-3)
	s.double(12.5)
	s.str("veh_0_1")
	s.strList([]string{"a", "bc"})
	s.color(domain.ColorMalicious)

	r := newReader(s.buf)
	assert.Equal(t, byte(7), r.ubyte())
	assert.Equal(t, int32(-3), r.int32())
	assert.Equal(t, 12.5, r.double())
	assert.Equal(t, "veh_0_1", r.str())
	assert.Equal(t, []string{"a", "bc"}, r.strList())
	assert.Equal(t, domain.ColorMalicious, r.color())
	require.NoError(t, r.err)
	assert.Zero(t, r.remaining())
}

func TestReaderShortBufferSticks(t *testing.T) {
	r := newReader([]byte{0, 0})
	_ = r.int32()
	assert.True(t, errors.Is(r.err, errShortBuffer))
	assert.Equal(t, "", r.str())
	assert.Equal(t, 0.0, r.double())
}

func TestCommandFramingShortAndExtended(t *testing.T) {
	small := appendCommand(nil, cmdGetSimVariable, []byte{varTime, 0, 0, 0, 0})
	assert.Equal(t, byte(7), small[0])
	assert.Equal(t, byte(cmdGetSimVariable), small[1])

	var s storage
	s.str(strings.Repeat("x", 300))
	large := appendCommand(nil, cmdSetVehicleVariable, s.buf)
	assert.Equal(t, byte(0), large[0])

	both := append(small, large...)
	r := newReader(both)
	id, body := r.command()
	assert.Equal(t, byte(cmdGetSimVariable), id)
	assert.Equal(t, byte(varTime), body.ubyte())

	id, body = r.command()
	assert.Equal(t, byte(cmdSetVehicleVariable), id)
	assert.Len(t, body.str(), 300)
	require.NoError(t, r.err)
	assert.Zero(t, r.remaining())
}

func TestCommandRejectsTruncatedFrame(t *testing.T) {
	r := newReader([]byte{10, cmdSimStep, 1})
	_, body := r.command()
	assert.Error(t, r.err)
	assert.Error(t, body.err)
}
