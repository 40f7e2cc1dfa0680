package tcp

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/posebridge/internal/core"
)

func header(order binary.ByteOrder, n uint32) []byte {
	var h [HeaderLen]byte
	order.PutUint32(h[:], n)
	return h[:]
}

func TestFramer_ReadsConsecutiveFrames(t *testing.T) {
	var wire []byte
	wire = AppendFrame(wire, binary.LittleEndian, []byte("abc"))
	wire = AppendFrame(wire, binary.LittleEndian, []byte("defghij"))

	f := NewFramer(bytes.NewReader(wire), FrameConfig{})

	p, err := f.ReadPayload()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), p)

	p, err = f.ReadPayload()
	require.NoError(t, err)
	assert.Equal(t, []byte("defghij"), p)

	_, err = f.ReadPayload()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFramer_DegenerateLength(t *testing.T) {
	tests := []struct {
		name   string
		policy LengthPolicy
		wire   []byte
	}{
		{"zero skip", PolicySkip, header(binary.LittleEndian, 0)},
		{"oversize skip", PolicySkip, append(header(binary.LittleEndian, 9), bytes.Repeat([]byte{0xAA}, 9)...)},
		{"zero terminate", PolicyTerminate, header(binary.LittleEndian, 0)},
		{"oversize terminate", PolicyTerminate, append(header(binary.LittleEndian, 9), bytes.Repeat([]byte{0xAA}, 9)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := AppendFrame(append([]byte{}, tt.wire...), binary.LittleEndian, []byte("ok"))
			f := NewFramer(bytes.NewReader(wire), FrameConfig{MaxLen: 8, Policy: tt.policy})

			p, err := f.ReadPayload()
			if tt.policy == PolicyTerminate {
				assert.ErrorIs(t, err, core.ErrFrameLength)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
			assert.Empty(t, p)

			// The body was consumed, so the next header is read in sync.
			p, err = f.ReadPayload()
			require.NoError(t, err)
			assert.Equal(t, []byte("ok"), p)
		})
	}
}

func TestFramer_ShortRead(t *testing.T) {
	tests := []struct {
		name string
		wire []byte
	}{
		{"partial header", []byte{0x05, 0x00}},
		{"partial body", append(header(binary.LittleEndian, 10), 1, 2, 3)},
		{"partial skipped body", append(header(binary.LittleEndian, 100), 1, 2, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(bytes.NewReader(tt.wire), FrameConfig{MaxLen: 64})
			_, err := f.ReadPayload()
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		})
	}
}

func TestFramer_BigEndian(t *testing.T) {
	wire := AppendFrame(nil, binary.BigEndian, []byte("payload"))
	assert.Equal(t, []byte{0, 0, 0, 7}, wire[:HeaderLen])

	f := NewFramer(bytes.NewReader(wire), FrameConfig{Order: binary.BigEndian})
	p, err := f.ReadPayload()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), p)
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, binary.LittleEndian, []byte{1, 2}))
	assert.Equal(t, []byte{2, 0, 0, 0, 1, 2}, buf.Bytes())
}

func TestParseOptions(t *testing.T) {
	order, err := ParseByteOrder("BIG")
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, order)

	order, err = ParseByteOrder("")
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian, order)

	_, err = ParseByteOrder("middle")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	p, err := ParseLengthPolicy("terminate")
	require.NoError(t, err)
	assert.Equal(t, PolicyTerminate, p)
	assert.Equal(t, "terminate", p.String())

	_, err = ParseLengthPolicy("drop")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
