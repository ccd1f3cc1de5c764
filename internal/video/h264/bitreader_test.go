package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitReader_ReadBits(t *testing.T) {
	// 0b10110010, 0b11110000
	r := newBitReader([]byte{0xB2, 0xF0})

	v, err := r.readBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xB), v)

	v, err = r.readBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2), v)

	v, err = r.readBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xF0), v)
}

func TestBitReader_ReadBits_Overread(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	_, err := r.readBits(16)
	assert.Error(t, err)
}

func TestBitReader_ReadUE(t *testing.T) {
	// exp-Golomb: "1" -> 0, "010" -> 1, "011" -> 2, "00100" -> 3
	r := newBitReader([]byte{0b10100110, 0b01000000})

	v, err := r.readUE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	v, err = r.readUE()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = r.readUE()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)

	v, err = r.readUE()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)
}

func TestBitReader_ReadSE(t *testing.T) {
	// ue(v)=0 -> se(v)=0; ue(v)=1 -> se(v)=1; ue(v)=2 -> se(v)=-1
	r := newBitReader([]byte{0b10100110})

	v, err := r.readSE()
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	v, err = r.readSE()
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	v, err = r.readSE()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}
