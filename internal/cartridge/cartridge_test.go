package cartridge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nescore/internal/memory"
)

// buildINES assembles a minimal iNES 1.0 image: header + PRG-ROM (+
// optional CHR-ROM, else the header declares CHR-RAM via a zero count).
func buildINES(mapperID uint16, prgBanks, chrBanks uint8, flags6 uint8) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1a")
	buf.WriteByte(prgBanks)
	buf.WriteByte(chrBanks)
	buf.WriteByte(flags6 | uint8(mapperID&0x0F)<<4)
	buf.WriteByte(uint8(mapperID & 0xF0))
	buf.Write(make([]byte, 8)) // bytes 8-15, all zero: archaic iNES

	buf.Write(make([]byte, int(prgBanks)*16384))
	if chrBanks > 0 {
		buf.Write(make([]byte, int(chrBanks)*8192))
	}
	return buf.Bytes()
}

func TestLoadFromReader_RejectsBadMagic(t *testing.T) {
	_, err := LoadFromReader(bytes.NewReader([]byte("not an ines file at all")))
	require.Error(t, err)
	var le *LoadError
	assert.ErrorAs(t, err, &le)
}

func TestLoadFromReader_NROM(t *testing.T) {
	img := buildINES(0, 2, 1, 0x00)
	cart, err := LoadFromReader(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), cart.MapperID())
	assert.Equal(t, memory.MirrorHorizontal, cart.Mirroring())
}

func TestLoadFromReader_CHRRAMFallback(t *testing.T) {
	img := buildINES(0, 1, 0, 0x00)
	cart, err := LoadFromReader(bytes.NewReader(img))
	require.NoError(t, err)
	cart.WriteCHR(0x0000, 0x42)
	assert.Equal(t, uint8(0x42), cart.ReadCHR(0x0000))
}

func TestLoadFromReader_UnsupportedMapper(t *testing.T) {
	img := buildINES(255, 1, 1, 0x00)
	_, err := LoadFromReader(bytes.NewReader(img))
	require.Error(t, err)
}

func TestNROM_MirrorsSingleBank(t *testing.T) {
	prg := make([]uint8, 16384)
	prg[0] = 0xAA
	prg[16383] = 0xBB
	m := newNROM(prg, make([]uint8, 8192), false, memory.MirrorVertical)
	assert.Equal(t, uint8(0xAA), m.ReadPRG(0x8000))
	assert.Equal(t, uint8(0xBB), m.ReadPRG(0xBFFF))
	assert.Equal(t, uint8(0xAA), m.ReadPRG(0xC000)) // mirrored
	assert.Equal(t, uint8(0xBB), m.ReadPRG(0xFFFF))
}

func TestUxROM_FixesLastBank(t *testing.T) {
	prg := make([]uint8, 16384*4)
	prg[3*16384] = 0x55 // last bank
	m := newUxROM(prg, make([]uint8, 8192), true, memory.MirrorHorizontal)
	assert.Equal(t, uint8(0x55), m.ReadPRG(0xC000))
	m.WritePRG(0x8000, 2)
	assert.Equal(t, prg[2*16384], m.ReadPRG(0x8000))
}

func TestMMC1_PowerOnPRGMode3FixesLastBank(t *testing.T) {
	prg := make([]uint8, 16384*4)
	prg[3*16384] = 0x77
	m := newMMC1(prg, make([]uint8, 8192), true, memory.MirrorHorizontal)
	assert.Equal(t, uint8(0x77), m.ReadPRG(0xC000))
}

func TestMMC1_FiveWriteShiftSequence(t *testing.T) {
	prg := make([]uint8, 16384*4)
	m := newMMC1(prg, make([]uint8, 8192), true, memory.MirrorHorizontal)
	// Shift in control = 0b00011: mirroring bits 3 (horizontal).
	for i := 0; i < 5; i++ {
		bit := uint8(0)
		if i == 0 || i == 1 {
			bit = 1
		}
		m.WritePRG(0x8000, bit)
		m.Tick()
		m.Tick()
	}
	assert.Equal(t, memory.MirrorHorizontal, m.Mirroring())
}

func TestMMC3_IRQFiresOnLatchPlusOneA12Edges(t *testing.T) {
	prg := make([]uint8, 8192*8)
	chr := make([]uint8, 8192)
	m := newMMC3(prg, chr, false, memory.MirrorHorizontal)
	m.WritePRG(0x8001, 4) // select R0 via bankSelect default 0, but set latch first
	m.WritePRG(0xC000, 2) // latch = 2
	m.WritePRG(0xC001, 0) // force reload
	m.WritePRG(0xE001, 0) // enable IRQ

	m.NotifyA12Rise() // reload to latch (2), counter becomes 2
	assert.False(t, m.CheckIRQ())
	m.NotifyA12Rise() // counter 2 -> 1
	assert.False(t, m.CheckIRQ())
	m.NotifyA12Rise() // counter 1 -> 0, fires
	assert.True(t, m.CheckIRQ())
}

func TestMMC2_LatchSwitchesCHRBank(t *testing.T) {
	chr := make([]uint8, 4096*4)
	chr[0*4096] = 0x10   // bank 0 (latch0=false / FD state)
	chr[1*4096] = 0x20   // bank 1 (latch0=true / FE state)
	m := newMMC2(make([]uint8, 8192*8), chr, false, memory.MirrorHorizontal, false)
	m.WritePRG(0xB000, 0) // chrBank0a = 0
	m.WritePRG(0xC000, 1) // chrBank0b = 1

	assert.Equal(t, uint8(0x10), m.ReadCHR(0x0000))
	m.ReadCHR(0x0FE8) // trigger latch flip to FE
	assert.Equal(t, uint8(0x20), m.ReadCHR(0x0000))
}
