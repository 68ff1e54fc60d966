package ppu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"nescore/internal/memory"
)

// fakeCHR is a flat 8KB pattern-table backing store implementing
// memory.CHRSpace for tests that don't need mapper bank switching.
type fakeCHR struct {
	data      [0x2000]uint8
	mirroring memory.Mirroring
}

func (c *fakeCHR) ReadCHR(addr uint16) uint8          { return c.data[addr&0x1FFF] }
func (c *fakeCHR) PeekCHR(addr uint16) uint8          { return c.data[addr&0x1FFF] }
func (c *fakeCHR) WriteCHR(addr uint16, v uint8)      { c.data[addr&0x1FFF] = v }
func (c *fakeCHR) Mirroring() memory.Mirroring        { return c.mirroring }

func newTestPPU() (*PPU, *fakeCHR) {
	chr := &fakeCHR{mirroring: memory.MirrorHorizontal}
	bus := memory.NewPPUBus(chr, chr)
	p := New(bus, nil)
	p.Reset()
	return p, chr
}

func TestWriteRegister_PPUADDRThenPPUDATA_WritesVRAM(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2006, 0x20) // high byte
	p.WriteRegister(0x2006, 0x05) // low byte -> v = $2005
	p.WriteRegister(0x2007, 0x42)
	assert.Equal(t, uint8(0x42), p.bus.Read(0x2005))
	assert.Equal(t, uint16(0x2006), uint16(p.v)) // PPUDATA write increments by 1
}

func TestReadRegister_PPUDATA_IsBufferedBelowPalette(t *testing.T) {
	p, _ := newTestPPU()
	p.bus.Write(0x2005, 0x42)
	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x05)
	first := p.ReadRegister(0x2007)
	assert.Equal(t, uint8(0), first, "first read returns stale buffer, not the fresh byte")
	second := p.ReadRegister(0x2007)
	assert.Equal(t, uint8(0x42), second)
}

func TestReadRegister_PaletteReadIsNotBuffered(t *testing.T) {
	p, _ := newTestPPU()
	p.bus.Write(0x3F05, 0x16)
	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x05)
	result := p.ReadRegister(0x2007)
	assert.Equal(t, uint8(0x16), result, "palette reads return immediately, no buffering delay")
}

func TestReadRegister_Status_ClearsVBlankAndWriteToggle(t *testing.T) {
	p, _ := newTestPPU()
	p.status |= statusVBlank
	p.w = true
	result := p.ReadRegister(0x2002)
	assert.NotZero(t, result&statusVBlank)
	assert.Zero(t, p.status&statusVBlank, "reading $2002 clears VBlank")
	assert.False(t, p.w, "reading $2002 resets the scroll/addr write latch")
}

func TestScrollWrites_PopulateFineXAndLoopyT(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2005, 0x7D) // coarse X = 15, fine X = 5
	p.WriteRegister(0x2005, 0x5E) // coarse Y = 11, fine Y = 6
	assert.Equal(t, uint8(5), p.x)
	assert.Equal(t, uint16(15), p.t.coarseX())
	assert.Equal(t, uint16(11), p.t.coarseY())
	assert.Equal(t, uint16(6), p.t.fineY())
}

func TestNMICallback_FiresOnVBlankWhenEnabled(t *testing.T) {
	var level bool
	var calls int
	p, _ := newTestPPU()
	p.nmiCallback = func(v bool) { level = v; calls++ }
	p.WriteRegister(0x2000, ctrlNMI)
	p.scanline, p.dot = vblankStartLine, 1
	p.Tick()
	assert.True(t, level)
	assert.Greater(t, calls, 0)
}

func TestOddFrameSkip_ShortensPreRenderLineWhenRenderingEnabled(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2001, maskShowBG)
	p.oddFrame = true
	p.scanline, p.dot = preRenderLine, 339
	startFrame := p.frame
	p.Tick()
	assert.Equal(t, startFrame+1, p.frame)
	assert.Equal(t, 0, p.dot)
	assert.Equal(t, 0, p.scanline)
}

func TestOddFrameSkip_DoesNotApplyWhenRenderingDisabled(t *testing.T) {
	p, _ := newTestPPU()
	p.oddFrame = true
	p.scanline, p.dot = preRenderLine, 339
	p.Tick()
	assert.Equal(t, 340, p.dot, "rendering disabled: dot 340 still runs")
}

func TestWriteOAMByte_IncrementsOAMAddr(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2003, 0x10)
	p.WriteOAMByte(0xAB)
	assert.Equal(t, uint8(0x11), p.oamAddr)
	assert.Equal(t, uint8(0xAB), p.oam[0x10])
}

func TestEvaluateSprites_FindsInRangeSpritesAndSetsOverflow(t *testing.T) {
	p, _ := newTestPPU()
	p.scanline = 50
	for i := 0; i < 9; i++ {
		p.oam[i*4+0] = 49 // sprite Y=49 covers scanline 50 (row 1, 8px tall)
		p.oam[i*4+1] = uint8(i)
		p.oam[i*4+3] = uint8(i * 10)
	}
	p.evaluateSprites()
	assert.Equal(t, 8, p.spriteCount)
	assert.NotZero(t, p.status&statusOverflow)
}
