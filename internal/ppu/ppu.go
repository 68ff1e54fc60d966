// Package ppu implements the NES Picture Processing Unit: a 262-line by
// 341-dot rendering pipeline with loopy scroll registers, background
// shift registers, sprite evaluation, and the register interface the
// CPU sees at $2000-$2007.
package ppu

import "nescore/internal/memory"

const (
	ctrlNMI         = 0x80
	ctrlSpriteSize  = 0x20
	ctrlBGTable     = 0x10
	ctrlSpriteTable = 0x08
	ctrlIncrement   = 0x04

	maskShowSprites     = 0x10
	maskShowBG          = 0x08
	maskShowSpritesLeft = 0x04
	maskShowBGLeft      = 0x02

	statusVBlank   = 0x80
	statusSprite0  = 0x40
	statusOverflow = 0x20

	visibleScanlines = 240
	postRenderLine   = 240
	vblankStartLine  = 241
	preRenderLine    = 261
)

// PPU renders one dot per Tick call; the system container clocks it
// three times per CPU cycle.
type PPU struct {
	bus *memory.PPUBus

	ctrl, mask, status uint8
	oamAddr            uint8
	oam                [256]uint8
	secondaryOAM       [32]uint8
	spriteCount        int
	spritePatternsLo   [8]uint8
	spritePatternsHi   [8]uint8
	spriteAttrs        [8]uint8
	spriteX            [8]uint8
	spriteIsZero       [8]bool
	sprite0OnLine      bool

	v, t loopyReg
	x    uint8
	w    bool

	readBuffer uint8
	busLatch   uint8

	dot, scanline int
	frame         uint64
	oddFrame      bool

	nmiOutput   bool
	nmiOccurred bool
	nmiCallback func(bool)

	bgNextTileID, bgNextTileAttr, bgNextTileLSB, bgNextTileMSB uint8
	bgShiftPatternLo, bgShiftPatternHi                         uint16
	bgShiftAttrLo, bgShiftAttrHi                                uint16

	frameBuffer [256 * 240]uint8
}

// New wires a PPU to its cartridge/nametable address space. nmiCallback
// is invoked with the NMI line's new level every time it changes; the
// system container forwards this to cpu.SetNMI.
func New(bus *memory.PPUBus, nmiCallback func(bool)) *PPU {
	return &PPU{bus: bus, nmiCallback: nmiCallback}
}

// Reset returns the PPU to its post-power-on state.
func (p *PPU) Reset() {
	p.ctrl, p.mask, p.status = 0, 0, 0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.dot, p.scanline = 0, 0
	p.frame = 0
	p.oddFrame = false
	p.nmiOutput, p.nmiOccurred = false, false
}

// FrameBuffer returns the current frame's completed pixels, one NES
// palette index (0-63) per pixel, row-major 256x240.
func (p *PPU) FrameBuffer() []uint8 { return p.frameBuffer[:] }

// Frame returns the count of frames rendered since Reset.
func (p *PPU) Frame() uint64 { return p.frame }

// Dot and Scanline expose the PPU's current position, used by the CPU's
// nestest-style trace output.
func (p *PPU) Dot() int      { return p.dot }
func (p *PPU) Scanline() int { return p.scanline }

func (p *PPU) renderingEnabled() bool { return p.mask&(maskShowBG|maskShowSprites) != 0 }

// Tick advances the PPU by one dot.
func (p *PPU) Tick() {
	switch {
	case p.scanline >= 0 && p.scanline < visibleScanlines:
		p.visibleScanlineTick()
	case p.scanline == postRenderLine:
		// idle
	case p.scanline == vblankStartLine:
		if p.dot == 1 {
			p.nmiOccurred = true
			p.status |= statusVBlank
			p.updateNMILine()
		}
	case p.scanline == preRenderLine:
		if p.dot == 1 {
			p.status &^= statusVBlank | statusSprite0 | statusOverflow
			p.nmiOccurred = false
			p.updateNMILine()
		}
		p.visibleScanlineTick()
	}

	// Odd-frame skip: the pre-render line's last dot (340) is dropped when
	// rendering is enabled, shortening that frame by one PPU cycle.
	if p.scanline == preRenderLine && p.dot == 339 && p.oddFrame && p.renderingEnabled() {
		p.dot, p.scanline = 0, 0
		p.frame++
		p.oddFrame = !p.oddFrame
		return
	}

	p.dot++
	if p.dot > 340 {
		p.dot = 0
		p.scanline++
		if p.scanline > preRenderLine {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
		}
	}
}

func (p *PPU) visibleScanlineTick() {
	if !p.renderingEnabled() {
		if p.scanline >= 0 && p.scanline < visibleScanlines && p.dot >= 1 && p.dot <= 256 {
			p.plotPixel(0)
		}
		return
	}

	switch {
	case p.dot >= 1 && p.dot <= 256:
		p.shiftBackgroundRegisters()
		p.fetchBackgroundByte()
		if p.dot == 256 {
			p.v.incrementY()
		}
		if p.scanline >= 0 && p.scanline < visibleScanlines {
			p.renderPixel()
		}
	case p.dot == 257:
		p.copyHorizontalScroll()
		if p.scanline >= 0 && p.scanline < visibleScanlines {
			p.evaluateSprites()
		}
	case p.dot >= 321 && p.dot <= 336:
		p.shiftBackgroundRegisters()
		p.fetchBackgroundByte()
	case p.scanline == preRenderLine && p.dot >= 280 && p.dot <= 304:
		p.copyVerticalScroll()
	}
}

// fetchBackgroundByte runs the 8-dot nametable/attribute/pattern fetch
// sequence, reloading the low byte of the shift registers every 8th dot.
// Real hardware spreads each access over two dots; batching the fetch on
// the odd sub-step keeps pixel output identical while staying readable.
func (p *PPU) fetchBackgroundByte() {
	switch p.dot % 8 {
	case 1:
		p.reloadShiftRegisters()
		p.bgNextTileID = p.bus.Read(p.v.nametableAddr())
	case 3:
		attrAddr := 0x23C0 | (p.v.nametable() << 10) | ((p.v.coarseY() >> 2) << 3) | (p.v.coarseX() >> 2)
		attr := p.bus.Read(attrAddr)
		shift := ((p.v.coarseY() & 0x02) << 1) | (p.v.coarseX() & 0x02)
		p.bgNextTileAttr = (attr >> shift) & 0x03
	case 5:
		p.bgNextTileLSB = p.bus.Read(p.bgPatternAddr())
	case 7:
		p.bgNextTileMSB = p.bus.Read(p.bgPatternAddr() + 8)
	case 0:
		p.v.incrementCoarseX()
	}
}

func (p *PPU) bgPatternAddr() uint16 {
	base := uint16(0)
	if p.ctrl&ctrlBGTable != 0 {
		base = 0x1000
	}
	return base + uint16(p.bgNextTileID)*16 + p.v.fineY()
}

func (p *PPU) reloadShiftRegisters() {
	p.bgShiftPatternLo = p.bgShiftPatternLo&0xFF00 | uint16(p.bgNextTileLSB)
	p.bgShiftPatternHi = p.bgShiftPatternHi&0xFF00 | uint16(p.bgNextTileMSB)
	loFill, hiFill := uint16(0), uint16(0)
	if p.bgNextTileAttr&0x01 != 0 {
		loFill = 0x00FF
	}
	if p.bgNextTileAttr&0x02 != 0 {
		hiFill = 0x00FF
	}
	p.bgShiftAttrLo = p.bgShiftAttrLo&0xFF00 | loFill
	p.bgShiftAttrHi = p.bgShiftAttrHi&0xFF00 | hiFill
}

func (p *PPU) shiftBackgroundRegisters() {
	p.bgShiftPatternLo <<= 1
	p.bgShiftPatternHi <<= 1
	p.bgShiftAttrLo <<= 1
	p.bgShiftAttrHi <<= 1
}

func (p *PPU) copyHorizontalScroll() {
	p.v.setCoarseX(p.t.coarseX())
	p.v = loopyReg(uint16(p.v)&^0x0400 | uint16(p.t)&0x0400)
}

func (p *PPU) copyVerticalScroll() {
	p.v.setCoarseY(p.t.coarseY())
	p.v.setFineY(p.t.fineY())
	p.v = loopyReg(uint16(p.v)&^0x0800 | uint16(p.t)&0x0800)
}

func (p *PPU) renderPixel() {
	x := p.dot - 1
	bgPixel, bgPalette := p.backgroundPixelAt()
	if (x < 8 && p.mask&maskShowBGLeft == 0) || p.mask&maskShowBG == 0 {
		bgPixel = 0
	}

	spPixel, spPalette, spPriority, spIsZero := p.spritePixelAt(x)
	if (x < 8 && p.mask&maskShowSpritesLeft == 0) || p.mask&maskShowSprites == 0 {
		spPixel = 0
	}

	if bgPixel != 0 && spPixel != 0 && spIsZero && x != 255 {
		p.status |= statusSprite0
	}

	var paletteAddr uint16
	switch {
	case bgPixel == 0 && spPixel == 0:
		paletteAddr = 0x3F00
	case bgPixel == 0:
		paletteAddr = 0x3F10 + uint16(spPalette)*4 + uint16(spPixel)
	case spPixel == 0:
		paletteAddr = 0x3F00 + uint16(bgPalette)*4 + uint16(bgPixel)
	case spPriority:
		paletteAddr = 0x3F00 + uint16(bgPalette)*4 + uint16(bgPixel)
	default:
		paletteAddr = 0x3F10 + uint16(spPalette)*4 + uint16(spPixel)
	}

	p.plotPixel(p.bus.Read(paletteAddr) & 0x3F)
}

func (p *PPU) plotPixel(colorIndex uint8) {
	x := p.dot - 1
	if x < 0 || x >= 256 || p.scanline < 0 || p.scanline >= visibleScanlines {
		return
	}
	p.frameBuffer[p.scanline*256+x] = colorIndex
}

func (p *PPU) backgroundPixelAt() (pixel, palette uint8) {
	mux := uint16(0x8000) >> p.x
	lo, hi := uint8(0), uint8(0)
	if p.bgShiftPatternLo&mux != 0 {
		lo = 1
	}
	if p.bgShiftPatternHi&mux != 0 {
		hi = 1
	}
	pixel = hi<<1 | lo

	aLo, aHi := uint8(0), uint8(0)
	if p.bgShiftAttrLo&mux != 0 {
		aLo = 1
	}
	if p.bgShiftAttrHi&mux != 0 {
		aHi = 1
	}
	palette = aHi<<1 | aLo
	return
}

// evaluateSprites scans OAM for up to 8 sprites visible on the next
// scanline. Once 8 are found, a further in-range sprite sets the
// overflow flag while the scan continues with the hardware's buggy
// "diagonal" OAM stepping, reproducing real sprite-overflow mis-detects.
func (p *PPU) evaluateSprites() {
	spriteHeight := 8
	if p.ctrl&ctrlSpriteSize != 0 {
		spriteHeight = 16
	}

	p.spriteCount = 0
	p.sprite0OnLine = false
	n, m := 0, 0
	for n < 64 {
		// m stays 0 until 8 sprites are found; after that every miss
		// advances it along with n, so the "Y" byte read drifts diagonally.
		y := p.oam[n*4+m]
		row := p.scanline - int(y)
		inRange := row >= 0 && row < spriteHeight
		if p.spriteCount < 8 {
			if inRange {
				copy(p.secondaryOAM[p.spriteCount*4:p.spriteCount*4+4], p.oam[n*4:n*4+4])
				p.spriteIsZero[p.spriteCount] = n == 0
				if n == 0 {
					p.sprite0OnLine = true
				}
				p.spriteCount++
			}
		} else if inRange {
			p.status |= statusOverflow
			break
		} else {
			m = (m + 1) & 3
		}
		n++
	}

	spriteHeight16 := p.ctrl&ctrlSpriteSize != 0
	patternTable := uint16(0)
	if !spriteHeight16 && p.ctrl&ctrlSpriteTable != 0 {
		patternTable = 0x1000
	}

	for i := 0; i < p.spriteCount; i++ {
		y := p.secondaryOAM[i*4]
		tile := p.secondaryOAM[i*4+1]
		attr := p.secondaryOAM[i*4+2]
		x := p.secondaryOAM[i*4+3]

		row := p.scanline - int(y)
		flipV := attr&0x80 != 0
		flipH := attr&0x40 != 0

		var addr uint16
		if spriteHeight16 {
			table := uint16(0)
			if tile&0x01 != 0 {
				table = 0x1000
			}
			tileIdx := tile &^ 0x01
			r := row
			if flipV {
				r = 15 - r
			}
			if r >= 8 {
				tileIdx++
				r -= 8
			}
			addr = table + uint16(tileIdx)*16 + uint16(r)
		} else {
			r := row
			if flipV {
				r = 7 - r
			}
			addr = patternTable + uint16(tile)*16 + uint16(r)
		}

		lo := p.bus.Read(addr)
		hi := p.bus.Read(addr + 8)
		if flipH {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.spritePatternsLo[i] = lo
		p.spritePatternsHi[i] = hi
		p.spriteAttrs[i] = attr
		p.spriteX[i] = x
	}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

func (p *PPU) spritePixelAt(x int) (pixel, palette uint8, priority bool, isZero bool) {
	for i := 0; i < p.spriteCount; i++ {
		offset := x - int(p.spriteX[i])
		if offset < 0 || offset > 7 {
			continue
		}
		lo := (p.spritePatternsLo[i] >> (7 - offset)) & 1
		hi := (p.spritePatternsHi[i] >> (7 - offset)) & 1
		px := hi<<1 | lo
		if px == 0 {
			continue
		}
		attr := p.spriteAttrs[i]
		return px, attr & 0x03, attr&0x20 != 0, p.spriteIsZero[i]
	}
	return 0, 0, false, false
}

func (p *PPU) updateNMILine() {
	if p.nmiCallback != nil {
		p.nmiCallback(p.nmiOutput && p.nmiOccurred)
	}
}

// ReadRegister implements the CPU-visible $2000-$2007 register reads.
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr & 0x07 {
	case 2:
		result := (p.status & 0xE0) | (p.busLatch & 0x1F)
		p.status &^= statusVBlank
		p.nmiOccurred = false
		p.updateNMILine()
		p.w = false
		p.busLatch = result
		return result
	case 4:
		p.busLatch = p.oam[p.oamAddr]
		return p.busLatch
	case 7:
		var result uint8
		addrV := uint16(p.v) & 0x3FFF
		if addrV < 0x3F00 {
			result = p.readBuffer
			p.readBuffer = p.bus.Read(addrV)
		} else {
			result = p.bus.Read(addrV)
			p.readBuffer = p.bus.Read(addrV - 0x1000)
		}
		p.advanceV()
		p.busLatch = result
		return result
	default:
		return p.busLatch
	}
}

// PeekRegister is a side-effect-free read used by disassemblers/tests.
func (p *PPU) PeekRegister(addr uint16) uint8 {
	switch addr & 0x07 {
	case 2:
		return (p.status & 0xE0) | (p.busLatch & 0x1F)
	case 4:
		return p.oam[p.oamAddr]
	case 7:
		return p.readBuffer
	default:
		return p.busLatch
	}
}

// WriteRegister implements the CPU-visible $2000-$2007 register writes.
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	p.busLatch = value
	switch addr & 0x07 {
	case 0:
		p.ctrl = value
		p.t.setNametable(uint16(value) & 0x03)
		p.nmiOutput = value&ctrlNMI != 0
		p.updateNMILine()
	case 1:
		p.mask = value
	case 3:
		p.oamAddr = value
	case 4:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5:
		if !p.w {
			p.x = value & 0x07
			p.t.setCoarseX(uint16(value) >> 3)
			p.w = true
		} else {
			p.t.setFineY(uint16(value) & 0x07)
			p.t.setCoarseY(uint16(value) >> 3)
			p.w = false
		}
	case 6:
		if !p.w {
			p.t = loopyReg(uint16(p.t)&0x00FF | (uint16(value)&0x3F)<<8)
			p.w = true
		} else {
			p.t = loopyReg(uint16(p.t)&0xFF00 | uint16(value))
			p.v = p.t
			p.w = false
		}
	case 7:
		p.bus.Write(uint16(p.v)&0x3FFF, value)
		p.advanceV()
	}
}

func (p *PPU) advanceV() {
	if p.ctrl&ctrlIncrement != 0 {
		p.v += 32
	} else {
		p.v++
	}
}

// WriteOAMByte is OAMDMA's per-byte hook: writes one byte at the current
// OAMADDR and increments it, matching the real $4014 transfer semantics.
func (p *PPU) WriteOAMByte(value uint8) {
	p.oam[p.oamAddr] = value
	p.oamAddr++
}

// PeekOAM reads primary OAM without disturbing OAMADDR, for tests and
// debuggers.
func (p *PPU) PeekOAM(addr uint8) uint8 {
	return p.oam[addr]
}
