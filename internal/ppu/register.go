package ppu

// loopyReg is the PPU's internal 15-bit scroll/address register, shared
// by v (current VRAM address) and t (temporary VRAM address):
//
//	yyy NN YYYYY XXXXX
//	||| || ||||| +++++-- coarse X scroll
//	||| || +++++-------- coarse Y scroll
//	||| ++-------------- nametable select
//	+++----------------- fine Y scroll
//
// Grounded on bdwalton-gintendo/ppu/loopy.go's field-accessor split,
// generalized to a value type manipulated by the PPU's register logic
// directly rather than hidden behind bit-setter methods only.
type loopyReg uint16

func (l loopyReg) coarseX() uint16     { return uint16(l) & 0x001F }
func (l loopyReg) coarseY() uint16     { return (uint16(l) >> 5) & 0x001F }
func (l loopyReg) nametable() uint16   { return (uint16(l) >> 10) & 0x0003 }
func (l loopyReg) fineY() uint16       { return (uint16(l) >> 12) & 0x0007 }
func (l loopyReg) nametableAddr() uint16 {
	return 0x2000 | (uint16(l) & 0x0FFF)
}

func (l *loopyReg) setCoarseX(v uint16)   { *l = loopyReg(uint16(*l)&^0x001F | v&0x001F) }
func (l *loopyReg) setCoarseY(v uint16)   { *l = loopyReg(uint16(*l)&^0x03E0 | (v&0x001F)<<5) }
func (l *loopyReg) setNametable(v uint16) { *l = loopyReg(uint16(*l)&^0x0C00 | (v&0x0003)<<10) }
func (l *loopyReg) setFineY(v uint16)     { *l = loopyReg(uint16(*l)&^0x7000 | (v&0x0007)<<12) }

// incrementCoarseX implements the hardware's coarse-X increment with
// nametable-X wraparound.
func (l *loopyReg) incrementCoarseX() {
	if l.coarseX() == 31 {
		*l = loopyReg(uint16(*l) &^ 0x001F)
		*l ^= 0x0400 // flip horizontal nametable bit
	} else {
		*l++
	}
}

// incrementY implements the hardware's fine-Y/coarse-Y increment with
// the 30-row nametable wraparound (rows 30-31 are the attribute table,
// skipped even though they're addressable).
func (l *loopyReg) incrementY() {
	if l.fineY() < 7 {
		*l += 0x1000
		return
	}
	*l &^= 0x7000
	y := l.coarseY()
	switch y {
	case 29:
		y = 0
		*l ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	l.setCoarseY(y)
}
