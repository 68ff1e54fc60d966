package cartridge

import "nescore/internal/memory"

// mmc2 implements mappers 9 (MMC2, Punch-Out!!) and 10 (MMC4, Fire
// Emblem): two latch-switched 4KB CHR banks, the latch flipping whenever
// the PPU fetches one of four specific tile indices. MMC2 switches an 8KB
// PRG window at $8000 with three fixed 8KB banks above it; MMC4 switches
// a 16KB window at $8000 with one fixed 16KB bank at $C000.
type mmc2 struct {
	prg []uint8
	chr []uint8
	mmc4 bool

	prgBank  uint8
	chrBank0a, chrBank0b uint8 // $0000 region, selected by latch0
	chrBank1a, chrBank1b uint8 // $1000 region, selected by latch1
	latch0, latch1 bool        // false selects the 'a' bank (FD), true selects 'b' (FE)

	mirror memory.Mirroring
}

func newMMC2(prg, chr []uint8, chrIsRAM bool, mirror memory.Mirroring, mmc4 bool) *mmc2 {
	return &mmc2{prg: prg, chr: chr, mirror: mirror, mmc4: mmc4}
}

func (m *mmc2) banks8k() int { return len(m.prg) / 8192 }

func (m *mmc2) ReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		return 0
	}
	if m.mmc4 {
		banks16k := len(m.prg) / 16384
		if addr < 0xC000 {
			bank := int(m.prgBank) % banks16k
			return m.prg[bank*16384+int(addr-0x8000)]
		}
		last := banks16k - 1
		return m.prg[last*16384+int(addr-0xC000)]
	}

	banks := m.banks8k()
	switch {
	case addr < 0xA000:
		bank := int(m.prgBank) % banks
		return m.prg[bank*8192+int(addr-0x8000)]
	case addr < 0xC000:
		return m.prg[(banks-3)*8192+int(addr-0xA000)]
	case addr < 0xE000:
		return m.prg[(banks-2)*8192+int(addr-0xC000)]
	default:
		return m.prg[(banks-1)*8192+int(addr-0xE000)]
	}
}

func (m *mmc2) PeekPRG(addr uint16) uint8 { return m.ReadPRG(addr) }

func (m *mmc2) WritePRG(addr uint16, value uint8) {
	switch {
	case addr < 0x8000:
		return
	case addr < 0xA000:
		return
	case addr < 0xB000:
		m.prgBank = value
	case addr < 0xC000:
		m.chrBank0a = value & 0x1F
	case addr < 0xD000:
		m.chrBank0b = value & 0x1F
	case addr < 0xE000:
		m.chrBank1a = value & 0x1F
	case addr < 0xF000:
		m.chrBank1b = value & 0x1F
	default:
		if value&0x01 == 0 {
			m.mirror = memory.MirrorVertical
		} else {
			m.mirror = memory.MirrorHorizontal
		}
	}
}

func (m *mmc2) ReadCHR(addr uint16) uint8 {
	value := m.fetchCHR(addr)
	m.updateLatch(addr)
	return value
}

func (m *mmc2) PeekCHR(addr uint16) uint8 { return m.fetchCHR(addr) }

func (m *mmc2) fetchCHR(addr uint16) uint8 {
	var bank uint8
	var off int
	if addr < 0x1000 {
		if !m.latch0 {
			bank = m.chrBank0a
		} else {
			bank = m.chrBank0b
		}
		off = int(addr)
	} else {
		if !m.latch1 {
			bank = m.chrBank1a
		} else {
			bank = m.chrBank1b
		}
		off = int(addr - 0x1000)
	}
	base := int(bank) * 4096
	idx := base + off
	if len(m.chr) == 0 {
		return 0
	}
	return m.chr[idx%len(m.chr)]
}

// updateLatch flips the relevant latch when the PPU fetches one of the
// trigger tile indices $FD/$FE at the top of either 4KB CHR region.
func (m *mmc2) updateLatch(addr uint16) {
	switch {
	case addr >= 0x0FD8 && addr <= 0x0FDF:
		m.latch0 = false
	case addr >= 0x0FE8 && addr <= 0x0FEF:
		m.latch0 = true
	case addr >= 0x1FD8 && addr <= 0x1FDF:
		m.latch1 = false
	case addr >= 0x1FE8 && addr <= 0x1FEF:
		m.latch1 = true
	}
}

func (m *mmc2) WriteCHR(addr uint16, value uint8) {
	// CHR is always ROM on real MMC2/MMC4 boards; writes are ignored.
}

func (m *mmc2) Mirroring() memory.Mirroring { return m.mirror }

func (m *mmc2) Reset() {
	m.latch0, m.latch1 = false, false
}
