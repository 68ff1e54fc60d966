package cartridge

import "nescore/internal/memory"

// mmc1 is mapper 1: a 5-bit serial shift register feeding four internal
// registers (control, chrBank0, chrBank1, prgBank). Consecutive writes on
// back-to-back CPU cycles are suppressed by real hardware (the shift
// register only samples every other cycle); lastWriteCycle tracks that.
type mmc1 struct {
	prg  []uint8
	chr  []uint8
	sram [0x2000]uint8

	chrIsRAM bool

	shift    uint8
	shiftLen uint8

	control  uint8
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	lastWriteCycle int64
	haveLastWrite  bool

	cycles int64 // advanced by the caller via Tick, used only for write suppression
}

func newMMC1(prg, chr []uint8, chrIsRAM bool, _ memory.Mirroring) *mmc1 {
	m := &mmc1{prg: prg, chr: chr, chrIsRAM: chrIsRAM}
	m.control = 0x0C // power-on: PRG mode 3 (fix last bank), CHR mode 0
	m.resetShift()
	return m
}

func (m *mmc1) resetShift() {
	m.shift = 0
	m.shiftLen = 0
}

// Tick advances the mapper's notion of elapsed CPU cycles, used solely to
// detect and suppress consecutive-cycle writes to the shift register.
func (m *mmc1) Tick() { m.cycles++ }

func (m *mmc1) ReadPRG(addr uint16) uint8 {
	if addr < 0x6000 {
		return 0
	}
	if addr < 0x8000 {
		return m.sram[addr-0x6000]
	}
	bank, mode := m.prgBank&0x0F, (m.control>>2)&0x03
	banks16k := len(m.prg) / 16384
	switch mode {
	case 0, 1:
		full := (int(bank) &^ 1) % banks16k
		off := int(addr-0x8000) + full*16384
		return m.prg[off%len(m.prg)]
	case 2:
		if addr < 0xC000 {
			return m.prg[addr-0x8000]
		}
		off := int(bank)%banks16k*16384 + int(addr-0xC000)
		return m.prg[off]
	default: // 3: fix last bank at $C000, switch $8000
		if addr < 0xC000 {
			off := int(bank)%banks16k*16384 + int(addr-0x8000)
			return m.prg[off]
		}
		last := banks16k - 1
		return m.prg[last*16384+int(addr-0xC000)]
	}
}

func (m *mmc1) PeekPRG(addr uint16) uint8 { return m.ReadPRG(addr) }

func (m *mmc1) WritePRG(addr uint16, value uint8) {
	if addr < 0x8000 {
		if addr < 0x6000 || m.prgBank&0x10 != 0 {
			// Bit 4 of the PRG-bank register write-protects PRG-RAM.
			return
		}
		m.sram[addr-0x6000] = value
		return
	}

	if value&0x80 != 0 {
		m.resetShift()
		m.control |= 0x0C
		return
	}

	if m.haveLastWrite && m.cycles-m.lastWriteCycle < 2 {
		// Second write on a back-to-back cycle: hardware drops it.
		m.lastWriteCycle = m.cycles
		return
	}
	m.lastWriteCycle = m.cycles
	m.haveLastWrite = true

	m.shift |= (value & 0x01) << m.shiftLen
	m.shiftLen++
	if m.shiftLen < 5 {
		return
	}

	result := m.shift
	m.resetShift()

	switch {
	case addr < 0xA000:
		m.control = result
	case addr < 0xC000:
		m.chrBank0 = result
	case addr < 0xE000:
		m.chrBank1 = result
	default:
		m.prgBank = result
	}
}

func (m *mmc1) chrBank8k(addr uint16) int {
	mode := (m.control >> 4) & 0x01
	if mode == 0 {
		base := int(m.chrBank0 &^ 1)
		return base*4096 + int(addr&0x1FFF)
	}
	if addr < 0x1000 {
		return int(m.chrBank0)*4096 + int(addr)
	}
	return int(m.chrBank1)*4096 + int(addr-0x1000)
}

func (m *mmc1) ReadCHR(addr uint16) uint8 {
	off := m.chrBank8k(addr)
	if len(m.chr) == 0 {
		return 0
	}
	return m.chr[off%len(m.chr)]
}

func (m *mmc1) PeekCHR(addr uint16) uint8 { return m.ReadCHR(addr) }

func (m *mmc1) WriteCHR(addr uint16, value uint8) {
	if m.chrIsRAM {
		off := m.chrBank8k(addr)
		m.chr[off%len(m.chr)] = value
	}
}

func (m *mmc1) Mirroring() memory.Mirroring {
	switch m.control & 0x03 {
	case 0:
		return memory.MirrorSingleLower
	case 1:
		return memory.MirrorSingleUpper
	case 2:
		return memory.MirrorVertical
	default:
		return memory.MirrorHorizontal
	}
}

func (m *mmc1) Reset() {
	m.control |= 0x0C
	m.resetShift()
}
