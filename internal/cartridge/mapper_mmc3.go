package cartridge

import "nescore/internal/memory"

// mmc3 is mapper 4: eight 1KB/2KB CHR banks and four 8KB PRG slots
// selected through a bank-select/bank-data register pair, plus a
// scanline-counting IRQ clocked on the PPU address line A12's rising
// edge (NotifyA12Rise, called by memory.PPUBus — the real trigger,
// rather than a per-scanline hook approximation).
type mmc3 struct {
	prg      []uint8
	chr      []uint8
	chrIsRAM bool

	bankSelect uint8
	regs       [8]uint8
	mirror     memory.Mirroring
	prgRAMProtect uint8
	sram       [0x2000]uint8

	irqLatch   uint8
	irqCounter uint8
	irqReload  bool
	irqEnabled bool
	irqPending bool
}

func newMMC3(prg, chr []uint8, chrIsRAM bool, mirror memory.Mirroring) *mmc3 {
	return &mmc3{prg: prg, chr: chr, chrIsRAM: chrIsRAM, mirror: mirror}
}

func (m *mmc3) banks8k() int { return len(m.prg) / 8192 }

func (m *mmc3) prgBankOffset(slot int) int {
	last := m.banks8k() - 1
	secondLast := last - 1
	if secondLast < 0 {
		secondLast = last
	}
	prgMode := (m.bankSelect >> 6) & 0x01
	r6 := int(m.regs[6]) % m.banks8k()
	r7 := int(m.regs[7]) % m.banks8k()

	switch slot {
	case 0: // $8000
		if prgMode == 0 {
			return r6
		}
		return secondLast
	case 1: // $A000
		return r7
	case 2: // $C000
		if prgMode == 0 {
			return secondLast
		}
		return r6
	default: // 3: $E000
		return last
	}
}

func (m *mmc3) ReadPRG(addr uint16) uint8 {
	if addr < 0x6000 {
		return 0
	}
	if addr < 0x8000 {
		return m.sram[addr-0x6000]
	}
	slot := int(addr-0x8000) / 0x2000
	bank := m.prgBankOffset(slot)
	off := bank*8192 + int(addr)%0x2000
	return m.prg[off]
}

func (m *mmc3) PeekPRG(addr uint16) uint8 { return m.ReadPRG(addr) }

func (m *mmc3) WritePRG(addr uint16, value uint8) {
	if addr < 0x8000 {
		if addr >= 0x6000 {
			m.sram[addr-0x6000] = value
		}
		return
	}
	even := addr%2 == 0
	switch {
	case addr < 0xA000:
		if even {
			m.bankSelect = value
		} else {
			m.regs[m.bankSelect&0x07] = value
		}
	case addr < 0xC000:
		if even {
			if value&0x01 == 0 {
				m.mirror = memory.MirrorVertical
			} else {
				m.mirror = memory.MirrorHorizontal
			}
		} else {
			m.prgRAMProtect = value
		}
	case addr < 0xE000:
		if even {
			m.irqLatch = value
		} else {
			m.irqCounter = 0
			m.irqReload = true
		}
	default:
		if even {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *mmc3) chrBankOffset(addr uint16) int {
	chrMode := (m.bankSelect >> 7) & 0x01
	region := addr / 0x0400 // 0..7
	if chrMode == 1 {
		region ^= 0x04
	}
	switch region {
	case 0:
		return int(m.regs[0]&0xFE)*1024 + int(addr&0x03FF)
	case 1:
		return (int(m.regs[0]&0xFE)+1)*1024 + int(addr&0x03FF)
	case 2:
		return int(m.regs[1]&0xFE)*1024 + int(addr&0x03FF)
	case 3:
		return (int(m.regs[1]&0xFE)+1)*1024 + int(addr&0x03FF)
	case 4:
		return int(m.regs[2])*1024 + int(addr&0x03FF)
	case 5:
		return int(m.regs[3])*1024 + int(addr&0x03FF)
	case 6:
		return int(m.regs[4])*1024 + int(addr&0x03FF)
	default:
		return int(m.regs[5])*1024 + int(addr&0x03FF)
	}
}

func (m *mmc3) ReadCHR(addr uint16) uint8 {
	if len(m.chr) == 0 {
		return 0
	}
	return m.chr[m.chrBankOffset(addr)%len(m.chr)]
}

func (m *mmc3) PeekCHR(addr uint16) uint8 { return m.ReadCHR(addr) }

func (m *mmc3) WriteCHR(addr uint16, value uint8) {
	if m.chrIsRAM {
		m.chr[m.chrBankOffset(addr)%len(m.chr)] = value
	}
}

func (m *mmc3) Mirroring() memory.Mirroring { return m.mirror }

// NotifyA12Rise clocks the scanline IRQ counter, called by memory.PPUBus
// on each rising edge of CHR address line A12.
func (m *mmc3) NotifyA12Rise() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

// CheckIRQ reports whether the scanline IRQ is currently asserted. The
// line stays asserted (level-triggered) until a $E000 write acknowledges it.
func (m *mmc3) CheckIRQ() bool {
	return m.irqPending
}

func (m *mmc3) Reset() {
	m.bankSelect = 0
	m.regs = [8]uint8{}
	m.irqCounter = 0
	m.irqLatch = 0
	m.irqReload = false
	m.irqEnabled = false
	m.irqPending = false
}
