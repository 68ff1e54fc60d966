package cartridge

import "nescore/internal/memory"

// axrom is mapper 7: a single switchable 32KB PRG bank, CHR-RAM only, and
// single-screen mirroring selected by the bank register's bit 4 (there is
// no hardware mirroring pin — this mapper never honors the header bit).
type axrom struct {
	prg    []uint8
	chr    []uint8
	bank   uint8
	mirror memory.Mirroring
}

func newAxROM(prg, chr []uint8, chrIsRAM bool) *axrom {
	return &axrom{prg: prg, chr: chr, mirror: memory.MirrorSingleLower}
}

func (m *axrom) banks32k() int {
	n := len(m.prg) / 32768
	if n == 0 {
		n = 1
	}
	return n
}

func (m *axrom) ReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		return 0
	}
	bank := int(m.bank&0x07) % m.banks32k()
	return m.prg[bank*32768+int(addr-0x8000)]
}

func (m *axrom) PeekPRG(addr uint16) uint8 { return m.ReadPRG(addr) }

func (m *axrom) WritePRG(addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	m.bank = value & 0x07
	if value&0x10 != 0 {
		m.mirror = memory.MirrorSingleUpper
	} else {
		m.mirror = memory.MirrorSingleLower
	}
}

func (m *axrom) ReadCHR(addr uint16) uint8 { return m.chr[addr&0x1FFF] }

func (m *axrom) PeekCHR(addr uint16) uint8 { return m.ReadCHR(addr) }

func (m *axrom) WriteCHR(addr uint16, value uint8) { m.chr[addr&0x1FFF] = value }

func (m *axrom) Mirroring() memory.Mirroring { return m.mirror }

func (m *axrom) Reset() { m.bank = 0 }
