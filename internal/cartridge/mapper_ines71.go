package cartridge

import "nescore/internal/memory"

// ines71 is mapper 71 (Camerica/Codemasters): a 16KB PRG bank switched by
// writing $C000-$FFFF, with the last 16KB bank fixed at $C000-$FFFF.
// Some boards (Fire Hawk) also support single-screen mirroring control
// via $9000-$9FFF; CHR is always a fixed 8KB RAM bank.
type ines71 struct {
	prg    []uint8
	chr    []uint8
	mirror memory.Mirroring
	bank   uint8
}

func newINES71(prg, chr []uint8, chrIsRAM bool, mirror memory.Mirroring) *ines71 {
	return &ines71{prg: prg, chr: chr, mirror: mirror}
}

func (m *ines71) banks16k() int { return len(m.prg) / 16384 }

func (m *ines71) ReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		return 0
	}
	if addr < 0xC000 {
		bank := int(m.bank) % m.banks16k()
		return m.prg[bank*16384+int(addr-0x8000)]
	}
	last := m.banks16k() - 1
	return m.prg[last*16384+int(addr-0xC000)]
}

func (m *ines71) PeekPRG(addr uint16) uint8 { return m.ReadPRG(addr) }

func (m *ines71) WritePRG(addr uint16, value uint8) {
	switch {
	case addr >= 0x9000 && addr < 0xA000:
		if value&0x10 != 0 {
			m.mirror = memory.MirrorSingleUpper
		} else {
			m.mirror = memory.MirrorSingleLower
		}
	case addr >= 0xC000:
		m.bank = value & 0x0F
	}
}

func (m *ines71) ReadCHR(addr uint16) uint8 { return m.chr[addr&0x1FFF] }

func (m *ines71) PeekCHR(addr uint16) uint8 { return m.ReadCHR(addr) }

func (m *ines71) WriteCHR(addr uint16, value uint8) { m.chr[addr&0x1FFF] = value }

func (m *ines71) Mirroring() memory.Mirroring { return m.mirror }

func (m *ines71) Reset() { m.bank = 0 }
