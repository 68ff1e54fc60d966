// Package cartridge implements iNES/NES 2.0 ROM loading and the cartridge
// mapper family: PRG/CHR bank switching, nametable mirroring overrides,
// and scanline-counting IRQs.
package cartridge

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"nescore/internal/memory"
)

// LoadError reports a malformed or unsupported ROM file. No component
// state is mutated when a load fails.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string { return "cartridge: " + e.Reason }

// Mapper is the cartridge-side memory contract: CPU PRG space, PPU CHR
// space, and the current nametable mirroring mode. Every mapper in this
// package implements it.
type Mapper interface {
	memory.PRGSpace
	memory.CHRSpace
	memory.MirrorSource
	Reset()
}

// IRQSource is implemented by mappers with a scanline/cycle-counting IRQ
// (MMC3). CheckIRQ reports whether the IRQ line is currently asserted;
// the line is level-sensitive and stays asserted until the mapper's own
// register interface acknowledges it (MMC3: a $E000 write).
type IRQSource interface {
	CheckIRQ() bool
}

// CPUClocked is implemented by mappers that need a per-CPU-cycle timing
// hook (MMC1's consecutive-write suppression, which hardware implements
// by only sampling the shift register on alternating CPU cycles).
type CPUClocked interface {
	Tick()
}

// header is the 16-byte iNES/NES 2.0 header, decoded.
type header struct {
	prgBanks16k uint16
	chrBanks8k  uint16
	mapperID    uint16
	submapper   uint8
	mirroring   memory.Mirroring
	fourScreen  bool
	battery     bool
	hasTrainer  bool
	nes20       bool
}

// Load reads an iNES/NES 2.0 ROM from filename.
func Load(filename string) (*Cartridge, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses an iNES/NES 2.0 ROM image and constructs the
// mapper its header selects.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var raw [16]uint8
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, &LoadError{Reason: fmt.Sprintf("truncated header: %v", err)}
	}
	if string(raw[0:4]) != "NES\x1a" {
		return nil, &LoadError{Reason: "bad magic, not an iNES file"}
	}

	h := header{
		prgBanks16k: uint16(raw[4]),
		chrBanks8k:  uint16(raw[5]),
	}
	flags6 := raw[6]
	flags7 := raw[7]
	h.fourScreen = flags6&0x08 != 0
	h.hasTrainer = flags6&0x04 != 0
	h.battery = flags6&0x02 != 0
	if flags6&0x01 != 0 {
		h.mirroring = memory.MirrorVertical
	} else {
		h.mirroring = memory.MirrorHorizontal
	}
	if h.fourScreen {
		h.mirroring = memory.MirrorFourScreen
	}

	mapperLow := uint16(flags6 >> 4)
	mapperMid := uint16(flags7 & 0xF0)
	h.nes20 = flags7&0x0C == 0x08
	if h.nes20 {
		h.mapperID = mapperLow | mapperMid | uint16(raw[8]&0x0F)<<8
		h.submapper = raw[8] >> 4
		h.prgBanks16k |= uint16(raw[9]&0x0F) << 8
		h.chrBanks8k |= uint16(raw[9]&0xF0) << 4
	} else {
		h.mapperID = mapperLow | mapperMid
		// Archaic iNES: if this isn't NES 2.0 and the padding tail is
		// nonzero, the mapper-high nibble is usually garbage (DiskDude!
		// and similar header corruption); fall back to the low nibble.
		nonzeroTail := false
		for _, b := range raw[12:16] {
			if b != 0 {
				nonzeroTail = true
			}
		}
		if nonzeroTail {
			h.mapperID = mapperLow
		}
	}

	if h.hasTrainer {
		var trainer [512]uint8
		if _, err := io.ReadFull(r, trainer[:]); err != nil {
			return nil, &LoadError{Reason: "truncated trainer"}
		}
	}

	if h.prgBanks16k == 0 {
		return nil, &LoadError{Reason: "PRG-ROM size cannot be zero"}
	}
	prgROM := make([]uint8, int(h.prgBanks16k)*16384)
	if _, err := io.ReadFull(r, prgROM); err != nil {
		return nil, &LoadError{Reason: fmt.Sprintf("truncated PRG-ROM: %v", err)}
	}

	var chrROM []uint8
	chrIsRAM := h.chrBanks8k == 0
	if !chrIsRAM {
		chrROM = make([]uint8, int(h.chrBanks8k)*8192)
		if _, err := io.ReadFull(r, chrROM); err != nil {
			return nil, &LoadError{Reason: fmt.Sprintf("truncated CHR-ROM: %v", err)}
		}
	} else {
		chrROM = make([]uint8, 8192)
	}

	mapper, err := newMapper(h, prgROM, chrROM, chrIsRAM)
	if err != nil {
		return nil, err
	}

	glog.Infof("cartridge: mapper %d, PRG=%dKB CHR=%dKB mirroring=%v battery=%v",
		h.mapperID, len(prgROM)/1024, len(chrROM)/1024, h.mirroring, h.battery)

	return &Cartridge{Mapper: mapper, mapperID: h.mapperID, battery: h.battery}, nil
}

// Cartridge wraps the selected Mapper plus load-time metadata untouched
// by gameplay (mapper number, whether PRG-RAM is battery-backed —
// persistence itself is out of scope, see DESIGN.md Open Questions).
type Cartridge struct {
	Mapper
	mapperID uint16
	battery  bool
}

// MapperID returns the iNES/NES 2.0 mapper number this cartridge loaded.
func (c *Cartridge) MapperID() uint16 { return c.mapperID }

// HasBattery reports whether the header marked PRG-RAM as battery-backed.
func (c *Cartridge) HasBattery() bool { return c.battery }

func newMapper(h header, prgROM, chrROM []uint8, chrIsRAM bool) (Mapper, error) {
	switch h.mapperID {
	case 0:
		return newNROM(prgROM, chrROM, chrIsRAM, h.mirroring), nil
	case 1:
		return newMMC1(prgROM, chrROM, chrIsRAM, h.mirroring), nil
	case 2:
		return newUxROM(prgROM, chrROM, chrIsRAM, h.mirroring), nil
	case 3:
		return newCNROM(prgROM, chrROM, chrIsRAM, h.mirroring), nil
	case 4:
		return newMMC3(prgROM, chrROM, chrIsRAM, h.mirroring), nil
	case 7:
		return newAxROM(prgROM, chrROM, chrIsRAM), nil
	case 9:
		return newMMC2(prgROM, chrROM, chrIsRAM, h.mirroring, false), nil
	case 10:
		return newMMC2(prgROM, chrROM, chrIsRAM, h.mirroring, true), nil
	case 71:
		return newINES71(prgROM, chrROM, chrIsRAM, h.mirroring), nil
	default:
		return nil, &LoadError{Reason: fmt.Sprintf("unsupported mapper %d", h.mapperID)}
	}
}
