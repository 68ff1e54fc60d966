package memory

import "github.com/golang/glog"

// PPURegisters is the subset of the PPU the CPU bus talks to: the eight
// memory-mapped registers at $2000-$2007, mirrored every 8 bytes up to
// $3FFF.
type PPURegisters interface {
	ReadRegister(addr uint16) uint8
	PeekRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
}

// APURegisters is the subset of the APU the CPU bus talks to.
type APURegisters interface {
	ReadStatus() uint8
	WriteRegister(addr uint16, value uint8)
}

// Controller is a single NES controller's shift-register port.
type Controller interface {
	Read() uint8
	Write(strobe uint8)
}

// PRGSpace is the cartridge-side CPU address space ($4020-$FFFF):
// PRG-ROM/RAM and mapper registers.
type PRGSpace interface {
	ReadPRG(addr uint16) uint8
	PeekPRG(addr uint16) uint8
	WritePRG(addr uint16, value uint8)
}

// CPUBus is the 16-bit address space the 6502 sees.
type CPUBus struct {
	*Bus
	ram  *ramRegion
	io   *ioRegion
	cart *cartRegion
}

// NewCPUBus wires internal RAM, the PPU/APU register windows, the
// controller ports, and the cartridge PRG space into one address space.
// oamDMA is invoked synchronously when the CPU writes $4014; the caller
// (the system container) is responsible for the cycle-accurate stall and
// byte transfer — this bus only reports that a DMA was requested.
func NewCPUBus(ppu PPURegisters, apu APURegisters, ctrl1, ctrl2 Controller, cart PRGSpace, oamDMA func(page uint8)) *CPUBus {
	ram := &ramRegion{}
	io := &ioRegion{ppu: ppu, apu: apu, ctrl1: ctrl1, ctrl2: ctrl2, oamDMA: oamDMA}
	cr := &cartRegion{cart: cart}

	cb := &CPUBus{ram: ram, io: io, cart: cr}
	cb.Bus = NewBus(ram, io, cr)
	return cb
}

// ramRegion implements $0000-$1FFF: 2KB internal RAM mirrored 4x.
type ramRegion struct {
	data [0x0800]uint8
}

func (r *ramRegion) Start() uint16 { return 0x0000 }
func (r *ramRegion) Size() uint16  { return 0x2000 }
func (r *ramRegion) Read(addr uint16) uint8 {
	return r.data[Mirror(addr, 0, 0x0800)]
}
func (r *ramRegion) Peek(addr uint16) uint8 { return r.Read(addr) }
func (r *ramRegion) Write(addr uint16, value uint8) {
	r.data[Mirror(addr, 0, 0x0800)] = value
}

// ioRegion implements $2000-$401F: PPU registers (mirrored every 8
// bytes through $3FFF), APU registers, OAMDMA, and the two controller
// ports, which alias $4016/$4017 between APU-frame-counter writes and
// controller reads.
type ioRegion struct {
	ppu    PPURegisters
	apu    APURegisters
	ctrl1  Controller
	ctrl2  Controller
	oamDMA func(page uint8)
}

func (r *ioRegion) Start() uint16 { return 0x2000 }
func (r *ioRegion) Size() uint16  { return 0x2020 }

func (r *ioRegion) Read(addr uint16) uint8 {
	switch {
	case addr < 0x4000:
		return r.ppu.ReadRegister(Mirror(addr, 0x2000, 8))
	case addr == 0x4014:
		return 0
	case addr == 0x4015:
		return r.apu.ReadStatus()
	case addr == 0x4016:
		return r.ctrl1.Read()
	case addr == 0x4017:
		return r.ctrl2.Read()
	default:
		return 0
	}
}

func (r *ioRegion) Peek(addr uint16) uint8 {
	if addr < 0x4000 {
		return r.ppu.PeekRegister(Mirror(addr, 0x2000, 8))
	}
	return r.Read(addr)
}

func (r *ioRegion) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x4000:
		r.ppu.WriteRegister(Mirror(addr, 0x2000, 8), value)
	case addr == 0x4014:
		r.oamDMA(value)
	case addr == 0x4016:
		r.ctrl1.Write(value)
		r.ctrl2.Write(value)
	case addr == 0x4015, addr == 0x4017:
		r.apu.WriteRegister(addr, value)
	case addr >= 0x4000 && addr <= 0x4013:
		r.apu.WriteRegister(addr, value)
	default:
		glog.V(2).Infof("unmapped CPU I/O write $%04X = $%02X", addr, value)
	}
}

// cartRegion implements $4020-$FFFF: cartridge PRG-ROM/RAM and mapper
// registers. With no cartridge loaded, reads return open bus (0) and
// writes are dropped.
type cartRegion struct {
	cart PRGSpace
}

func (r *cartRegion) Start() uint16 { return 0x4020 }
func (r *cartRegion) Size() uint16  { return 0xBFE0 }
func (r *cartRegion) Read(addr uint16) uint8 {
	if r.cart == nil {
		return 0
	}
	return r.cart.ReadPRG(addr)
}
func (r *cartRegion) Peek(addr uint16) uint8 {
	if r.cart == nil {
		return 0
	}
	return r.cart.PeekPRG(addr)
}
func (r *cartRegion) Write(addr uint16, value uint8) {
	if r.cart == nil {
		return
	}
	r.cart.WritePRG(addr, value)
}
