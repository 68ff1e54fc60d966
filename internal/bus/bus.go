// Package bus wires the CPU, PPU, APU, cartridge, and controllers into
// one system container and drives the cycle-by-cycle timing relationship
// between them: 1 CPU cycle to 3 PPU dots, OAMDMA's CPU-stealing DMA
// transfer, and IRQ/NMI line routing.
package bus

import (
	"nescore/internal/apu"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/memory"
	"nescore/internal/ppu"
)

// SampleRate is the audio sample rate the APU's mixer targets. 44.1kHz
// matches what Ebitengine's audio player expects without resampling.
const SampleRate = 44100

// oamDMATotal is the length, in stolen CPU cycles, of an OAMDMA transfer:
// 256 read/write pairs plus one alignment cycle, or two if DMA begins on
// an odd CPU cycle (the well-documented "+1 if odd" rule).
func oamDMATotal(startCycle uint64) int {
	if startCycle%2 == 1 {
		return 514
	}
	return 513
}

// oamDMA tracks an in-flight $4014 transfer one stolen CPU cycle at a
// time, so the system container can keep ticking the PPU/APU correctly
// across it instead of copying all 256 bytes instantly.
type oamDMA struct {
	active    bool
	page      uint8
	cycle     int
	total     int
	latchByte uint8
}

// Bus is the NES system container: it owns every component and is the
// only place that knows how they tick against each other.
type Bus struct {
	CPU   *cpu.CPU
	PPU   *ppu.PPU
	APU   *apu.APU
	Cart  *cartridge.Cartridge
	Ctrl1 *input.Controller
	Ctrl2 *input.Controller

	cpuBus *memory.CPUBus
	ppuBus *memory.PPUBus

	mapperIRQ   cartridge.IRQSource
	mapperClock cartridge.CPUClocked
	dma         oamDMA
}

// New builds a fully wired Bus around cart. The cartridge's Mapper
// supplies both the CPU's PRG space and the PPU's CHR/mirroring space.
func New(cart *cartridge.Cartridge) *Bus {
	b := &Bus{
		Cart:  cart,
		Ctrl1: input.New(),
		Ctrl2: input.New(),
	}

	b.ppuBus = memory.NewPPUBus(cart.Mapper, cart.Mapper)
	b.PPU = ppu.New(b.ppuBus, b.onNMILineChange)

	b.APU = apu.New(SampleRate, b.readPRGForDMC, b.requestDMCStall)

	b.cpuBus = memory.NewCPUBus(b.PPU, b.APU, b.Ctrl1, b.Ctrl2, cart.Mapper, b.startOAMDMA)
	b.CPU = cpu.New(b.cpuBus)

	if irqSrc, ok := cart.Mapper.(cartridge.IRQSource); ok {
		b.mapperIRQ = irqSrc
	}
	if clocked, ok := cart.Mapper.(cartridge.CPUClocked); ok {
		b.mapperClock = clocked
	}

	return b
}

// Reset puts every component back to its power-on/reset state.
func (b *Bus) Reset() {
	b.Cart.Mapper.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Ctrl1.Reset()
	b.Ctrl2.Reset()
	b.CPU.Reset()
	b.dma = oamDMA{}
}

// onNMILineChange adapts the PPU's "NMI condition currently active"
// level into the CPU's active-low NMI line convention, where SetNMI
// fires on the true-to-false (idle-to-asserted) transition.
func (b *Bus) onNMILineChange(active bool) {
	b.CPU.SetNMI(!active)
}

// readPRGForDMC services the DMC channel's sample-fetch DMA reads.
func (b *Bus) readPRGForDMC(addr uint16) uint8 {
	return b.cpuBus.Read(addr)
}

// requestDMCStall asks the CPU to steal cycles for a DMC sample fetch.
// The DMC calls it just before fetching the byte through readPRGForDMC,
// which reads synchronously; unlike OAMDMA, no per-cycle interleave is
// done here beyond holding the CPU back the right number of cycles.
func (b *Bus) requestDMCStall(cycles int) {
	b.CPU.Stall(cycles)
}

// startOAMDMA begins a $4014 write. The CPU is stalled for the whole
// transfer up front; advanceOAMDMA then drains it one stolen cycle at a
// time from Step so the PPU/APU keep ticking across the 513-514 cycles
// a real transfer takes instead of the copy completing instantly.
func (b *Bus) startOAMDMA(page uint8) {
	total := oamDMATotal(b.CPU.Cycles())
	b.dma = oamDMA{active: true, page: page, total: total}
	b.CPU.Stall(total)
}

// advanceOAMDMA runs one stolen cycle of an in-flight OAMDMA transfer.
// The first cycle (two if the transfer started on an odd CPU cycle) is
// a dummy alignment cycle; the remaining 512 alternate a PRG/RAM read
// with an OAM write, exactly mirroring real 2A03 DMA behavior.
func (b *Bus) advanceOAMDMA() {
	if !b.dma.active {
		return
	}
	dummy := b.dma.total - 512
	if b.dma.cycle >= dummy {
		rel := b.dma.cycle - dummy
		if rel%2 == 0 {
			b.dma.latchByte = b.cpuBus.Read(uint16(b.dma.page)<<8 | uint16(rel/2))
		} else {
			b.PPU.WriteOAMByte(b.dma.latchByte)
		}
	}
	b.dma.cycle++
	if b.dma.cycle >= b.dma.total {
		b.dma.active = false
	}
}

// tickSubsystems advances the PPU three dots and the APU one cycle for
// a single CPU cycle, the fixed 3:1 ratio the NES's shared clock divider
// produces.
func (b *Bus) tickSubsystems() {
	b.PPU.Tick()
	b.PPU.Tick()
	b.PPU.Tick()
	b.APU.Step()
	if b.mapperClock != nil {
		b.mapperClock.Tick()
	}
}

// Step advances the system by one CPU instruction, or by one stolen
// cycle if a DMA transfer is currently draining. It keeps the IRQ line
// current (APU frame/DMC IRQ ORed with any mapper IRQ source) before
// every instruction dispatch.
func (b *Bus) Step() {
	if b.CPU.Stalled() {
		b.CPU.StealCycle()
		b.tickSubsystems()
		b.advanceOAMDMA()
		return
	}

	irq := b.APU.IRQLine()
	if b.mapperIRQ != nil && b.mapperIRQ.CheckIRQ() {
		irq = true
	}
	b.CPU.SetIRQ(irq)

	cycles := b.CPU.Step()
	for i := uint64(0); i < cycles; i++ {
		b.tickSubsystems()
	}
}

// RunFrame steps the system until the PPU completes one more frame than
// it had when RunFrame was called.
func (b *Bus) RunFrame() {
	start := b.PPU.Frame()
	for b.PPU.Frame() == start {
		b.Step()
	}
}

// FrameBuffer exposes the PPU's current 256x240 indexed-color framebuffer.
func (b *Bus) FrameBuffer() []uint8 { return b.PPU.FrameBuffer() }

// AudioOutput exposes the APU's mixed sample stream.
func (b *Bus) AudioOutput() <-chan float32 { return b.APU.Output }
