package apu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestAPU() *APU {
	return New(44100, func(uint16) uint8 { return 0 }, func(int) {})
}

func TestPulse_MutedWhenTimerPeriodBelowEight(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4000, 0x3F) // constant volume 15, duty 0
	a.WriteRegister(0x4002, 0x03) // timer low
	a.WriteRegister(0x4003, 0x00) // timer high=0, period=3 -> muted
	a.WriteRegister(0x4015, 0x01)
	assert.True(t, a.pulse1.muted())
	assert.Zero(t, a.pulse1.sample())
}

func TestPulse_LengthCounterLoadsFromTable(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4015, 0x01) // enable pulse1 first
	a.WriteRegister(0x4003, 0x08) // length index = 1 -> lengthTable[1] = 254
	assert.Equal(t, uint8(254), a.pulse1.lengthCounter)
}

func TestStatus_DisablingChannelViaFourFifteenClearsLength(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4015, 0x01)
	a.WriteRegister(0x4003, 0x08)
	assert.NotZero(t, a.ReadStatus()&0x01)
	a.WriteRegister(0x4015, 0x00)
	assert.Zero(t, a.pulse1.lengthCounter)
	assert.Zero(t, a.ReadStatus()&0x01)
}

func TestFrameSequencer_FourStepModeFiresIRQWhenEnabled(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4017, 0x00) // 4-step, IRQ enabled
	// The 4-cycle $4017 reset delay puts the 29828 IRQ step at cycle 29831.
	for i := 0; i < 29831; i++ {
		a.Step()
	}
	assert.True(t, a.frameIRQFlag)
	assert.True(t, a.IRQLine())
}

func TestFrameSequencer_WritingFourSeventeenIRQDisableSuppressesIRQ(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4017, 0x40) // IRQ disabled
	for i := 0; i < 29831; i++ {
		a.Step()
	}
	assert.False(t, a.frameIRQFlag)
}

func TestFrameSequencer_FiveStepWriteClocksImmediately(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4015, 0x04) // enable triangle
	a.WriteRegister(0x4008, 0x7F) // linear counter load = 127, halt clear... (control bit 0 = not halted)
	a.WriteRegister(0x400B, 0x00) // sets linearReload
	a.WriteRegister(0x4017, 0x80) // 5-step: clocks quarter+half immediately
	assert.Equal(t, uint8(127), a.triangle.linearCounter)
}

func TestNoise_FeedbackUsesModeSelectedTapBit(t *testing.T) {
	n := newNoise()
	n.shift = 0b0000_0000_0000_0001
	n.mode = false
	n.timerPeriod = 0
	n.clockTimer()
	assert.NotZero(t, n.shift&0x4000, "bit0 XOR bit1 feedback with shift=1 sets bit14")
}

func TestDMC_RefillsBufferAndDecrementsBytesLeft(t *testing.T) {
	a := newTestAPU()
	reads := 0
	a.dmc.readPRG = func(addr uint16) uint8 { reads++; return 0xFF }
	a.WriteRegister(0x4010, 0x00)
	a.WriteRegister(0x4012, 0x00) // sample addr $C000
	a.WriteRegister(0x4013, 0x00) // sample length = 1 byte
	a.WriteRegister(0x4015, 0x10) // enable DMC
	a.dmc.clockTimer()
	assert.Equal(t, 1, reads)
	assert.Equal(t, uint16(0), a.dmc.bytesLeft)
}

func TestMixer_SilentChannelsProduceZeroOutput(t *testing.T) {
	a := newTestAPU()
	out := pulseTable[0] + tndTable[0]
	assert.Zero(t, out)
}
