package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatMemory is a 64KB flat address space used to exercise the CPU in
// isolation from the rest of the bus.
type flatMemory struct {
	ram [0x10000]uint8
}

func (m *flatMemory) Read(addr uint16) uint8  { return m.ram[addr] }
func (m *flatMemory) Peek(addr uint16) uint8  { return m.ram[addr] }
func (m *flatMemory) Write(addr uint16, v uint8) { m.ram[addr] = v }

func newTestCPU(program ...uint8) (*CPU, *flatMemory) {
	mem := &flatMemory{}
	copy(mem.ram[0x8000:], program)
	mem.ram[0xFFFC] = 0x00
	mem.ram[0xFFFD] = 0x80
	c := New(mem)
	c.Reset()
	return c, mem
}

func TestReset_LoadsResetVector(t *testing.T) {
	c, _ := newTestCPU(0xEA)
	assert.Equal(t, uint16(0x8000), c.PC)
	assert.Equal(t, uint8(0xFD), c.SP)
	assert.True(t, c.I)
}

func TestLDA_Immediate_SetsZeroAndNegativeFlags(t *testing.T) {
	c, _ := newTestCPU(0xA9, 0x00, 0xA9, 0xFF)
	c.Step()
	assert.True(t, c.Z)
	assert.False(t, c.N)
	c.Step()
	assert.False(t, c.Z)
	assert.True(t, c.N)
	assert.Equal(t, uint8(0xFF), c.A)
}

func TestADC_SetsCarryAndOverflow(t *testing.T) {
	c, _ := newTestCPU(0xA9, 0x7F, 0x69, 0x01) // LDA #$7F ; ADC #$01
	c.Step()
	c.Step()
	assert.Equal(t, uint8(0x80), c.A)
	assert.True(t, c.V) // signed overflow: positive + positive = negative
	assert.False(t, c.C)
}

func TestBranch_TakenCrossingPageCostsExtraCycle(t *testing.T) {
	mem := &flatMemory{}
	// BNE +0x7F: operand fetch ends at $80FF, target $817E crosses into
	// the next page.
	mem.ram[0x80FD] = 0xD0
	mem.ram[0x80FE] = 0x7F
	mem.ram[0xFFFC] = 0xFD
	mem.ram[0xFFFD] = 0x80
	c := New(mem)
	c.Reset()
	c.Z = false // BNE taken
	cycles := c.Step()
	assert.Equal(t, uint64(4), cycles) // 2 base + 1 taken + 1 page cross
}

func TestJSR_RTS_RoundTrips(t *testing.T) {
	c, _ := newTestCPU(0x20, 0x05, 0x80, 0xEA, 0xEA, 0x60)
	c.Step() // JSR $8005
	assert.Equal(t, uint16(0x8005), c.PC)
	c.Step() // RTS
	assert.Equal(t, uint16(0x8003), c.PC)
}

func TestPHP_PushesBreakAndUnusedSet(t *testing.T) {
	c, mem := newTestCPU(0x08) // PHP
	c.Step()
	pushed := mem.Read(0x0100 + uint16(c.SP) + 1)
	assert.NotZero(t, pushed&0x10, "B flag must be set on PHP")
	assert.NotZero(t, pushed&0x20, "unused bit must be set")
}

func TestNMI_PushesBreakClear(t *testing.T) {
	c, mem := newTestCPU(0xEA)
	mem.ram[0xFFFA] = 0x00
	mem.ram[0xFFFB] = 0x90
	c.SetNMI(true)
	c.SetNMI(false) // falling edge arms the NMI
	c.ProcessPendingInterrupts()
	pushed := mem.Read(0x0100 + uint16(c.SP) + 1)
	assert.Zero(t, pushed&0x10, "B flag must be clear on hardware NMI")
	assert.NotZero(t, pushed&0x20, "unused bit must be set")
	assert.Equal(t, uint16(0x9000), c.PC)
}

func TestLAX_LoadsBothAAndX(t *testing.T) {
	c, mem := newTestCPU(0xA7, 0x10) // LAX $10
	mem.ram[0x0010] = 0x42
	c.Step()
	assert.Equal(t, uint8(0x42), c.A)
	assert.Equal(t, uint8(0x42), c.X)
}

func TestIndirectJMP_PageWrapBug(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[0x8000] = 0x6C
	mem.ram[0x8001] = 0xFF
	mem.ram[0x8002] = 0x30 // pointer = $30FF
	mem.ram[0x30FF] = 0x40
	mem.ram[0x3000] = 0x50 // bug: high byte read from $3000, not $3100
	mem.ram[0xFFFC] = 0x00
	mem.ram[0xFFFD] = 0x80
	c := New(mem)
	c.Reset()
	c.Step()
	assert.Equal(t, uint16(0x5040), c.PC)
}

func TestStall_ConsumesCyclesWithoutExecuting(t *testing.T) {
	c, _ := newTestCPU(0xEA)
	c.Stall(513)
	require.True(t, c.Stalled())
	for c.Stalled() {
		c.StealCycle()
	}
	assert.Equal(t, uint16(0x8000), c.PC) // no instruction executed
	assert.Equal(t, uint64(7+513), c.Cycles()) // 7 from Reset + 513 stalled
}

func TestTrace_FormatsAbsoluteJMP(t *testing.T) {
	c, _ := newTestCPU(0x4C, 0x00, 0x90) // JMP $9000
	line := c.Trace(21, 0)
	assert.Contains(t, line, "8000")
	assert.Contains(t, line, "JMP")
	assert.Contains(t, line, "$9000")
}
