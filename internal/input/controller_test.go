package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRead_ReturnsButtonsInWireOrder(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, true, false, false, false, false, true}) // A, Select, Right
	c.Write(1)
	c.Write(0)
	var bits [8]uint8
	for i := range bits {
		bits[i] = c.Read() & 1
	}
	assert.Equal(t, [8]uint8{1, 0, 1, 0, 0, 0, 0, 1}, bits)
}

func TestRead_PastEighthBitReturnsOne(t *testing.T) {
	c := New()
	c.Write(1)
	c.Write(0)
	for i := 0; i < 8; i++ {
		c.Read()
	}
	assert.Equal(t, uint8(1), c.Read())
}

func TestRead_WhileStrobeHighAlwaysReturnsLiveButtonA(t *testing.T) {
	c := New()
	c.Write(1) // strobe held high
	c.SetButton(ButtonA, true)
	assert.Equal(t, uint8(1), c.Read())
	c.SetButton(ButtonA, false)
	assert.Equal(t, uint8(0), c.Read())
}

func TestReset_ClearsState(t *testing.T) {
	c := New()
	c.SetButton(ButtonStart, true)
	c.Write(1)
	c.Reset()
	c.Write(0)
	assert.Equal(t, uint8(0), c.Read())
}
