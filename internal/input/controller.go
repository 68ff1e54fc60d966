// Package input implements the NES standard controller: an 8-bit
// parallel-in/serial-out shift register read one bit per $4016/$4017
// access.
package input

// Button identifies one of the eight standard-controller buttons, in
// the wire order the shift register reports them.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller is one NES controller port.
type Controller struct {
	buttons       uint8
	shiftRegister uint8
	strobe        bool
}

// New constructs a controller with no buttons held.
func New() *Controller { return &Controller{} }

// SetButton updates one button's held state.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons replaces all eight button states at once, in A, B, Select,
// Start, Up, Down, Left, Right order.
func (c *Controller) SetButtons(pressed [8]bool) {
	var v uint8
	for i, p := range pressed {
		if p {
			v |= 1 << uint(i)
		}
	}
	c.buttons = v
}

// Write handles a $4016 strobe write. While strobe is held high the
// shift register continuously reloads from the live button state
// (so a read during strobe always reflects button A's current value);
// the falling edge latches the register for the eight-bit shift-out
// sequence that follows.
func (c *Controller) Write(value uint8) {
	c.strobe = value&1 != 0
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// Read returns the next bit of the shift register. Bits beyond the
// eighth read back as 1, matching open-bus behavior real controllers
// exhibit past their eight buttons.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.shiftRegister = c.buttons
		return c.shiftRegister & 1
	}
	bit := c.shiftRegister & 1
	c.shiftRegister = c.shiftRegister>>1 | 0x80
	return bit
}

// Reset clears held buttons and the shift register.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}
