// Package input implements controller handling shared by the NES and
// Game Boy cores: the NES's shift-register-based $4016/$4017 standard
// controller protocol, and the Game Boy's JOYP ($FF00) row-select
// register. Grounded on the teacher's original controller.go for the NES
// side, and on original_source/Gameboy/Joypad.h/.cpp for the JOYP model.
package input

import "duoemu/internal/serialize"

// Button represents an NES controller button.
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

// Controller is a NES standard controller: an 8-bit shift register loaded
// from the live button state while strobe is high, shifted out one bit
// per read of $4016/$4017 once strobe goes low.
type Controller struct {
	buttons       uint8
	shiftRegister uint8
	strobe        bool
}

func NewController() *Controller { return &Controller{} }

func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles a write to $4016: bit 0 is the strobe line. While strobe
// is high the shift register continuously reloads from the live button
// state.
func (c *Controller) Write(value uint8) {
	c.strobe = value&1 != 0
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// Read returns the next bit from the shift register, with the upper bits
// set per open-bus convention. While strobe is high, bit 0 always
// reflects the A button's current live state.
func (c *Controller) Read() uint8 {
	if c.strobe {
		return c.buttons&1 | 0x40
	}
	result := c.shiftRegister&1 | 0x40
	c.shiftRegister = c.shiftRegister>>1 | 0x80
	return result
}

func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}

// NESInput bundles the two NES controller ports behind $4016/$4017.
type NESInput struct {
	Controller1 *Controller
	Controller2 *Controller
}

func NewNESInput() *NESInput {
	return &NESInput{Controller1: NewController(), Controller2: NewController()}
}

func (in *NESInput) Reset() {
	in.Controller1.Reset()
	in.Controller2.Reset()
}

func (in *NESInput) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return in.Controller1.Read()
	case 0x4017:
		return in.Controller2.Read()
	default:
		return 0
	}
}

func (in *NESInput) Write(address uint16, value uint8) {
	if address == 0x4016 {
		in.Controller1.Write(value)
		in.Controller2.Write(value)
	}
}

// Serialize writes both controllers' shift-register state. Live button
// state is host input, not save-state data, but is included here so a
// save made mid-strobe restores the exact in-flight shift register.
func (in *NESInput) Serialize(w *serialize.Writer) {
	w.Version(1)
	serializeController(w, in.Controller1)
	serializeController(w, in.Controller2)
}

// Deserialize restores state written by Serialize.
func (in *NESInput) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	deserializeController(r, in.Controller1)
	deserializeController(r, in.Controller2)
	return r.Err()
}

func serializeController(w *serialize.Writer, c *Controller) {
	w.PutUint8(c.buttons)
	w.PutUint8(c.shiftRegister)
	w.PutBool(c.strobe)
}

func deserializeController(r *serialize.Reader, c *Controller) {
	c.buttons = r.Uint8()
	c.shiftRegister = r.Uint8()
	c.strobe = r.Bool()
}
