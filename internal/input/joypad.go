package input

import "duoemu/internal/serialize"

// GBJoypad is the Game Boy JOYP ($FF00) register: writing selects which
// of the two 4-button rows (direction or action) is visible on the low
// nibble, which reads back active-low. Grounded on
// original_source/Gameboy/Joypad.h's single mButtons/mRegJOYP model.
type GBJoypad struct {
	directionButtons uint8 // bit0 Right,1 Left,2 Up,3 Down
	actionButtons    uint8 // bit0 A,1 B,2 Select,3 Start

	selectDirection bool
	selectAction    bool
}

type GBButton uint8

const (
	GBRight GBButton = 1 << iota
	GBLeft
	GBUp
	GBDown
)

const (
	GBA GBButton = 1 << iota
	GBB
	GBSelect
	GBStart
)

func NewGBJoypad() *GBJoypad { return &GBJoypad{} }

func (j *GBJoypad) Reset() {
	j.directionButtons = 0
	j.actionButtons = 0
	j.selectDirection = false
	j.selectAction = false
}

// SetDirection reports direction-pad state: bits per GBRight/Left/Up/Down.
func (j *GBJoypad) SetDirection(mask uint8, pressed bool) {
	if pressed {
		j.directionButtons |= mask
	} else {
		j.directionButtons &^= mask
	}
}

// SetAction reports action-button state: bits per GBA/GBB/GBSelect/GBStart.
func (j *GBJoypad) SetAction(mask uint8, pressed bool) {
	if pressed {
		j.actionButtons |= mask
	} else {
		j.actionButtons &^= mask
	}
}

// AnyPressed reports whether any currently-selected row has a button
// held. GBContext raises the joypad interrupt when this turns from false
// to true (a high-to-low transition on a selected input line).
func (j *GBJoypad) AnyPressed() bool {
	if j.selectDirection && j.directionButtons != 0 {
		return true
	}
	if j.selectAction && j.actionButtons != 0 {
		return true
	}
	return false
}

// ReadJOYP returns the JOYP register: bits 4/5 echo the select lines
// (active low), bits 0-3 the selected row's buttons (pressed = 0).
func (j *GBJoypad) ReadJOYP() uint8 {
	result := uint8(0xC0)
	if !j.selectDirection {
		result |= 0x10
	}
	if !j.selectAction {
		result |= 0x20
	}

	var rowBits uint8
	if j.selectDirection {
		rowBits |= j.directionButtons
	}
	if j.selectAction {
		rowBits |= j.actionButtons
	}
	result |= (^rowBits) & 0x0F
	return result
}

// WriteJOYP updates the row-select lines from bits 4/5 (active low).
func (j *GBJoypad) WriteJOYP(value uint8) {
	j.selectDirection = value&0x10 == 0
	j.selectAction = value&0x20 == 0
}

// Serialize writes the row-select lines and live button state.
func (j *GBJoypad) Serialize(w *serialize.Writer) {
	w.Version(1)
	w.PutUint8(j.directionButtons)
	w.PutUint8(j.actionButtons)
	w.PutBool(j.selectDirection)
	w.PutBool(j.selectAction)
}

// Deserialize restores state written by Serialize.
func (j *GBJoypad) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	j.directionButtons = r.Uint8()
	j.actionButtons = r.Uint8()
	j.selectDirection = r.Bool()
	j.selectAction = r.Bool()
	return r.Err()
}
