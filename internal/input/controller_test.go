package input

import "testing"

func TestControllerStrobeLoadsShiftRegister(t *testing.T) {
	c := NewController()
	c.SetButton(ButtonA, true)
	c.SetButton(ButtonRight, true)
	c.Write(1) // strobe high
	if !c.IsPressed(ButtonA) {
		t.Error("expected A pressed")
	}
	c.Write(0) // strobe low, shift register latched
	first := c.Read()
	if first&1 != 1 {
		t.Errorf("expected bit 0 (A) set, got 0x%02X", first)
	}
}

func TestControllerShiftsOutAllEightButtons(t *testing.T) {
	c := NewController()
	c.SetButton(ButtonA, true)
	c.SetButton(ButtonRight, true)
	c.Write(1)
	c.Write(0)
	var bits [8]uint8
	for i := range bits {
		bits[i] = c.Read() & 1
	}
	if bits[0] != 1 {
		t.Error("expected A (bit 0) set")
	}
	if bits[7] != 1 {
		t.Error("expected Right (bit 7) set")
	}
}

func TestNESInputRoutesToBothPorts(t *testing.T) {
	in := NewNESInput()
	in.Controller1.SetButton(ButtonStart, true)
	in.Controller2.SetButton(ButtonA, true)
	in.Write(0x4016, 1)
	in.Write(0x4016, 0)
	if in.Read(0x4017)&1 != 1 {
		t.Error("expected controller2 A reflected on $4017")
	}
	in.Read(0x4016) // A
	in.Read(0x4016) // B
	in.Read(0x4016) // Select
	if in.Read(0x4016)&1 != 1 {
		t.Error("expected controller1 Start reflected on $4016")
	}
}

func TestGBJoypadSelectsDirectionRow(t *testing.T) {
	j := NewGBJoypad()
	j.SetDirection(uint8(GBRight), true)
	j.WriteJOYP(0xEF) // select direction (bit4=0), action deselected (bit5=1)
	v := j.ReadJOYP()
	if v&0x01 != 0 {
		t.Errorf("expected Right bit cleared (pressed, active low), got 0x%02X", v)
	}
}

func TestGBJoypadNoSelectReturnsAllOnes(t *testing.T) {
	j := NewGBJoypad()
	j.SetDirection(uint8(GBRight), true)
	j.WriteJOYP(0x30) // both rows deselected
	v := j.ReadJOYP()
	if v&0x0F != 0x0F {
		t.Errorf("expected all button bits high when no row selected, got 0x%02X", v)
	}
}

func TestGBJoypadAnyPressedRequiresSelection(t *testing.T) {
	j := NewGBJoypad()
	j.SetAction(uint8(GBStart), true)
	if j.AnyPressed() {
		t.Error("expected no interrupt trigger before action row is selected")
	}
	j.WriteJOYP(0xDF) // select action row
	if !j.AnyPressed() {
		t.Error("expected interrupt trigger once action row selected with Start pressed")
	}
}
