package context

import (
	"testing"

	"duoemu/internal/input"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

// newTestGBRom builds the smallest valid ROM-only Game Boy cartridge image:
// a 32KB (2-bank) ROM with a header at $100 declaring cartridge type 0x00
// (ROM only, no RAM) and ROM size code 0x00 (2 banks), matching the layout
// rom.parseGB expects.
func newTestGBRom(t *testing.T) *rom.Rom {
	t.Helper()
	data := make([]byte, 32*1024)
	h := data[0x100:]
	copy(h[0x34:0x44], "TESTROM")
	h[0x47] = 0x00 // cartridge type: ROM only
	h[0x48] = 0x00 // ROM size: 2 banks (32KB)
	h[0x49] = 0x00 // RAM size: none

	r, err := rom.Parse(data)
	if err != nil {
		t.Fatalf("rom.Parse: %v", err)
	}
	if r.Description().System != rom.SystemGB {
		t.Fatalf("parsed as system %v, want SystemGB", r.Description().System)
	}
	return r
}

func TestNewGBContextBuildsAndResets(t *testing.T) {
	c, err := NewGBContext(newTestGBRom(t))
	if err != nil {
		t.Fatalf("NewGBContext: %v", err)
	}
	if !c.Valid() {
		t.Fatalf("freshly constructed Context should be Valid")
	}

	w, h := c.DisplaySize()
	if w <= 0 || h <= 0 {
		t.Fatalf("DisplaySize returned non-positive dimensions %dx%d", w, h)
	}
}

func TestGBContextExecuteAdvancesAFrame(t *testing.T) {
	c, err := NewGBContext(newTestGBRom(t))
	if err != nil {
		t.Fatalf("NewGBContext: %v", err)
	}

	c.Execute()
	if !c.Valid() {
		t.Fatalf("Context should remain Valid after one frame of a blank ROM")
	}
}

func TestGBContextDirectionAndActionButtonsAreIndependent(t *testing.T) {
	c, err := NewGBContext(newTestGBRom(t))
	if err != nil {
		t.Fatalf("NewGBContext: %v", err)
	}

	// GBRight and GBA share the bit value 1 in their respective iota
	// blocks; SetDirection/SetAction must not cross-wire them.
	c.SetDirection(input.GBRight, true)
	c.SetAction(input.GBA, false)
	c.joypad.WriteJOYP(0xEF) // select the direction row
	if !c.joypad.AnyPressed() {
		t.Fatalf("setting GBRight should register as a direction press")
	}
}

func TestGBContextSaveStateRoundTrips(t *testing.T) {
	c, err := NewGBContext(newTestGBRom(t))
	if err != nil {
		t.Fatalf("NewGBContext: %v", err)
	}
	c.Execute()
	c.Execute()

	w := serialize.NewWriter()
	c.SerializeGameState(w)

	c2, err := NewGBContext(newTestGBRom(t))
	if err != nil {
		t.Fatalf("NewGBContext (restore target): %v", err)
	}
	if err := c2.DeserializeGameState(serialize.NewReader(w.Bytes())); err != nil {
		t.Fatalf("DeserializeGameState: %v", err)
	}
}
