package context

import (
	"testing"

	"duoemu/internal/input"
	"duoemu/internal/rom"
)

// newTestNESRom builds the smallest valid NROM cartridge image: one 16KB
// PRG bank, no CHR ROM (mapper 0 falls back to CHR RAM), matching the iNES
// layout rom.parseNES expects.
func newTestNESRom(t *testing.T) *rom.Rom {
	t.Helper()
	data := make([]byte, 16+16*1024)
	copy(data[0:4], "NES\x1A")
	data[4] = 1 // 1 PRG bank
	data[5] = 0 // no CHR ROM

	r, err := rom.Parse(data)
	if err != nil {
		t.Fatalf("rom.Parse: %v", err)
	}
	if r.Description().System != rom.SystemNES {
		t.Fatalf("parsed as system %v, want SystemNES", r.Description().System)
	}
	return r
}

func TestNewNESContextBuildsAndResets(t *testing.T) {
	c, err := NewNESContext(newTestNESRom(t))
	if err != nil {
		t.Fatalf("NewNESContext: %v", err)
	}
	if !c.Valid() {
		t.Fatalf("freshly constructed Context should be Valid")
	}

	w, h := c.DisplaySize()
	if w != 256 || h != 224 {
		t.Fatalf("DisplaySize = %dx%d, want 256x224 (overscan-cropped)", w, h)
	}
}

func TestNESContextExecuteAdvancesAFrame(t *testing.T) {
	c, err := NewNESContext(newTestNESRom(t))
	if err != nil {
		t.Fatalf("NewNESContext: %v", err)
	}

	c.Execute()
	if !c.Valid() {
		t.Fatalf("Context should remain Valid after one frame of a blank ROM")
	}
}

func TestNESContextSetButtonDoesNotPanic(t *testing.T) {
	c, err := NewNESContext(newTestNESRom(t))
	if err != nil {
		t.Fatalf("NewNESContext: %v", err)
	}
	c.SetButton(0, input.ButtonA, true)
	c.SetButton(0, input.ButtonA, false)
}
