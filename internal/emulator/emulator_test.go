package emulator

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestROM(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func nesROMBytes() []byte {
	data := make([]byte, 16+16*1024)
	copy(data[0:4], "NES\x1A")
	data[4] = 1
	return data
}

func gbROMBytes() []byte {
	data := make([]byte, 32*1024)
	h := data[0x100:]
	copy(h[0x34:0x44], "TESTROM")
	h[0x47] = 0x00
	h[0x48] = 0x00
	h[0x49] = 0x00
	return data
}

func TestEmulatorRunsAnNESRom(t *testing.T) {
	path := writeTestROM(t, "test.nes", nesROMBytes())

	e := New()
	if err := e.LoadROM(path); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if err := e.CreateContext(); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	w, h := e.GetDisplaySize()
	if w != 256 || h != 224 {
		t.Fatalf("GetDisplaySize = %dx%d, want 256x224", w, h)
	}

	buf := make([]uint32, w*h)
	e.SetRenderBuffer(buf, w)

	if !e.Execute() {
		t.Fatalf("Execute returned false on a freshly loaded rom")
	}

	samples := make([]int16, 735) // one frame's worth at 44.1kHz/60fps
	e.DrainSound(samples)
}

func TestEmulatorRunsAGBRom(t *testing.T) {
	path := writeTestROM(t, "test.gb", gbROMBytes())

	e := New()
	if err := e.LoadROM(path); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if err := e.CreateContext(); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	w, h := e.GetDisplaySize()
	if w != 160 || h != 144 {
		t.Fatalf("GetDisplaySize = %dx%d, want 160x144", w, h)
	}

	buf := make([]uint32, w*h)
	e.SetRenderBuffer(buf, w)

	if !e.Execute() {
		t.Fatalf("Execute returned false on a freshly loaded rom")
	}
}

func TestMaskInvalidDirectionsClearsOpposingBits(t *testing.T) {
	const up, down, left, right, a = 0x10, 0x20, 0x40, 0x80, 0x01

	got := maskInvalidDirections(up | down | a)
	if got != a {
		t.Fatalf("maskInvalidDirections(up|down|a) = %#02x, want %#02x", got, a)
	}

	got = maskInvalidDirections(left | right)
	if got != 0 {
		t.Fatalf("maskInvalidDirections(left|right) = %#02x, want 0", got)
	}

	got = maskInvalidDirections(up | left)
	if got != up|left {
		t.Fatalf("maskInvalidDirections(up|left) = %#02x, want unchanged %#02x", got, up|left)
	}
}

func TestSetControllerBeforeContextDoesNotPanic(t *testing.T) {
	e := New()
	e.SetController(0, 0xFF)
}

func TestExecuteWithoutContextReturnsFalse(t *testing.T) {
	e := New()
	if e.Execute() {
		t.Fatalf("Execute with no loaded context should return false")
	}
}
