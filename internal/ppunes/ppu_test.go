package ppunes

import (
	"testing"

	"duoemu/internal/clock"
	"duoemu/internal/rom"
)

func TestRegisterWriteReadRoundTrip(t *testing.T) {
	p := New()
	p.WriteRegister(0x2000, 0x80) // enable NMI on vblank
	if p.ctrl != 0x80 {
		t.Errorf("ppuctrl: expected 0x80, got 0x%02X", p.ctrl)
	}
	p.status |= 0x80
	status := p.ReadRegister(0x2002)
	if status&0x80 == 0 {
		t.Error("ppustatus: expected vbl bit set on read")
	}
	if p.status&0x80 != 0 {
		t.Error("ppustatus: expected vbl bit cleared after read")
	}
}

func TestPPUDataAutoIncrement(t *testing.T) {
	p := New()
	p.SetMirroring(rom.MirrorHorizontal)
	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00) // v = 0x2000
	p.WriteRegister(0x2007, 0x42)
	if p.v != 0x2001 {
		t.Errorf("ppudata write: expected v=0x2001, got 0x%04X", p.v)
	}
	if p.nametables[0][0] != 0x42 {
		t.Errorf("nametable write: expected 0x42, got 0x%02X", p.nametables[0][0])
	}
}

func TestVBlankSetAtScanline241(t *testing.T) {
	p := New()
	p.SetDesiredTicks(clock.Tick(341*242 + 1))
	p.Execute()
	if p.status&0x80 == 0 {
		t.Error("expected vbl flag set after reaching scanline 241")
	}
}

func TestNMIActiveRequiresBothBits(t *testing.T) {
	p := New()
	p.status |= 0x80
	p.ctrl = 0
	if p.NMIActive() {
		t.Error("expected NMI inactive without PPUCTRL bit 7")
	}
	p.ctrl = 0x80
	if !p.NMIActive() {
		t.Error("expected NMI active with vbl and PPUCTRL bit 7 both set")
	}
}

func TestHorizontalMirroringMapsTablesInPairs(t *testing.T) {
	p := New()
	p.SetMirroring(rom.MirrorHorizontal)
	table, _ := p.nametableSlot(0x2000)
	table2, _ := p.nametableSlot(0x2400)
	if table != table2 {
		t.Error("horizontal mirroring: expected nametables 0 and 1 to share a physical bank")
	}
	table3, _ := p.nametableSlot(0x2800)
	if table == table3 {
		t.Error("horizontal mirroring: expected nametables 0 and 2 on different banks")
	}
}
