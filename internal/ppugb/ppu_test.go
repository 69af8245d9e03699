package ppugb

import (
	"testing"

	"duoemu/internal/clock"
)

type fakeBus struct {
	data [0x10000]uint8
}

func (b *fakeBus) Read(tick clock.Tick, addr uint32) uint8 { return b.data[addr&0xFFFF] }
func (b *fakeBus) Write(tick clock.Tick, addr uint32, value uint8) {
	b.data[addr&0xFFFF] = value
}

func TestResetState(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)
	if p.lcdc != 0x91 || p.bgp != 0xFC || p.obp0 != 0xFF || p.obp1 != 0xFF {
		t.Errorf("unexpected reset register values: lcdc=%02X bgp=%02X obp0=%02X obp1=%02X",
			p.lcdc, p.bgp, p.obp0, p.obp1)
	}
}

func TestRegisterWriteReadRoundTrip(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)
	p.WriteRegister(0xFF42, 0x10)
	p.WriteRegister(0xFF43, 0x20)
	if p.ReadRegister(0xFF42) != 0x10 || p.ReadRegister(0xFF43) != 0x20 {
		t.Error("expected SCY/SCX round trip")
	}
}

func TestLYIsReadOnly(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)
	p.WriteRegister(0xFF44, 0x50)
	if p.ReadRegister(0xFF44) != 0 {
		t.Error("expected LY write to be ignored")
	}
}

func TestVBlankRaisesInterruptAtLine144(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)
	p.SetDesiredTicks(clock.Tick(ticksPerLine*FrameHeight + 1))
	p.Execute()
	if bus.data[regIF]&0x01 == 0 {
		t.Error("expected vblank bit set in IF after reaching line 144")
	}
}

func TestLYCInterruptFiresOnMatch(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)
	p.WriteRegister(0xFF41, statLYCInt)
	p.WriteRegister(0xFF45, 5)
	p.SetDesiredTicks(clock.Tick(ticksPerLine*5 + 1))
	p.Execute()
	if bus.data[regIF]&0x02 == 0 {
		t.Error("expected lcdstat bit set in IF after LY==LYC")
	}
}

func TestOAMDMATransfersFromSource(t *testing.T) {
	bus := &fakeBus{}
	bus.data[0xC000] = 0xAB
	p := New(bus)
	p.WriteRegister(0xFF46, 0xC0)
	for i := 0; i < 0xA0; i++ {
		p.stepDMA()
	}
	if p.oam[0] != 0xAB {
		t.Errorf("expected OAM[0]=0xAB after DMA, got 0x%02X", p.oam[0])
	}
}

func TestBackgroundTileDecodesPixels(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)
	p.vram[0x1800] = 0 // tile 0 at (0,0) in map 0x9800, unsigned addressing
	p.lcdc |= lcdcTileData
	p.vram[0] = 0xFF // low plane all set
	p.vram[1] = 0x00
	var bgColor [FrameWidth]uint8
	p.renderBackgroundRow(0, &bgColor)
	if bgColor[0] != 1 {
		t.Errorf("expected color index 1 for all-low-bits tile row, got %d", bgColor[0])
	}
}

func TestClockListenerAdvance(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)
	p.SetDesiredTicks(clock.Tick(100))
	p.Execute()
	if p.tick != 100 {
		t.Errorf("expected tick=100, got %d", p.tick)
	}
	p.AdvanceClock(100)
	if p.tick != 0 || p.desiredTicks != 0 {
		t.Error("expected tick/desiredTicks reset after AdvanceClock consumed all ticks")
	}
}
