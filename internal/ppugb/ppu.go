// Package ppugb implements the Game Boy (DMG) picture processing unit:
// the LCDC/STAT/SCY/SCX/LY/LYC/BGP/OBP0/OBP1/WY/WX register file, VRAM and
// OAM storage, the mode-2/3/0/1 scanline state machine, and background,
// window and sprite compositing. Grounded on the teacher's ppunes package
// (per-scanline batch rendering over a clock.Listener) and on
// original_source/Gameboy/Display.cpp for the register set, timing
// constants and reset values; interrupt bit numbering follows
// original_source/Gameboy/Interrupts.h, dispatched through cpulr35902's
// direct IF-register model via the injected Bus.
package ppugb

import (
	"duoemu/internal/clock"
	"duoemu/internal/serialize"
)

const (
	FrameWidth  = 160
	FrameHeight = 144

	ticksPerLine  = 456
	totalLines    = 154
	oamDuration   = 80
	transferDur   = 172
	regIF         = 0xFF0F
)

const (
	lcdcEnable     = 0x80
	lcdcWindowMap  = 0x40
	lcdcWindowOn   = 0x20
	lcdcTileData   = 0x10
	lcdcBGMap      = 0x08
	lcdcObjSize    = 0x04
	lcdcObjOn      = 0x02
	lcdcBGOn       = 0x01

	statLYCInt   = 0x40
	statOAMInt   = 0x20
	statVBlkInt  = 0x10
	statHBlkInt  = 0x08
	statLYCEqual = 0x04
	statModeMask = 0x03
)

// Bus is the narrow view the PPU needs to raise interrupts (writing IF)
// and to read cartridge/WRAM space for OAM DMA transfers.
type Bus interface {
	Read(tick clock.Tick, addr uint32) uint8
	Write(tick clock.Tick, addr uint32, value uint8)
}

type spriteEntry struct {
	y, x, tile, attr uint8
	oamIndex         uint8
}

// PPU is the DMG LCD controller.
type PPU struct {
	lcdc, stat             uint8
	scy, scx               uint8
	ly, lyc                uint8
	bgp, obp0, obp1        uint8
	wy, wx                 uint8
	dma                    uint8

	vram [0x2000]byte
	oam  [0xA0]byte

	frameBuffer [FrameWidth * FrameHeight]uint32

	scanline   int
	cycle      int
	mode       uint8
	windowLine int

	dmaActive  bool
	dmaSource  uint16
	dmaOffset  int

	bus Bus

	tick, desiredTicks clock.Tick
}

// New returns a PPU wired to bus for interrupt delivery and DMA source reads.
func New(bus Bus) *PPU {
	p := &PPU{bus: bus}
	p.Reset()
	return p
}

// Reset applies the DMG power-on register state from Display::reset().
func (p *PPU) Reset() {
	p.lcdc = 0x91
	p.stat = 0x00
	p.scy, p.scx = 0, 0
	p.ly, p.lyc = 0, 0
	p.bgp = 0xFC
	p.obp0, p.obp1 = 0xFF, 0xFF
	p.wy, p.wx = 0, 0
	p.dma = 0
	p.scanline, p.cycle = 0, 0
	p.mode = 2
	p.windowLine = 0
	p.dmaActive = false
	p.tick, p.desiredTicks = 0, 0
}

func (p *PPU) FrameBuffer() *[FrameWidth * FrameHeight]uint32 { return &p.frameBuffer }

// --- clock.Listener ---

func (p *PPU) Execute() {
	for p.tick < p.desiredTicks {
		p.stepDot()
	}
}

func (p *PPU) SetDesiredTicks(ticks clock.Tick) { p.desiredTicks = ticks }

func (p *PPU) AdvanceClock(ticks clock.Tick) {
	p.tick -= ticks
	p.desiredTicks -= ticks
}

func (p *PPU) ResetClock() {
	p.tick = 0
	p.desiredTicks = 0
}

func (p *PPU) lcdEnabled() bool { return p.lcdc&lcdcEnable != 0 }

func (p *PPU) stepDot() {
	p.tick++
	if p.dmaActive {
		p.stepDMA()
	}
	if !p.lcdEnabled() {
		return
	}

	p.cycle++
	if p.cycle >= ticksPerLine {
		p.cycle = 0
		p.ly++
		if p.ly >= totalLines {
			p.ly = 0
			p.windowLine = 0
		}
		p.checkLYC()
	}

	if p.scanline != int(p.ly) {
		p.scanline = int(p.ly)
	}

	if p.ly < FrameHeight {
		switch {
		case p.cycle == 0:
			p.setMode(2)
		case p.cycle == oamDuration:
			p.setMode(3)
		case p.cycle == oamDuration+transferDur:
			p.renderScanline(int(p.ly))
			p.setMode(0)
		}
	} else if p.cycle == 0 && p.ly == FrameHeight {
		p.setMode(1)
		p.raiseInterrupt(0) // vblank
	}
}

func (p *PPU) setMode(mode uint8) {
	if p.mode == mode {
		return
	}
	p.mode = mode
	p.stat = (p.stat &^ statModeMask) | mode

	switch mode {
	case 0:
		if p.stat&statHBlkInt != 0 {
			p.raiseInterrupt(1)
		}
	case 1:
		if p.stat&statVBlkInt != 0 {
			p.raiseInterrupt(1)
		}
	case 2:
		if p.stat&statOAMInt != 0 {
			p.raiseInterrupt(1)
		}
	}
}

func (p *PPU) checkLYC() {
	if p.ly == p.lyc {
		if p.stat&statLYCEqual == 0 && p.stat&statLYCInt != 0 {
			p.raiseInterrupt(1)
		}
		p.stat |= statLYCEqual
	} else {
		p.stat &^= statLYCEqual
	}
}

// raiseInterrupt sets IF bit `signal` (0=vblank,1=lcdstat,2=timer,3=serial,
// 4=joypad), matching Interrupts::Signal.
func (p *PPU) raiseInterrupt(signal uint8) {
	cur := p.bus.Read(p.tick, regIF)
	p.bus.Write(p.tick, regIF, cur|(1<<signal))
}

func (p *PPU) stepDMA() {
	if p.dmaOffset >= 0xA0 {
		p.dmaActive = false
		return
	}
	p.oam[p.dmaOffset] = p.bus.Read(p.tick, uint32(p.dmaSource)+uint32(p.dmaOffset))
	p.dmaOffset++
	if p.dmaOffset >= 0xA0 {
		p.dmaActive = false
	}
}

// --- CPU-visible register and memory IO ---

func (p *PPU) ReadVRAM(addr uint16) uint8 { return p.vram[addr&0x1FFF] }
func (p *PPU) WriteVRAM(addr uint16, value uint8) {
	if p.mode != 3 {
		p.vram[addr&0x1FFF] = value
	}
}

func (p *PPU) ReadOAM(addr uint16) uint8 {
	if p.mode == 2 || p.mode == 3 {
		return 0xFF
	}
	return p.oam[addr&0xFF]
}

func (p *PPU) WriteOAM(addr uint16, value uint8) {
	if p.mode != 2 && p.mode != 3 {
		p.oam[addr&0xFF] = value
	}
}

func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case 0xFF40:
		return p.lcdc
	case 0xFF41:
		return p.stat | 0x80
	case 0xFF42:
		return p.scy
	case 0xFF43:
		return p.scx
	case 0xFF44:
		return p.ly
	case 0xFF45:
		return p.lyc
	case 0xFF46:
		return p.dma
	case 0xFF47:
		return p.bgp
	case 0xFF48:
		return p.obp0
	case 0xFF49:
		return p.obp1
	case 0xFF4A:
		return p.wy
	case 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

func (p *PPU) WriteRegister(addr uint16, value uint8) {
	switch addr {
	case 0xFF40:
		wasEnabled := p.lcdEnabled()
		p.lcdc = value
		if wasEnabled && !p.lcdEnabled() {
			p.ly, p.cycle, p.scanline = 0, 0, 0
			p.setMode(0)
		}
	case 0xFF41:
		p.stat = (p.stat & statModeMask) | (value &^ statModeMask)
	case 0xFF42:
		p.scy = value
	case 0xFF43:
		p.scx = value
	case 0xFF44:
		// LY is read-only on real hardware.
	case 0xFF45:
		p.lyc = value
		p.checkLYC()
	case 0xFF46:
		p.dma = value
		p.dmaActive = true
		p.dmaSource = uint16(value) << 8
		p.dmaOffset = 0
	case 0xFF47:
		p.bgp = value
	case 0xFF48:
		p.obp0 = value
	case 0xFF49:
		p.obp1 = value
	case 0xFF4A:
		p.wy = value
	case 0xFF4B:
		p.wx = value
	}
}

// Serialize writes the PPU's register file, VRAM and OAM. The frame
// buffer is not included; it is reproduced by rendering.
func (p *PPU) Serialize(w *serialize.Writer) {
	w.Version(1)
	w.PutUint8(p.lcdc)
	w.PutUint8(p.stat)
	w.PutUint8(p.scy)
	w.PutUint8(p.scx)
	w.PutUint8(p.ly)
	w.PutUint8(p.lyc)
	w.PutUint8(p.bgp)
	w.PutUint8(p.obp0)
	w.PutUint8(p.obp1)
	w.PutUint8(p.wy)
	w.PutUint8(p.wx)
	w.PutUint8(p.dma)
	w.PutBytes(p.vram[:])
	w.PutBytes(p.oam[:])
	w.PutInt32(int32(p.scanline))
	w.PutInt32(int32(p.cycle))
	w.PutUint8(p.mode)
	w.PutInt32(int32(p.windowLine))
	w.PutBool(p.dmaActive)
	w.PutUint16(p.dmaSource)
	w.PutInt32(int32(p.dmaOffset))
	w.PutInt32(int32(p.tick))
	w.PutInt32(int32(p.desiredTicks))
}

// Deserialize restores state written by Serialize.
func (p *PPU) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	p.lcdc = r.Uint8()
	p.stat = r.Uint8()
	p.scy = r.Uint8()
	p.scx = r.Uint8()
	p.ly = r.Uint8()
	p.lyc = r.Uint8()
	p.bgp = r.Uint8()
	p.obp0 = r.Uint8()
	p.obp1 = r.Uint8()
	p.wy = r.Uint8()
	p.wx = r.Uint8()
	p.dma = r.Uint8()
	copy(p.vram[:], r.Bytes())
	copy(p.oam[:], r.Bytes())
	p.scanline = int(r.Int32())
	p.cycle = int(r.Int32())
	p.mode = r.Uint8()
	p.windowLine = int(r.Int32())
	p.dmaActive = r.Bool()
	p.dmaSource = r.Uint16()
	p.dmaOffset = int(r.Int32())
	p.tick = clock.Tick(r.Int32())
	p.desiredTicks = clock.Tick(r.Int32())
	return r.Err()
}
