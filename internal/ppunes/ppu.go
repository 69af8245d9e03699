// Package ppunes implements the NES Picture Processing Unit (2C02): CPU
// register IO, background/sprite compositing, the nametable mirroring the
// cartridge mapper selects, and the master-clock Listener contract.
// Grounded on the teacher's internal/ppu/ppu.go register and timing model,
// generalized onto the membus.Bus/clock.Tick architecture shared with
// cpu6502 and the nesmapper package, which depends on this package's
// PPUHost surface (CHRBus/SetMirroring/AddScanlineListener).
package ppunes

import (
	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

const (
	FrameWidth  = 256
	FrameHeight = 240
)

// PPU is the NES 2C02 core. CHR data lives behind chrBus, owned by the
// cartridge mapper; nametables and palette RAM live inside the PPU.
type PPU struct {
	ctrl, mask, status uint8
	oamAddr            uint8
	v, t               uint16
	x                  uint8
	w                  bool
	readBuffer         uint8

	oam          [256]uint8
	secondaryOAM [8]spriteSlot
	spriteCount  int

	nametables [2][0x400]byte
	palette    [32]byte
	mirroring  rom.Mirroring

	chrBus *membus.Bus

	scanline int
	cycle    int
	oddFrame bool

	frameBuffer [FrameWidth * FrameHeight]uint32

	tick         clock.Tick
	desiredTicks clock.Tick

	scanlineListeners []func(tick clock.Tick)
}

type spriteSlot struct {
	y, tile, attr, x uint8
	index            uint8
}

// New returns a PPU with its own CHR bus (populated by the mapper via
// AddRange) and default NES palette/nametable memory.
func New() *PPU {
	p := &PPU{chrBus: membus.New(13, 8)}
	p.Reset()
	return p
}

func (p *PPU) Reset() {
	p.ctrl, p.mask, p.status = 0, 0, 0xA0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.readBuffer = 0
	p.scanline, p.cycle = -1, 0
	p.oddFrame = false
	p.tick, p.desiredTicks = 0, 0
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0
	}
}

// CHRBus exposes the PPU's character (pattern table) bus so a mapper's
// Initialize can install CHR-ROM/RAM ranges on it.
func (p *PPU) CHRBus() *membus.Bus { return p.chrBus }

// SetMirroring is called by the cartridge mapper once it knows the board's
// nametable mirroring (fixed, or switched by a mapper register).
func (p *PPU) SetMirroring(m rom.Mirroring) { p.mirroring = m }

// AddScanlineListener registers a callback invoked once at the start of
// each visible scanline (cycle 0), the mapper's A12-edge IRQ counters'
// input signal approximated at scanline granularity.
func (p *PPU) AddScanlineListener(fn func(tick clock.Tick)) {
	p.scanlineListeners = append(p.scanlineListeners, fn)
}

// FrameBuffer returns the completed frame's RGB pixels, row-major.
func (p *PPU) FrameBuffer() *[FrameWidth * FrameHeight]uint32 { return &p.frameBuffer }

// NMIActive reports whether the PPU currently wants to assert NMI,
// polled by the Context each step so cpu6502.SetNMI can edge-detect it.
func (p *PPU) NMIActive() bool {
	return p.status&0x80 != 0 && p.ctrl&0x80 != 0
}

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

func (p *PPU) stepDot() {
	p.tick++
	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.oddFrame = !p.oddFrame
		}
	}

	if p.scanline >= 0 && p.scanline < FrameHeight && p.cycle == 0 {
		p.evaluateSprites()
		p.renderScanline(p.scanline)
		for _, fn := range p.scanlineListeners {
			fn(p.tick)
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.status |= 0x80
	}
	if p.scanline == -1 && p.cycle == 1 {
		p.status &^= 0xE0 // clear VBL, sprite 0 hit, sprite overflow
	}
	if p.scanline == 0 && p.cycle == 1 && p.renderingEnabled() {
		p.v = p.t
	}
}

func (p *PPU) renderingEnabled() bool { return p.mask&0x18 != 0 }

// --- CPU-visible register IO, $2000-$2007 ---

func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr & 7 {
	case 2:
		status := p.status
		p.status &^= 0xC0
		p.w = false
		return status
	case 4:
		return p.oam[p.oamAddr]
	case 7:
		return p.readPPUData()
	default:
		return p.status & 0x1F
	}
}

func (p *PPU) WriteRegister(addr uint16, value uint8) {
	switch addr & 7 {
	case 0:
		p.ctrl = value
		p.t = (p.t &^ 0x0C00) | (uint16(value)&0x03)<<10
	case 1:
		p.mask = value
	case 3:
		p.oamAddr = value
	case 4:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5:
		p.writeScroll(value)
	case 6:
		p.writeAddr(value)
	case 7:
		p.writePPUData(value)
	}
}

// WriteOAMByte supports OAM DMA ($4014), writing 256 bytes starting at
// oamAddr without disturbing the register's auto-increment semantics.
func (p *PPU) WriteOAMByte(value uint8) {
	p.oam[p.oamAddr] = value
	p.oamAddr++
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = (p.t &^ 0x001F) | uint16(value>>3)
		p.x = value & 0x07
	} else {
		p.t = (p.t &^ 0x73E0) | (uint16(value&0x07)<<12 | uint16(value&0xF8)<<2)
	}
	p.w = !p.w
}

func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = (p.t &^ 0xFF00) | (uint16(value&0x3F) << 8)
	} else {
		p.t = (p.t &^ 0x00FF) | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&0x04 != 0 {
		return 32
	}
	return 1
}

func (p *PPU) readPPUData() uint8 {
	addr := p.v & 0x3FFF
	var value uint8
	if addr >= 0x3F00 {
		value = p.readPalette(addr)
		p.readBuffer = p.readVRAM(addr - 0x1000)
	} else {
		value = p.readBuffer
		p.readBuffer = p.readVRAM(addr)
	}
	p.v += p.vramIncrement()
	return value
}

func (p *PPU) writePPUData(value uint8) {
	addr := p.v & 0x3FFF
	if addr >= 0x3F00 {
		p.writePalette(addr, value)
	} else {
		p.writeVRAM(addr, value)
	}
	p.v += p.vramIncrement()
}

// readVRAM/writeVRAM dispatch $0000-$1FFF to the mapper's CHR bus and
// $2000-$2FFF to the PPU's own nametable RAM through the current mirroring.
func (p *PPU) readVRAM(addr uint16) uint8 {
	if addr < 0x2000 {
		return p.chrBus.Read(p.tick, uint32(addr))
	}
	table, off := p.nametableSlot(addr)
	return p.nametables[table][off]
}

func (p *PPU) writeVRAM(addr uint16, value uint8) {
	if addr < 0x2000 {
		p.chrBus.Write(p.tick, uint32(addr), value)
		return
	}
	table, off := p.nametableSlot(addr)
	p.nametables[table][off] = value
}

func (p *PPU) nametableSlot(addr uint16) (int, uint16) {
	index := (addr - 0x2000) / 0x400 % 4
	off := (addr - 0x2000) % 0x400
	switch p.mirroring {
	case rom.MirrorHorizontal:
		return int(index / 2), off
	case rom.MirrorVertical:
		return int(index % 2), off
	case rom.MirrorSingleScreen0:
		return 0, off
	case rom.MirrorSingleScreen1:
		return 1, off
	default: // four-screen: fold onto the two physical banks, matching
		// the same degraded behavior as boards without extra VRAM.
		return int(index % 2), off
	}
}

func (p *PPU) readPalette(addr uint16) uint8 {
	return p.palette[paletteIndex(addr)]
}

func (p *PPU) writePalette(addr uint16, value uint8) {
	p.palette[paletteIndex(addr)] = value & 0x3F
}

func paletteIndex(addr uint16) uint16 {
	idx := addr & 0x1F
	if idx&0x13 == 0x10 {
		idx &^= 0x10 // $3F10/$14/$18/$1C mirror the universal background entries
	}
	return idx
}

// Serialize writes the PPU's register file, OAM, nametables and palette.
// The frame buffer is not included; it is reproduced by rendering.
func (p *PPU) Serialize(w *serialize.Writer) {
	w.Version(1)
	w.PutUint8(p.ctrl)
	w.PutUint8(p.mask)
	w.PutUint8(p.status)
	w.PutUint8(p.oamAddr)
	w.PutUint16(p.v)
	w.PutUint16(p.t)
	w.PutUint8(p.x)
	w.PutBool(p.w)
	w.PutUint8(p.readBuffer)
	w.PutBytes(p.oam[:])
	w.PutBytes(p.nametables[0][:])
	w.PutBytes(p.nametables[1][:])
	w.PutBytes(p.palette[:])
	w.PutUint8(uint8(p.mirroring))
	w.PutInt32(int32(p.scanline))
	w.PutInt32(int32(p.cycle))
	w.PutBool(p.oddFrame)
	w.PutInt32(int32(p.tick))
	w.PutInt32(int32(p.desiredTicks))
}

// Deserialize restores state written by Serialize.
func (p *PPU) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	p.ctrl = r.Uint8()
	p.mask = r.Uint8()
	p.status = r.Uint8()
	p.oamAddr = r.Uint8()
	p.v = r.Uint16()
	p.t = r.Uint16()
	p.x = r.Uint8()
	p.w = r.Bool()
	p.readBuffer = r.Uint8()
	copy(p.oam[:], r.Bytes())
	copy(p.nametables[0][:], r.Bytes())
	copy(p.nametables[1][:], r.Bytes())
	copy(p.palette[:], r.Bytes())
	p.mirroring = rom.Mirroring(r.Uint8())
	p.scanline = int(r.Int32())
	p.cycle = int(r.Int32())
	p.oddFrame = r.Bool()
	p.tick = clock.Tick(r.Int32())
	p.desiredTicks = clock.Tick(r.Int32())
	return r.Err()
}
