package context

import (
	"fmt"

	apu "duoemu/internal/apugb"
	"duoemu/internal/cartridge/gbmapper"
	"duoemu/internal/clock"
	"duoemu/internal/cpulr35902"
	"duoemu/internal/input"
	"duoemu/internal/membus"
	"duoemu/internal/ppugb"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

// Game Boy bus geometry: a flat 64KB CPU address space, paged in 256-byte
// windows.
const (
	gbAddrSpaceLog2 = 16
	gbPageSizeLog2  = 8

	gbTicksPerFrame = 456 * 154 // one T-state per master tick, DMG timing

	gbRegIE = 0xFFFF
)

// GBContext wires one Game Boy cartridge's mapper, a LR35902, a DMG PPU
// and APU onto a shared Clock. Unlike the NES, every Game Boy interrupt
// source (vblank, stat, timer, serial, joypad) raises through a single
// shared IF register the CPU polls directly, so GBContext has no IRQ
// mediation logic of its own beyond wiring the joypad's edge-triggered
// interrupt, which nothing else in the bus graph can raise on its own.
type GBContext struct {
	rom *rom.Rom

	cpuBus *membus.Bus
	clock  *clock.Clock

	cpu   *cpulr35902.CPU
	ppu   *ppugb.PPU
	apu   *apu.APU
	timer *gbTimer

	mapper gbmapper.Mapper
	joypad *input.GBJoypad

	wram   [0x2000]byte
	ifReg  [1]byte
	ieReg  [1]byte
	serial [2]byte

	valid bool
}

// NewGBContext builds a Context for r, returning an error if r's mapper is
// unsupported.
func NewGBContext(r *rom.Rom) (*GBContext, error) {
	mapper, err := gbmapper.New(r)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	c := &GBContext{
		rom:    r,
		cpuBus: membus.New(gbAddrSpaceLog2, gbPageSizeLog2),
		clock:  clock.New(),
		apu:    apu.New(),
		mapper: mapper,
		joypad: input.NewGBJoypad(),
		valid:  true,
	}

	cpuRead := membus.NewAccessor(c.cpuBus, membus.TableRead)
	cpuWrite := membus.NewAccessor(c.cpuBus, membus.TableWrite)
	view := busView{r: cpuRead, w: cpuWrite}
	c.cpu = cpulr35902.New(view)
	c.ppu = ppugb.New(view)
	c.timer = newGBTimer(view)

	c.clock.AddListener(c.cpu)
	c.clock.AddListener(c.ppu)
	c.clock.AddListener(c.apu)
	c.clock.AddListener(c.timer)

	c.installWRAM()
	c.installPPU()
	c.installIO()
	c.installInterruptRegs()

	if err := mapper.Initialize(gbmapper.Components{Rom: r, CPUBus: c.cpuBus}); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	c.Reset()
	return c, nil
}

func (c *GBContext) installWRAM() {
	c.cpuBus.AddReadWriteRange(0xC000, 0xDFFF, c.wram[:], 0xC000)
	c.cpuBus.AddReadWriteRange(0xE000, 0xFDFF, c.wram[:0x1E00], 0xE000) // echo RAM
}

func (c *GBContext) installPPU() {
	bank := membus.NewRegisterBank(0xFF40)
	names := [...]string{"LCDC", "STAT", "SCY", "SCX", "LY", "LYC", "DMA", "BGP", "OBP0", "OBP1", "WY", "WX"}
	for i, name := range names {
		addr := uint16(0xFF40 + i)
		bank.AddRegister(addr, name,
			func(_ clock.Tick, addr uint16) uint8 { return c.ppu.ReadRegister(addr) },
			func(_ clock.Tick, addr uint16, value uint8) { c.ppu.WriteRegister(addr, value) },
		)
	}
	c.cpuBus.AddRange(membus.TableRead, 0xFF40, 0xFF4B, bank.ReadAccess())
	c.cpuBus.AddRange(membus.TableWrite, 0xFF40, 0xFF4B, bank.WriteAccess())

	vramRead := membus.ReadCallback(func(_ any, _ clock.Tick, addr uint32) uint8 {
		return c.ppu.ReadVRAM(uint16(addr))
	}, nil, 0x8000)
	vramWrite := membus.WriteCallback(func(_ any, _ clock.Tick, addr uint32, value uint8) {
		c.ppu.WriteVRAM(uint16(addr), value)
	}, nil, 0x8000)
	c.cpuBus.AddRange(membus.TableRead, 0x8000, 0x9FFF, vramRead)
	c.cpuBus.AddRange(membus.TableWrite, 0x8000, 0x9FFF, vramWrite)

	oamRead := membus.ReadCallback(func(_ any, _ clock.Tick, addr uint32) uint8 {
		return c.ppu.ReadOAM(uint16(addr))
	}, nil, 0xFE00)
	oamWrite := membus.WriteCallback(func(_ any, _ clock.Tick, addr uint32, value uint8) {
		c.ppu.WriteOAM(uint16(addr), value)
	}, nil, 0xFE00)
	c.cpuBus.AddRange(membus.TableRead, 0xFE00, 0xFE9F, oamRead)
	c.cpuBus.AddRange(membus.TableWrite, 0xFE00, 0xFE9F, oamWrite)
}

// installIO installs JOYP ($FF00), the serial port stub ($FF01-$FF02, a
// Non-goal per spec so these are inert latches), the timer registers
// ($FF04-$FF07) and the APU register file ($FF10-$FF3F).
func (c *GBContext) installIO() {
	bank := membus.NewRegisterBank(0xFF00)
	bank.AddRegister(0xFF00, "JOYP",
		func(_ clock.Tick, _ uint16) uint8 { return c.joypad.ReadJOYP() },
		func(_ clock.Tick, _ uint16, value uint8) {
			before := c.joypad.AnyPressed()
			c.joypad.WriteJOYP(value)
			if !before && c.joypad.AnyPressed() {
				c.ifReg[0] |= 0x10
			}
		},
	)
	c.cpuBus.AddRange(membus.TableRead, 0xFF00, 0xFF00, bank.ReadAccess())
	c.cpuBus.AddRange(membus.TableWrite, 0xFF00, 0xFF00, bank.WriteAccess())

	c.cpuBus.AddReadWriteRange(0xFF01, 0xFF02, c.serial[:], 0xFF01)

	timerBank := membus.NewRegisterBank(0xFF04)
	for addr := uint16(0xFF04); addr <= 0xFF07; addr++ {
		addr := addr
		timerBank.AddRegister(addr, fmt.Sprintf("TIMER_%#04X", addr),
			func(_ clock.Tick, addr uint16) uint8 { return c.timer.ReadRegister(addr) },
			func(_ clock.Tick, addr uint16, value uint8) { c.timer.WriteRegister(addr, value) },
		)
	}
	c.cpuBus.AddRange(membus.TableRead, 0xFF04, 0xFF07, timerBank.ReadAccess())
	c.cpuBus.AddRange(membus.TableWrite, 0xFF04, 0xFF07, timerBank.WriteAccess())

	apuRead := membus.ReadCallback(func(_ any, _ clock.Tick, addr uint32) uint8 {
		return c.apu.ReadRegister(uint16(addr) + 0xFF10)
	}, nil, 0xFF10)
	apuWrite := membus.WriteCallback(func(_ any, _ clock.Tick, addr uint32, value uint8) {
		c.apu.WriteRegister(uint16(addr)+0xFF10, value)
	}, nil, 0xFF10)
	c.cpuBus.AddRange(membus.TableRead, 0xFF10, 0xFF3F, apuRead)
	c.cpuBus.AddRange(membus.TableWrite, 0xFF10, 0xFF3F, apuWrite)
}

// installInterruptRegs installs IF ($FF0F) and IE ($FFFF) as plain RAM
// cells: cpulr35902 reads and writes both directly, per its direct
// IF-register model.
func (c *GBContext) installInterruptRegs() {
	c.cpuBus.AddReadWriteRange(0xFF0F, 0xFF0F, c.ifReg[:], 0xFF0F)
	c.cpuBus.AddReadWriteRange(0xFFFF, 0xFFFF, c.ieReg[:], 0xFFFF)
}

// Reset returns every subsystem to its power-on/reset state.
func (c *GBContext) Reset() {
	c.clock.Reset()
	c.mapper.Reset()
	c.ppu.Reset()
	c.apu.Reset()
	c.timer.Reset()
	c.joypad.Reset()
	c.cpu.Reset()
	c.ifReg[0] = 0
	c.ieReg[0] = 0
	c.valid = true
}

// Valid reports whether the Context is still servicing frames.
func (c *GBContext) Valid() bool { return c.valid }

// SetDirection updates the joypad's direction row (GBRight/Left/Up/Down).
func (c *GBContext) SetDirection(button input.GBButton, pressed bool) {
	before := c.joypad.AnyPressed()
	c.joypad.SetDirection(uint8(button), pressed)
	if !before && c.joypad.AnyPressed() {
		c.ifReg[0] |= 0x10
	}
}

// SetAction updates the joypad's action row (GBA/GBB/GBSelect/GBStart).
func (c *GBContext) SetAction(button input.GBButton, pressed bool) {
	before := c.joypad.AnyPressed()
	c.joypad.SetAction(uint8(button), pressed)
	if !before && c.joypad.AnyPressed() {
		c.ifReg[0] |= 0x10
	}
}

// Execute advances the Context by exactly one DMG frame (70224 T-states).
func (c *GBContext) Execute() {
	if !c.valid {
		return
	}
	c.mapper.BeginFrame()
	c.clock.Execute(c.clock.DesiredTicks() + gbTicksPerFrame)
	c.clock.Advance()
}

// FrameBuffer returns the completed frame's pixels, row-major, 160x144.
func (c *GBContext) FrameBuffer() *[ppugb.FrameWidth * ppugb.FrameHeight]uint32 {
	return c.ppu.FrameBuffer()
}

// DisplaySize returns the host-visible frame dimensions.
func (c *GBContext) DisplaySize() (int, int) { return ppugb.FrameWidth, ppugb.FrameHeight }

// SoundSamples drains the frame's audio, decimated to exactly n mono
// 16-bit PCM samples.
func (c *GBContext) SoundSamples(n int) []int16 {
	return downsampleStereoToMono(c.apu.GetSamples(), n)
}

// SerializeGameData writes the mapper's battery-backed RAM only.
func (c *GBContext) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	c.mapper.SerializeGameData(w)
}

// DeserializeGameData restores battery RAM written by SerializeGameData.
func (c *GBContext) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	return c.mapper.DeserializeGameData(r)
}

// SerializeGameState writes a full snapshot: clock, CPU, PPU, APU, timer,
// WRAM, IF/IE, joypad and mapper banking state.
func (c *GBContext) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	c.clock.Serialize(w)
	c.cpu.Serialize(w)
	c.ppu.Serialize(w)
	c.apu.Serialize(w)
	c.joypad.Serialize(w)
	w.PutBytes(c.wram[:])
	w.PutUint8(c.ifReg[0])
	w.PutUint8(c.ieReg[0])
	w.PutUint16(c.timer.div)
	w.PutInt32(int32(c.timer.divCounter))
	w.PutUint8(c.timer.tima)
	w.PutUint8(c.timer.tma)
	w.PutUint8(c.timer.tac)
	w.PutInt32(int32(c.timer.timerCounter))
	c.mapper.SerializeGameState(w)
}

// DeserializeGameState restores a snapshot written by SerializeGameState.
func (c *GBContext) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	if err := c.clock.Deserialize(r); err != nil {
		return err
	}
	if err := c.cpu.Deserialize(r); err != nil {
		return err
	}
	if err := c.ppu.Deserialize(r); err != nil {
		return err
	}
	if err := c.apu.Deserialize(r); err != nil {
		return err
	}
	if err := c.joypad.Deserialize(r); err != nil {
		return err
	}
	copy(c.wram[:], r.Bytes())
	c.ifReg[0] = r.Uint8()
	c.ieReg[0] = r.Uint8()
	c.timer.div = r.Uint16()
	c.timer.divCounter = int(r.Int32())
	c.timer.tima = r.Uint8()
	c.timer.tma = r.Uint8()
	c.timer.tac = r.Uint8()
	c.timer.timerCounter = int(r.Int32())
	if err := c.mapper.DeserializeGameState(r); err != nil {
		return err
	}
	return r.Err()
}
