package context

import (
	"fmt"

	"duoemu/internal/cartridge/nesmapper"
	"duoemu/internal/clock"
	"duoemu/internal/cpu6502"
	"duoemu/internal/input"
	"duoemu/internal/membus"
	"duoemu/internal/ppunes"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"

	apu "duoemu/internal/apunes"
)

// NES bus geometry: a flat 64KB CPU address space, paged in 256-byte
// windows — the same granularity the PPU's own CHR bus uses.
const (
	nesAddrSpaceLog2 = 16
	nesPageSizeLog2  = 8

	nesTicksPerFrame = 341 * 262 // one dot per master tick, NTSC timing
)

// NESContext wires one NES cartridge's mapper, a 6502, a 2C02 and a 2A03
// onto a shared Clock, mediating the PPU's NMI line and the OR of the
// mapper and APU IRQ sources onto the CPU, per spec §3/§9.
type NESContext struct {
	rom *rom.Rom

	cpuBus *membus.Bus
	clock  *clock.Clock

	cpu *cpu6502.CPU
	ppu *ppunes.PPU
	apu *apu.APU

	mapper nesmapper.Mapper
	input  *input.NESInput

	wram [0x0800]byte

	mapperIRQ bool

	valid bool
}

// NewNESContext builds a Context for r, returning an error if r's mapper
// is unsupported. The returned Context is fully wired: CPU reset vector
// has been read and the cartridge mapper's bank views installed.
func NewNESContext(r *rom.Rom) (*NESContext, error) {
	mapper, err := nesmapper.New(r)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	c := &NESContext{
		rom:    r,
		cpuBus: membus.New(nesAddrSpaceLog2, nesPageSizeLog2),
		clock:  clock.New(),
		ppu:    ppunes.New(),
		mapper: mapper,
		input:  input.NewNESInput(),
		valid:  true,
	}

	cpuRead := membus.NewAccessor(c.cpuBus, membus.TableRead)
	cpuWrite := membus.NewAccessor(c.cpuBus, membus.TableWrite)
	c.cpu = cpu6502.New(busView{r: cpuRead, w: cpuWrite})
	c.apu = apu.New(cpuRead)

	c.clock.AddListener(c.cpu)
	c.clock.AddListener(c.ppu)
	c.clock.AddListener(c.apu)

	c.installWRAM()
	c.installPPURegisters()
	c.installAPUAndIO()

	if err := mapper.Initialize(nesmapper.Components{
		Rom:    r,
		CPUBus: c.cpuBus,
		PPU:    c.ppu,
		Clock:  c.clock,
		SetIRQ: c.setMapperIRQ,
	}); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	c.ppu.AddScanlineListener(func(clock.Tick) { c.updateIRQ() })
	c.Reset()
	return c, nil
}

func (c *NESContext) installWRAM() {
	for mirror := uint32(0); mirror < 4; mirror++ {
		base := mirror * 0x0800
		c.cpuBus.AddReadWriteRange(base, base+0x07FF, c.wram[:], base)
	}
}

// installPPURegisters installs the canonical $2000-$2007 register file,
// named for traceability per spec §4.3, plus its raw $2008-$3FFF mirror.
func (c *NESContext) installPPURegisters() {
	bank := membus.NewRegisterBank(0x2000)
	names := [8]string{"PPUCTRL", "PPUMASK", "PPUSTATUS", "OAMADDR", "OAMDATA", "PPUSCROLL", "PPUADDR", "PPUDATA"}
	for i, name := range names {
		addr := uint16(0x2000 + i)
		bank.AddRegister(addr, name,
			func(_ clock.Tick, addr uint16) uint8 { return c.ppu.ReadRegister(addr) },
			func(_ clock.Tick, addr uint16, value uint8) { c.ppu.WriteRegister(addr, value) },
		)
	}
	c.cpuBus.AddRange(membus.TableRead, 0x2000, 0x2007, bank.ReadAccess())
	c.cpuBus.AddRange(membus.TableWrite, 0x2000, 0x2007, bank.WriteAccess())

	mirrorRead := membus.ReadCallback(func(_ any, _ clock.Tick, addr uint32) uint8 {
		return c.ppu.ReadRegister(uint16(addr))
	}, nil, 0x2008)
	mirrorWrite := membus.WriteCallback(func(_ any, _ clock.Tick, addr uint32, value uint8) {
		c.ppu.WriteRegister(uint16(addr), value)
	}, nil, 0x2008)
	c.cpuBus.AddRange(membus.TableRead, 0x2008, 0x3FFF, mirrorRead)
	c.cpuBus.AddRange(membus.TableWrite, 0x2008, 0x3FFF, mirrorWrite)
}

// installAPUAndIO installs $4000-$4017: the APU's channel registers, OAM
// DMA at $4014, the APU status/frame-counter dual-purpose $4015/$4017,
// and the controller ports at $4016/$4017.
func (c *NESContext) installAPUAndIO() {
	bank := membus.NewRegisterBank(0x4000)
	apuWriteOnly := [14]uint16{0x4000, 0x4001, 0x4002, 0x4003, 0x4004, 0x4005, 0x4006, 0x4007, 0x4008, 0x400A, 0x400B, 0x400C, 0x400E, 0x400F}
	for _, addr := range apuWriteOnly {
		addr := addr
		bank.AddRegister(addr, apuRegisterName(addr), nil,
			func(_ clock.Tick, addr uint16, value uint8) { c.apu.WriteRegister(addr, value) })
	}
	for _, addr := range [4]uint16{0x4010, 0x4011, 0x4012, 0x4013} {
		addr := addr
		bank.AddRegister(addr, apuRegisterName(addr), nil,
			func(_ clock.Tick, addr uint16, value uint8) { c.apu.WriteRegister(addr, value) })
	}

	bank.AddRegister(0x4014, "OAMDMA", nil,
		func(_ clock.Tick, _ uint16, value uint8) { c.runOAMDMA(value) })

	bank.AddRegister(0x4015, "SND_CHN",
		func(_ clock.Tick, _ uint16) uint8 { status := c.apu.ReadStatus(); c.updateIRQ(); return status },
		func(_ clock.Tick, addr uint16, value uint8) { c.apu.WriteRegister(addr, value); c.updateIRQ() },
	)

	bank.AddRegister(0x4016, "JOY1",
		func(_ clock.Tick, _ uint16) uint8 { return c.input.Read(0x4016) },
		func(_ clock.Tick, _ uint16, value uint8) { c.input.Write(0x4016, value) },
	)
	bank.AddRegister(0x4017, "JOY2/FRAME_COUNTER",
		func(_ clock.Tick, _ uint16) uint8 { return c.input.Read(0x4017) },
		func(_ clock.Tick, addr uint16, value uint8) { c.apu.WriteRegister(addr, value); c.updateIRQ() },
	)

	c.cpuBus.AddRange(membus.TableRead, 0x4000, 0x4017, bank.ReadAccess())
	c.cpuBus.AddRange(membus.TableWrite, 0x4000, 0x4017, bank.WriteAccess())
}

func apuRegisterName(addr uint16) string {
	return fmt.Sprintf("APU_%#04X", addr)
}

// runOAMDMA copies 256 bytes from page `value` into OAM, the $4014 write
// side effect. Real hardware stalls the CPU for 513/514 cycles; this core
// does not model the stall, an accepted simplification since nothing
// observes CPU/PPU timing at sub-scanline granularity here.
func (c *NESContext) runOAMDMA(value uint8) {
	base := uint32(value) << 8
	for i := uint32(0); i < 256; i++ {
		c.ppu.WriteOAMByte(c.cpuBus.Read(0, base+i))
	}
}

func (c *NESContext) setMapperIRQ(active bool) {
	c.mapperIRQ = active
	c.updateIRQ()
}

// updateIRQ recomputes the CPU's level-triggered IRQ line as the OR of
// the mapper, APU frame-sequencer and APU DMC interrupt sources, per
// spec §4.4 "IRQ escalation".
func (c *NESContext) updateIRQ() {
	c.cpu.SetIRQ(c.mapperIRQ || c.apu.GetFrameIRQ() || c.apu.GetDMCIRQ())
}

// Reset returns every subsystem to its power-on/reset state.
func (c *NESContext) Reset() {
	c.clock.Reset()
	c.mapper.Reset()
	c.ppu.Reset()
	c.apu.Reset()
	c.input.Reset()
	c.cpu.Reset()
	c.mapperIRQ = false
	c.valid = true
}

// Valid reports whether the Context is still servicing frames; a runtime
// fault (spec §7) would clear this and every subsequent Execute becomes a
// no-op.
func (c *NESContext) Valid() bool { return c.valid }

// SetButton updates controller index (0 or 1)'s button state.
func (c *NESContext) SetButton(index int, button input.Button, pressed bool) {
	switch index {
	case 0:
		c.input.Controller1.SetButton(button, pressed)
	case 1:
		c.input.Controller2.SetButton(button, pressed)
	}
}

// Execute advances the Context by exactly one NTSC frame.
func (c *NESContext) Execute() {
	if !c.valid {
		return
	}
	c.mapper.BeginFrame()
	c.clock.Execute(c.clock.DesiredTicks() + nesTicksPerFrame)
	c.clock.Advance()
}

// FrameBuffer returns the completed frame's pixels, row-major, 256x240.
// Display-visible rows are 8..231 (256x224) per spec §6.
func (c *NESContext) FrameBuffer() *[ppunes.FrameWidth * ppunes.FrameHeight]uint32 {
	return c.ppu.FrameBuffer()
}

// DisplaySize returns the host-visible (overscan-cropped) frame
// dimensions.
func (c *NESContext) DisplaySize() (int, int) { return ppunes.FrameWidth, 224 }

// SoundSamples drains the frame's audio, decimated to exactly n mono
// 16-bit PCM samples.
func (c *NESContext) SoundSamples(n int) []int16 {
	return downsampleMono(c.apu.GetSamples(), n)
}

// SerializeGameData writes the mapper's battery-backed RAM only.
func (c *NESContext) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	c.mapper.SerializeGameData(w)
}

// DeserializeGameData restores battery RAM written by SerializeGameData.
func (c *NESContext) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	return c.mapper.DeserializeGameData(r)
}

// SerializeGameState writes a full snapshot: clock, CPU, PPU, APU, WRAM,
// controller shift registers and mapper banking/IRQ state.
func (c *NESContext) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	c.clock.Serialize(w)
	c.cpu.Serialize(w)
	c.ppu.Serialize(w)
	c.apu.Serialize(w)
	c.input.Serialize(w)
	w.PutBytes(c.wram[:])
	w.PutBool(c.mapperIRQ)
	c.mapper.SerializeGameState(w)
}

// DeserializeGameState restores a snapshot written by SerializeGameState.
func (c *NESContext) DeserializeGameState(r *serialize.Reader) error {
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
	if err := c.input.Deserialize(r); err != nil {
		return err
	}
	copy(c.wram[:], r.Bytes())
	c.mapperIRQ = r.Bool()
	if err := c.mapper.DeserializeGameState(r); err != nil {
		return err
	}
	return r.Err()
}
