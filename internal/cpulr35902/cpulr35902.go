// Package cpulr35902 implements the Game Boy's Sharp LR35902 CPU core: the
// full main and CB-prefixed opcode tables, the IME one-instruction-delay
// quirk, and the master-clock Listener contract from spec §4.3/§4.4.
// Grounded on the register layout and reset state of the teacher pack's
// Gameboy/CpuZ80.h and CpuZ80.cpp (whose execute() switch is an empty
// skeleton in original_source, so the opcode tables themselves follow
// canonical Sharp LR35902 behavior), adapted onto the shared membus.Bus
// used by cpu6502 in this module.
package cpulr35902

import (
	"duoemu/internal/clock"
	"duoemu/internal/serialize"
)

// TicksPerMachineCycle is the number of master clock ticks one Game Boy
// machine cycle costs. The master tick is defined at T-state (dot)
// resolution: 4 T-states per machine cycle.
const TicksPerMachineCycle = 4

// Bus is the narrow memory view the CPU core needs.
type Bus interface {
	Read(tick clock.Tick, addr uint32) uint8
	Write(tick clock.Tick, addr uint32, value uint8)
}

const (
	flagZ = 0x80
	flagN = 0x40
	flagH = 0x20
	flagC = 0x10

	regIF = 0xFF0F
	regIE = 0xFFFF

	vblankVector = 0x0040
	statVector   = 0x0048
	timerVector  = 0x0050
	serialVector = 0x0058
	joypadVector = 0x0060
)

// CPU is a single LR35902 core wired to a Bus and driven by the shared Clock.
type CPU struct {
	A, B, C, D, E, H, L uint8
	SP, PC              uint16

	Zf, Nf, Hf, Cf bool

	bus Bus

	tick         clock.Tick
	desiredTicks clock.Tick

	ime          bool
	imePending   bool
	halted       bool
	haltBugArmed bool
	stopped      bool
}

// New returns a CPU wired to bus. Call Reset before first use.
func New(bus Bus) *CPU { return &CPU{bus: bus} }

// Reset loads the post-boot-ROM register state, matching the DMG values the
// teacher's CpuZ80::reset() hard-codes.
func (cpu *CPU) Reset() {
	cpu.A = 0x01
	cpu.setF(0xB0)
	cpu.B, cpu.C = 0x00, 0x13
	cpu.D, cpu.E = 0x00, 0xD8
	cpu.H, cpu.L = 0x01, 0x4D
	cpu.SP = 0xFFFE
	cpu.PC = 0x0100
	cpu.ime = false
	cpu.imePending = false
	cpu.halted = false
	cpu.stopped = false
	cpu.tick = 0
	cpu.desiredTicks = 0
}

// --- clock.Listener ---

func (cpu *CPU) Execute() {
	for cpu.tick < cpu.desiredTicks {
		cpu.step()
	}
}

func (cpu *CPU) SetDesiredTicks(ticks clock.Tick) { cpu.desiredTicks = ticks }

func (cpu *CPU) AdvanceClock(ticks clock.Tick) {
	cpu.tick -= ticks
	cpu.desiredTicks -= ticks
}

func (cpu *CPU) ResetClock() {
	cpu.tick = 0
	cpu.desiredTicks = 0
}

// Stopped reports whether the CPU executed STOP and is awaiting a joypad
// press (callers typically still pump the PPU/APU in low-power STOP mode on
// DMG, so this is exposed rather than hidden inside step).
func (cpu *CPU) Stopped() bool { return cpu.stopped }

// ResumeFromStop clears STOP mode; the Context calls this on joypad input.
func (cpu *CPU) ResumeFromStop() { cpu.stopped = false }

func (cpu *CPU) step() {
	if cpu.imePending {
		cpu.ime = true
		cpu.imePending = false
	}

	if cpu.halted {
		if cpu.pendingInterrupt() {
			cpu.halted = false
		} else {
			cpu.addCycles(1)
			return
		}
	}

	if cpu.ime && cpu.pendingInterrupt() {
		cpu.serviceInterrupt()
		return
	}

	if cpu.stopped {
		cpu.addCycles(1)
		return
	}

	opcode := cpu.fetch8()
	if cpu.haltBugArmed {
		cpu.haltBugArmed = false
		cpu.PC--
	}
	cpu.executeMain(opcode)
}

func (cpu *CPU) pendingInterrupt() bool {
	iflag := cpu.bus.Read(cpu.tick, regIF)
	ienable := cpu.bus.Read(cpu.tick, regIE)
	return iflag&ienable&0x1F != 0
}

// serviceInterrupt dispatches the highest-priority pending interrupt,
// clearing its IF bit and disabling IME.
func (cpu *CPU) serviceInterrupt() {
	iflag := cpu.bus.Read(cpu.tick, regIF)
	ienable := cpu.bus.Read(cpu.tick, regIE)
	pending := iflag & ienable & 0x1F

	var bit uint8
	var vector uint16
	switch {
	case pending&0x01 != 0:
		bit, vector = 0, vblankVector
	case pending&0x02 != 0:
		bit, vector = 1, statVector
	case pending&0x04 != 0:
		bit, vector = 2, timerVector
	case pending&0x08 != 0:
		bit, vector = 3, serialVector
	case pending&0x10 != 0:
		bit, vector = 4, joypadVector
	default:
		return
	}

	cpu.bus.Write(cpu.tick, regIF, iflag&^(1<<bit))
	cpu.ime = false
	cpu.push16(cpu.PC)
	cpu.PC = vector
	cpu.addCycles(5)
}

func (cpu *CPU) addCycles(m uint8) { cpu.tick += clock.Tick(uint32(m) * TicksPerMachineCycle) }

func (cpu *CPU) read8(addr uint16) uint8    { return cpu.bus.Read(cpu.tick, uint32(addr)) }
func (cpu *CPU) write8(addr uint16, v uint8) { cpu.bus.Write(cpu.tick, uint32(addr), v) }

func (cpu *CPU) fetch8() uint8 {
	v := cpu.read8(cpu.PC)
	cpu.PC++
	return v
}

func (cpu *CPU) fetch16() uint16 {
	lo := uint16(cpu.fetch8())
	hi := uint16(cpu.fetch8())
	return lo | hi<<8
}

func (cpu *CPU) push8(v uint8) {
	cpu.SP--
	cpu.write8(cpu.SP, v)
}

func (cpu *CPU) pop8() uint8 {
	v := cpu.read8(cpu.SP)
	cpu.SP++
	return v
}

func (cpu *CPU) push16(v uint16) {
	cpu.push8(uint8(v >> 8))
	cpu.push8(uint8(v & 0xFF))
}

func (cpu *CPU) pop16() uint16 {
	lo := uint16(cpu.pop8())
	hi := uint16(cpu.pop8())
	return lo | hi<<8
}

func (cpu *CPU) f() uint8 {
	var v uint8
	if cpu.Zf {
		v |= flagZ
	}
	if cpu.Nf {
		v |= flagN
	}
	if cpu.Hf {
		v |= flagH
	}
	if cpu.Cf {
		v |= flagC
	}
	return v
}

func (cpu *CPU) setF(v uint8) {
	cpu.Zf = v&flagZ != 0
	cpu.Nf = v&flagN != 0
	cpu.Hf = v&flagH != 0
	cpu.Cf = v&flagC != 0
}

func (cpu *CPU) af() uint16 { return uint16(cpu.A)<<8 | uint16(cpu.f()) }
func (cpu *CPU) bc() uint16 { return uint16(cpu.B)<<8 | uint16(cpu.C) }
func (cpu *CPU) de() uint16 { return uint16(cpu.D)<<8 | uint16(cpu.E) }
func (cpu *CPU) hl() uint16 { return uint16(cpu.H)<<8 | uint16(cpu.L) }

func (cpu *CPU) setAF(v uint16) {
	cpu.A = uint8(v >> 8)
	cpu.setF(uint8(v) & 0xF0)
}
func (cpu *CPU) setBC(v uint16) { cpu.B, cpu.C = uint8(v>>8), uint8(v) }
func (cpu *CPU) setDE(v uint16) { cpu.D, cpu.E = uint8(v>>8), uint8(v) }
func (cpu *CPU) setHL(v uint16) { cpu.H, cpu.L = uint8(v>>8), uint8(v) }

// reg8 reads one of the eight 3-bit-encoded operands used throughout the
// main opcode table: B,C,D,E,H,L,(HL),A.
func (cpu *CPU) reg8(idx uint8) uint8 {
	switch idx & 7 {
	case 0:
		return cpu.B
	case 1:
		return cpu.C
	case 2:
		return cpu.D
	case 3:
		return cpu.E
	case 4:
		return cpu.H
	case 5:
		return cpu.L
	case 6:
		return cpu.read8(cpu.hl())
	default:
		return cpu.A
	}
}

func (cpu *CPU) setReg8(idx uint8, v uint8) {
	switch idx & 7 {
	case 0:
		cpu.B = v
	case 1:
		cpu.C = v
	case 2:
		cpu.D = v
	case 3:
		cpu.E = v
	case 4:
		cpu.H = v
	case 5:
		cpu.L = v
	case 6:
		cpu.write8(cpu.hl(), v)
	default:
		cpu.A = v
	}
}

// reg16 reads one of the four 2-bit-encoded 16-bit pairs used by the
// LD rr,nn / PUSH / POP / INC rr / DEC rr / ADD HL,rr families. which
// distinguishes the SP-vs-AF variant used by those two families.
func (cpu *CPU) reg16(idx uint8, useSP bool) uint16 {
	switch idx & 3 {
	case 0:
		return cpu.bc()
	case 1:
		return cpu.de()
	case 2:
		return cpu.hl()
	default:
		if useSP {
			return cpu.SP
		}
		return cpu.af()
	}
}

func (cpu *CPU) setReg16(idx uint8, useSP bool, v uint16) {
	switch idx & 3 {
	case 0:
		cpu.setBC(v)
	case 1:
		cpu.setDE(v)
	case 2:
		cpu.setHL(v)
	default:
		if useSP {
			cpu.SP = v
		} else {
			cpu.setAF(v)
		}
	}
}

// Serialize writes the core's registers and halt/stop/IME state.
func (cpu *CPU) Serialize(w *serialize.Writer) {
	w.Version(1)
	w.PutUint8(cpu.A)
	w.PutUint8(cpu.f())
	w.PutUint8(cpu.B)
	w.PutUint8(cpu.C)
	w.PutUint8(cpu.D)
	w.PutUint8(cpu.E)
	w.PutUint8(cpu.H)
	w.PutUint8(cpu.L)
	w.PutUint16(cpu.SP)
	w.PutUint16(cpu.PC)
	w.PutBool(cpu.ime)
	w.PutBool(cpu.imePending)
	w.PutBool(cpu.halted)
	w.PutBool(cpu.haltBugArmed)
	w.PutBool(cpu.stopped)
	w.PutInt32(int32(cpu.tick))
	w.PutInt32(int32(cpu.desiredTicks))
}

// Deserialize restores state written by Serialize.
func (cpu *CPU) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	cpu.A = r.Uint8()
	cpu.setF(r.Uint8())
	cpu.B = r.Uint8()
	cpu.C = r.Uint8()
	cpu.D = r.Uint8()
	cpu.E = r.Uint8()
	cpu.H = r.Uint8()
	cpu.L = r.Uint8()
	cpu.SP = r.Uint16()
	cpu.PC = r.Uint16()
	cpu.ime = r.Bool()
	cpu.imePending = r.Bool()
	cpu.halted = r.Bool()
	cpu.haltBugArmed = r.Bool()
	cpu.stopped = r.Bool()
	cpu.tick = clock.Tick(r.Int32())
	cpu.desiredTicks = clock.Tick(r.Int32())
	return r.Err()
}
