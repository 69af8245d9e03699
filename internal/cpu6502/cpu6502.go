// Package cpu6502 implements the NES's 6502-family CPU core: the full
// official and unofficial opcode set, addressing modes, NMI/IRQ edge
// handling, and the master-clock Listener contract from spec §3/§4.3,
// generalized from the teacher's internal/cpu/cpu.go onto the paged
// membus.Bus instead of a flat byte slice.
package cpu6502

import (
	"duoemu/internal/clock"
	"duoemu/internal/serialize"
)

// TicksPerCycle is the number of master clock ticks one CPU cycle costs.
// The master tick is defined at PPU dot resolution (3 dots per CPU cycle),
// matching the canonical NES CPU:PPU clock ratio.
const TicksPerCycle = 3

// Bus is the narrow memory view the CPU core needs: the cached per-tick
// accessor a membus.Accessor provides.
type Bus interface {
	Read(tick clock.Tick, addr uint32) uint8
	Write(tick clock.Tick, addr uint32, value uint8)
}

// AddressingMode names a 6502 operand-fetch mode.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect
	IndirectIndexed
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// instruction describes one opcode's byte length, base cycle count and
// addressing mode.
type instruction struct {
	Name   string
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// CPU is a single 6502 core wired to a Bus and driven by the shared Clock.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, B, V, N bool

	bus Bus

	tick         clock.Tick
	desiredTicks clock.Tick

	instructions [256]instruction

	nmiLine, nmiPrevious bool
	nmiPending           bool
	irqLine              bool
}

// New returns a CPU wired to bus. Call Reset before first use.
func New(bus Bus) *CPU {
	cpu := &CPU{bus: bus, SP: 0xFD}
	cpu.initInstructions()
	return cpu
}

// Reset performs the 6502 reset sequence: registers to their power-up
// state, PC loaded from the reset vector.
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.C, cpu.Z, cpu.D, cpu.V, cpu.N = false, false, false, false, false
	cpu.I = true
	cpu.B = true
	low := uint16(cpu.bus.Read(cpu.tick, resetVector))
	high := uint16(cpu.bus.Read(cpu.tick, resetVector+1))
	cpu.PC = (high << 8) | low
	cpu.tick += 7 * TicksPerCycle
}

// SetNMI latches the PPU's NMI line; a falling edge arms a pending NMI
// serviced after the current instruction completes.
func (cpu *CPU) SetNMI(state bool) {
	if cpu.nmiPrevious && !state {
		cpu.nmiPending = true
	}
	cpu.nmiPrevious = state
}

// SetIRQ sets the level-triggered IRQ line (the Context ORs the mapper and
// APU frame IRQ sources before calling this).
func (cpu *CPU) SetIRQ(state bool) { cpu.irqLine = state }

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

// step executes one instruction and services any pending interrupt.
func (cpu *CPU) step() {
	opcode := cpu.bus.Read(cpu.tick, uint32(cpu.PC))
	in := cpu.instructions[opcode]

	address, pageCrossed := cpu.operandAddress(in.Mode)
	extra := cpu.execute(opcode, address, pageCrossed)

	if pageCrossed {
		if opcode == 0x9D || opcode == 0x99 || opcode == 0x91 {
			extra++
		} else {
			switch opcode {
			case 0xBD, 0xB9, 0xB1, 0xBE, 0xBC, 0x7D, 0x79, 0x71, 0x3D, 0x39, 0x31, 0x1D, 0x19, 0x11, 0x5D, 0x59, 0x51, 0xDD, 0xD9, 0xD1,
				0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC,
				0xBF, 0xB3, 0xD3, 0xD7, 0xDF, 0xF3, 0xF7, 0xFF, 0x13, 0x17, 0x1F, 0x33, 0x37, 0x3F, 0x53, 0x57, 0x5F, 0x73, 0x77, 0x7F:
				extra++
			}
		}
	}

	cpu.tick += clock.Tick(uint64(in.Cycles+extra) * TicksPerCycle)
	cpu.serviceInterrupts()
}

func (cpu *CPU) serviceInterrupts() {
	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.handleNMI()
		return
	}
	if cpu.irqLine && !cpu.I {
		cpu.handleIRQ()
	}
}

func (cpu *CPU) operandAddress(mode AddressingMode) (uint16, bool) {
	pageCrossed := false
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false
	case Immediate:
		addr := cpu.PC + 1
		cpu.PC += 2
		return addr, false
	case ZeroPage:
		addr := uint16(cpu.read(cpu.PC + 1))
		cpu.PC += 2
		return addr, false
	case ZeroPageX:
		base := cpu.read(cpu.PC + 1)
		addr := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return addr, false
	case ZeroPageY:
		base := cpu.read(cpu.PC + 1)
		addr := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return addr, false
	case Relative:
		offset := int8(cpu.read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC
		pageCrossed = (oldPC & pageMask) != (newPC & pageMask)
		return newPC, pageCrossed
	case Absolute:
		low := uint16(cpu.read(cpu.PC + 1))
		high := uint16(cpu.read(cpu.PC + 2))
		addr := (high << 8) | low
		cpu.PC += 3
		return addr, false
	case AbsoluteX:
		low := uint16(cpu.read(cpu.PC + 1))
		high := uint16(cpu.read(cpu.PC + 2))
		base := (high << 8) | low
		addr := base + uint16(cpu.X)
		cpu.PC += 3
		pageCrossed = (base & pageMask) != (addr & pageMask)
		return addr, pageCrossed
	case AbsoluteY:
		low := uint16(cpu.read(cpu.PC + 1))
		high := uint16(cpu.read(cpu.PC + 2))
		base := (high << 8) | low
		addr := base + uint16(cpu.Y)
		cpu.PC += 3
		pageCrossed = (base & pageMask) != (addr & pageMask)
		return addr, pageCrossed
	case Indirect:
		lowPtr := uint16(cpu.read(cpu.PC + 1))
		highPtr := uint16(cpu.read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr
		var addr uint16
		if ptr&zeroPageMask == zeroPageMask {
			low := uint16(cpu.read(ptr))
			high := uint16(cpu.read(ptr & pageMask))
			addr = (high << 8) | low
		} else {
			low := uint16(cpu.read(ptr))
			high := uint16(cpu.read(ptr + 1))
			addr = (high << 8) | low
		}
		cpu.PC += 3
		return addr, false
	case IndexedIndirect:
		base := cpu.read(cpu.PC + 1)
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.read(uint16(ptr)))
		high := uint16(cpu.read(uint16((ptr + 1) & zeroPageMask)))
		addr := (high << 8) | low
		cpu.PC += 2
		return addr, false
	case IndirectIndexed:
		ptr := uint16(cpu.read(cpu.PC + 1))
		low := uint16(cpu.read(ptr))
		high := uint16(cpu.read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		addr := base + uint16(cpu.Y)
		cpu.PC += 2
		pageCrossed = (base & pageMask) != (addr & pageMask)
		return addr, pageCrossed
	default:
		return 0, false
	}
}

func (cpu *CPU) read(addr uint16) uint8  { return cpu.bus.Read(cpu.tick, uint32(addr)) }
func (cpu *CPU) write(addr uint16, v uint8) { cpu.bus.Write(cpu.tick, uint32(addr), v) }

func (cpu *CPU) push(v uint8) {
	cpu.write(stackBase+uint16(cpu.SP), v)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(v uint16) {
	cpu.push(uint8(v >> 8))
	cpu.push(uint8(v & 0xFF))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(v uint8) {
	cpu.Z = v == 0
	cpu.N = v&nFlagMask != 0
}

func (cpu *CPU) handleNMI() {
	cpu.pushWord(cpu.PC)
	cpu.push(cpu.statusByte()&^uint8(bFlagMask) | unusedMask)
	cpu.I = true
	low := uint16(cpu.read(nmiVector))
	high := uint16(cpu.read(nmiVector + 1))
	cpu.PC = (high << 8) | low
	cpu.tick += 7 * TicksPerCycle
}

func (cpu *CPU) handleIRQ() {
	cpu.pushWord(cpu.PC)
	cpu.push(cpu.statusByte()&^uint8(bFlagMask) | unusedMask)
	cpu.I = true
	low := uint16(cpu.read(irqVector))
	high := uint16(cpu.read(irqVector + 1))
	cpu.PC = (high << 8) | low
	cpu.tick += 7 * TicksPerCycle
}

// StatusByte returns the processor status register.
func (cpu *CPU) StatusByte() uint8 { return cpu.statusByte() }

func (cpu *CPU) statusByte() uint8 {
	var s uint8
	if cpu.N {
		s |= nFlagMask
	}
	if cpu.V {
		s |= vFlagMask
	}
	s |= unusedMask
	if cpu.B {
		s |= bFlagMask
	}
	if cpu.D {
		s |= dFlagMask
	}
	if cpu.I {
		s |= iFlagMask
	}
	if cpu.Z {
		s |= zFlagMask
	}
	if cpu.C {
		s |= cFlagMask
	}
	return s
}

// SetStatusByte loads the processor status register from a byte (used by
// PLP/RTI and by save-state restore).
func (cpu *CPU) SetStatusByte(s uint8) {
	cpu.N = s&nFlagMask != 0
	cpu.V = s&vFlagMask != 0
	cpu.B = s&bFlagMask != 0
	cpu.D = s&dFlagMask != 0
	cpu.I = s&iFlagMask != 0
	cpu.Z = s&zFlagMask != 0
	cpu.C = s&cFlagMask != 0
}

// Serialize writes the core's registers and interrupt-latch state.
func (cpu *CPU) Serialize(w *serialize.Writer) {
	w.Version(1)
	w.PutUint8(cpu.A)
	w.PutUint8(cpu.X)
	w.PutUint8(cpu.Y)
	w.PutUint8(cpu.SP)
	w.PutUint16(cpu.PC)
	w.PutUint8(cpu.statusByte())
	w.PutBool(cpu.nmiLine)
	w.PutBool(cpu.nmiPrevious)
	w.PutBool(cpu.nmiPending)
	w.PutBool(cpu.irqLine)
	w.PutInt32(int32(cpu.tick))
	w.PutInt32(int32(cpu.desiredTicks))
}

// Deserialize restores state written by Serialize.
func (cpu *CPU) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	cpu.A = r.Uint8()
	cpu.X = r.Uint8()
	cpu.Y = r.Uint8()
	cpu.SP = r.Uint8()
	cpu.PC = r.Uint16()
	cpu.SetStatusByte(r.Uint8())
	cpu.nmiLine = r.Bool()
	cpu.nmiPrevious = r.Bool()
	cpu.nmiPending = r.Bool()
	cpu.irqLine = r.Bool()
	cpu.tick = clock.Tick(r.Int32())
	cpu.desiredTicks = clock.Tick(r.Int32())
	return r.Err()
}
