package cpulr35902

import (
	"testing"

	"duoemu/internal/clock"
)

type fakeBus struct {
	data [0x10000]uint8
}

func (b *fakeBus) Read(_ clock.Tick, addr uint32) uint8     { return b.data[addr&0xFFFF] }
func (b *fakeBus) Write(_ clock.Tick, addr uint32, v uint8) { b.data[addr&0xFFFF] = v }

func (b *fakeBus) setBytes(addr uint16, values ...uint8) {
	for i, v := range values {
		b.data[addr+uint16(i)] = v
	}
}

func newTestCPU() (*CPU, *fakeBus) {
	bus := &fakeBus{}
	cpu := New(bus)
	cpu.Reset()
	return cpu, bus
}

func TestResetState(t *testing.T) {
	cpu, _ := newTestCPU()
	if cpu.A != 0x01 || cpu.PC != 0x0100 || cpu.SP != 0xFFFE {
		t.Errorf("reset: unexpected A=0x%02X PC=0x%04X SP=0x%04X", cpu.A, cpu.PC, cpu.SP)
	}
	if !cpu.Cf || !cpu.Hf || cpu.Nf || !cpu.Zf {
		t.Errorf("reset: unexpected flags Z=%v N=%v H=%v C=%v", cpu.Zf, cpu.Nf, cpu.Hf, cpu.Cf)
	}
}

func TestLDRegisterToRegister(t *testing.T) {
	cpu, bus := newTestCPU()
	bus.setBytes(0x0100, 0x41) // LD B,C
	cpu.C = 0x77
	cpu.step()
	if cpu.B != 0x77 {
		t.Errorf("ld b,c: expected B=0x77, got 0x%02X", cpu.B)
	}
}

func TestLDHLIndirect(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.setHL(0xC000)
	bus.setBytes(0x0100, 0x36, 0x99) // LD (HL),0x99
	cpu.step()
	if bus.data[0xC000] != 0x99 {
		t.Errorf("ld (hl),n: expected 0x99, got 0x%02X", bus.data[0xC000])
	}
}

func TestADDFlagsAndHalfCarry(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.A = 0x0F
	cpu.B = 0x01
	bus.setBytes(0x0100, 0x80) // ADD A,B
	cpu.step()
	if cpu.A != 0x10 {
		t.Errorf("add a,b: expected A=0x10, got 0x%02X", cpu.A)
	}
	if !cpu.Hf {
		t.Error("add a,b: expected half-carry set")
	}
	if cpu.Cf {
		t.Error("add a,b: expected no carry")
	}
}

func TestINCSetsZeroAndHalfCarry(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.B = 0xFF
	bus.setBytes(0x0100, 0x04) // INC B
	cpu.step()
	if cpu.B != 0x00 || !cpu.Zf || !cpu.Hf {
		t.Errorf("inc b: expected B=0x00 Z=true H=true, got B=0x%02X Z=%v H=%v", cpu.B, cpu.Zf, cpu.Hf)
	}
}

func TestJRConditional(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.Zf = false
	bus.setBytes(0x0100, 0x20, 0x05) // JR NZ,+5
	cpu.step()
	if cpu.PC != 0x0107 {
		t.Errorf("jr nz: expected PC=0x0107, got 0x%04X", cpu.PC)
	}
}

func TestCALLRET(t *testing.T) {
	cpu, bus := newTestCPU()
	bus.setBytes(0x0100, 0xCD, 0x00, 0x02) // CALL 0x0200
	bus.setBytes(0x0200, 0xC9)             // RET
	cpu.step()
	if cpu.PC != 0x0200 || cpu.SP != 0xFFFC {
		t.Errorf("call: expected PC=0x0200 SP=0xFFFC, got PC=0x%04X SP=0x%04X", cpu.PC, cpu.SP)
	}
	cpu.step()
	if cpu.PC != 0x0103 || cpu.SP != 0xFFFE {
		t.Errorf("ret: expected PC=0x0103 SP=0xFFFE, got PC=0x%04X SP=0x%04X", cpu.PC, cpu.SP)
	}
}

func TestCBBitResSet(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.B = 0x00
	bus.setBytes(0x0100, 0xCB, 0x70) // BIT 6,B
	cpu.step()
	if !cpu.Zf {
		t.Error("bit 6,b: expected Z set on a zero bit")
	}

	bus.setBytes(0x0102, 0xCB, 0xF0) // SET 6,B
	cpu.step()
	if cpu.B&0x40 == 0 {
		t.Error("set 6,b: expected bit 6 set")
	}

	bus.setBytes(0x0104, 0xCB, 0xB0) // RES 6,B
	cpu.step()
	if cpu.B&0x40 != 0 {
		t.Error("res 6,b: expected bit 6 cleared")
	}
}

func TestEIDelaysOneInstruction(t *testing.T) {
	cpu, bus := newTestCPU()
	bus.setBytes(0x0100, 0xFB, 0x00) // EI, NOP
	cpu.step()
	if cpu.ime {
		t.Error("ei: expected IME still false immediately after EI")
	}
	cpu.step()
	if !cpu.ime {
		t.Error("ei: expected IME true after the following instruction")
	}
}

func TestInterruptDispatch(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.ime = true
	bus.data[regIE] = 0x01
	bus.data[regIF] = 0x01
	bus.setBytes(0x0100, 0x00) // NOP, never reached before the interrupt fires
	cpu.step()
	if cpu.PC != vblankVector {
		t.Errorf("interrupt: expected PC=0x%04X, got 0x%04X", vblankVector, cpu.PC)
	}
	if cpu.ime {
		t.Error("interrupt: expected IME cleared after dispatch")
	}
	if bus.data[regIF]&0x01 != 0 {
		t.Error("interrupt: expected IF bit cleared after dispatch")
	}
}

func TestHaltWakesOnPendingInterrupt(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.ime = false
	bus.setBytes(0x0100, 0x76) // HALT
	cpu.step()
	if !cpu.halted {
		t.Fatal("halt: expected halted state")
	}
	bus.data[regIE] = 0x01
	bus.data[regIF] = 0x01
	cpu.step()
	if cpu.halted {
		t.Error("halt: expected wake on pending interrupt even with IME false")
	}
}

func TestClockListenerAdvance(t *testing.T) {
	cpu, bus := newTestCPU()
	bus.setBytes(0x0100, 0x00, 0x00, 0x00)
	cpu.SetDesiredTicks(clock.Tick(3 * TicksPerMachineCycle))
	cpu.Execute()
	if cpu.PC != 0x0103 {
		t.Errorf("execute: expected PC=0x0103 after 3 nops, got 0x%04X", cpu.PC)
	}
	cpu.AdvanceClock(clock.Tick(3 * TicksPerMachineCycle))
	if cpu.tick != 0 {
		t.Errorf("advance: expected tick 0, got %d", cpu.tick)
	}
}
