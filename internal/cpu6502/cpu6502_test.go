package cpu6502

import (
	"testing"

	"duoemu/internal/clock"
)

// fakeBus implements Bus over a flat 64KB array, ignoring tick.
type fakeBus struct {
	data [0x10000]uint8
}

func (b *fakeBus) Read(_ clock.Tick, addr uint32) uint8  { return b.data[addr&0xFFFF] }
func (b *fakeBus) Write(_ clock.Tick, addr uint32, v uint8) { b.data[addr&0xFFFF] = v }

func (b *fakeBus) setBytes(addr uint16, values ...uint8) {
	for i, v := range values {
		b.data[addr+uint16(i)] = v
	}
}

type testHelper struct {
	cpu *CPU
	bus *fakeBus
}

func newTestHelper() *testHelper {
	bus := &fakeBus{}
	return &testHelper{cpu: New(bus), bus: bus}
}

func (h *testHelper) resetAt(address uint16) {
	h.bus.setBytes(resetVector, uint8(address&0xFF), uint8(address>>8))
	h.cpu.Reset()
}

func (h *testHelper) assertRegisters(t *testing.T, name string, a, x, y, sp uint8, pc uint16) {
	t.Helper()
	if h.cpu.A != a {
		t.Errorf("%s: expected A=0x%02X, got 0x%02X", name, a, h.cpu.A)
	}
	if h.cpu.X != x {
		t.Errorf("%s: expected X=0x%02X, got 0x%02X", name, x, h.cpu.X)
	}
	if h.cpu.Y != y {
		t.Errorf("%s: expected Y=0x%02X, got 0x%02X", name, y, h.cpu.Y)
	}
	if h.cpu.SP != sp {
		t.Errorf("%s: expected SP=0x%02X, got 0x%02X", name, sp, h.cpu.SP)
	}
	if h.cpu.PC != pc {
		t.Errorf("%s: expected PC=0x%04X, got 0x%04X", name, pc, h.cpu.PC)
	}
}

func TestReset(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.assertRegisters(t, "reset", 0, 0, 0, 0xFD, 0x8000)
	if !h.cpu.I {
		t.Error("reset: expected I flag set")
	}
}

func TestLDAImmediate(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.bus.setBytes(0x8000, 0xA9, 0x42)
	h.cpu.step()
	h.assertRegisters(t, "lda #$42", 0x42, 0, 0, 0xFD, 0x8002)
	if h.cpu.Z || h.cpu.N {
		t.Error("lda #$42: unexpected flags")
	}
}

func TestLDAZeroFlag(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.bus.setBytes(0x8000, 0xA9, 0x00)
	h.cpu.step()
	if !h.cpu.Z {
		t.Error("lda #$00: expected Z flag set")
	}
}

func TestSTAZeroPage(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.bus.setBytes(0x8000, 0xA9, 0x55, 0x85, 0x10)
	h.cpu.step()
	h.cpu.step()
	if h.bus.data[0x10] != 0x55 {
		t.Errorf("sta $10: expected 0x55, got 0x%02X", h.bus.data[0x10])
	}
}

func TestADCCarryAndOverflow(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.cpu.A = 0x7F
	h.bus.setBytes(0x8000, 0x69, 0x01)
	h.cpu.step()
	if h.cpu.A != 0x80 {
		t.Errorf("adc: expected A=0x80, got 0x%02X", h.cpu.A)
	}
	if !h.cpu.V {
		t.Error("adc: expected overflow flag set on signed overflow")
	}
	if h.cpu.C {
		t.Error("adc: expected no carry")
	}
}

func TestBranchTakenAddsCycle(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.bus.setBytes(0x8000, 0x18, 0x90, 0x02)
	startTick := h.cpu.tick
	h.cpu.step()
	h.cpu.step()
	if h.cpu.PC != 0x8005 {
		t.Errorf("bcc: expected PC=0x8005, got 0x%04X", h.cpu.PC)
	}
	if h.cpu.tick-startTick != clock.Tick((2+3)*TicksPerCycle) {
		t.Errorf("bcc: expected %d ticks, got %d", (2+3)*TicksPerCycle, h.cpu.tick-startTick)
	}
}

func TestJSRRTS(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.bus.setBytes(0x8000, 0x20, 0x00, 0x90)
	h.bus.setBytes(0x9000, 0x60)
	h.cpu.step()
	h.assertRegisters(t, "jsr", 0, 0, 0, 0xFB, 0x9000)
	h.cpu.step()
	h.assertRegisters(t, "rts", 0, 0, 0, 0xFD, 0x8003)
}

func TestNMIEdgeTrigger(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.bus.setBytes(nmiVector, 0x00, 0x90)
	h.bus.setBytes(0x8000, 0xEA) // nop, gives the pending NMI a step boundary to land on

	h.cpu.SetNMI(true)
	h.cpu.SetNMI(false) // falling edge arms nmiPending
	h.cpu.step()

	if h.cpu.PC != 0x9000 {
		t.Errorf("nmi: expected PC=0x9000, got 0x%04X", h.cpu.PC)
	}
	if !h.cpu.I {
		t.Error("nmi: expected I flag set after servicing")
	}
}

func TestIRQIgnoredWhenMasked(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.bus.setBytes(0x8000, 0xEA)
	h.cpu.I = true
	h.cpu.SetIRQ(true)
	h.cpu.step()
	if h.cpu.PC != 0x8001 {
		t.Errorf("irq masked: expected PC to advance past nop, got 0x%04X", h.cpu.PC)
	}
}

func TestStatusByteRoundTrip(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.cpu.N, h.cpu.V, h.cpu.Z, h.cpu.C = true, true, true, true
	s := h.cpu.StatusByte()
	h.cpu.N, h.cpu.V, h.cpu.Z, h.cpu.C = false, false, false, false
	h.cpu.SetStatusByte(s)
	if !h.cpu.N || !h.cpu.V || !h.cpu.Z || !h.cpu.C {
		t.Error("status byte round trip lost a flag")
	}
}

func TestClockListenerAdvance(t *testing.T) {
	h := newTestHelper()
	h.resetAt(0x8000)
	h.cpu.ResetClock() // start from tick 0, after the reset sequence's 7 cycles
	h.bus.setBytes(0x8000, 0xEA, 0xEA, 0xEA)
	h.cpu.SetDesiredTicks(clock.Tick(3 * TicksPerCycle))
	h.cpu.Execute()
	if h.cpu.PC != 0x8003 {
		t.Errorf("execute: expected PC=0x8003 after 3 nops, got 0x%04X", h.cpu.PC)
	}
	h.cpu.AdvanceClock(clock.Tick(3 * TicksPerCycle))
	if h.cpu.tick != 0 || h.cpu.desiredTicks != 0 {
		t.Errorf("advance: expected tick and desiredTicks at 0, got %d/%d", h.cpu.tick, h.cpu.desiredTicks)
	}
}
