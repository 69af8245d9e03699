package apunes

import (
	"testing"

	"duoemu/internal/clock"
)

type fakeDMCBus struct {
	data [0x10000]uint8
}

func (b *fakeDMCBus) Read(tick clock.Tick, addr uint32) uint8 { return b.data[addr&0xFFFF] }

func newTestAPU() *APU {
	return New(&fakeDMCBus{})
}

func TestPulseLengthCounterLoadsFromTable(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4000, 0x00)
	a.WriteRegister(0x4003, 0x08) // length index 1 -> lengthTable[1] = 254
	if a.pulse1.lengthCounter != lengthTable[1] {
		t.Errorf("expected length counter %d, got %d", lengthTable[1], a.pulse1.lengthCounter)
	}
}

func TestChannelEnableClearsLengthCounters(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(0x4003, 0x08)
	if a.pulse1.lengthCounter == 0 {
		t.Fatal("expected nonzero length counter before disable")
	}
	a.writeChannelEnable(0x00)
	if a.pulse1.lengthCounter != 0 {
		t.Error("expected pulse1 length counter cleared when channel disabled")
	}
}

func TestFrameSequencer4StepGeneratesIRQ(t *testing.T) {
	a := newTestAPU()
	a.writeFrameCounter(0x00) // 4-step, IRQ enabled
	for i := 0; i < 29830; i++ {
		a.stepFrameCounter()
	}
	if !a.frameIRQFlag {
		t.Error("expected frame IRQ flag set after 29830 frame-counter steps in 4-step mode")
	}
}

func TestFrameSequencer5StepNoIRQ(t *testing.T) {
	a := newTestAPU()
	a.writeFrameCounter(0x80) // 5-step mode
	for i := 0; i < 37281; i++ {
		a.stepFrameCounter()
	}
	if a.frameIRQFlag {
		t.Error("5-step mode never asserts the frame IRQ")
	}
}

func TestWriteFrameCounterModeDisablesIRQ(t *testing.T) {
	a := newTestAPU()
	a.frameIRQFlag = true
	a.writeFrameCounter(0x40) // IRQ inhibit bit set
	if a.frameIRQFlag {
		t.Error("expected frame IRQ flag cleared when inhibit bit is written")
	}
}

func TestNoiseShiftRegisterNeverZero(t *testing.T) {
	a := newTestAPU()
	a.noise.periodIndex = 0
	for i := 0; i < 1000; i++ {
		a.stepNoiseTimer(&a.noise)
	}
	if a.noise.shiftRegister == 0 {
		t.Error("noise LFSR should never settle at zero")
	}
}

func TestPulseSweepMutesOnShortPeriod(t *testing.T) {
	p := &pulseChannel{timer: 5, lengthCounter: 10}
	if out := (&APU{}).pulseOutput(p); out != 0 {
		t.Errorf("expected pulse output 0 for timer < 8, got %d", out)
	}
}

func TestDMCSampleFetchFromBus(t *testing.T) {
	a := newTestAPU()
	a.bus.(*fakeDMCBus).data[0xC000] = 0xFF
	a.dmc.sampleAddress = 0xC000
	a.dmc.sampleLength = 1
	a.dmc.currentAddress = 0xC000
	a.dmc.bytesRemaining = 1
	a.dmc.sampleBufferEmpty = true
	a.dmc.timerCounter = 0
	a.stepDMCTimer(&a.dmc)
	if a.dmc.sampleBuffer != 0xFF {
		t.Errorf("expected sample buffer loaded from bus, got 0x%02X", a.dmc.sampleBuffer)
	}
}

func TestMixChannelsBounded(t *testing.T) {
	out := mixChannels(15, 15, 15, 15, 127)
	if out < -1.0 || out > 1.0 {
		t.Errorf("expected mixer output in [-1, 1], got %f", out)
	}
}

func TestReadStatusClearsFrameIRQ(t *testing.T) {
	a := newTestAPU()
	a.frameIRQFlag = true
	status := a.ReadStatus()
	if status&0x40 == 0 {
		t.Error("expected status bit 6 set for pending frame IRQ")
	}
	if a.frameIRQFlag {
		t.Error("expected frame IRQ flag cleared as a read side effect")
	}
}

func TestClockListenerAdvance(t *testing.T) {
	a := newTestAPU()
	a.SetDesiredTicks(clock.Tick(30))
	a.Execute()
	if a.tick != 30 {
		t.Errorf("expected tick=30, got %d", a.tick)
	}
	a.AdvanceClock(30)
	if a.tick != 0 || a.desiredTicks != 0 {
		t.Error("expected tick and desiredTicks reset after AdvanceClock consumed all ticks")
	}
}
