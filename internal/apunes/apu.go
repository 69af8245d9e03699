// Package apunes implements the NES Audio Processing Unit (2A03): the two
// pulse channels, triangle, noise, and DMC, the 4-/5-step frame sequencer,
// and the non-linear mixer. Grounded on the teacher's internal/apu/apu.go
// channel model and frame-counter timing, generalized onto the shared
// clock.Listener contract and the CPU's membus.Bus for DMC sample fetch.
package apunes

import (
	"duoemu/internal/clock"
	"duoemu/internal/logging"
	"duoemu/internal/serialize"
)

// ticksPerCPUCycle mirrors cpu6502.TicksPerCycle: the master tick is
// defined at PPU dot resolution, 3 dots per CPU cycle, and the APU's
// channel timers and frame sequencer are clocked at the CPU rate.
const ticksPerCPUCycle = 3

// Bus is the narrow CPU-address-space view the DMC channel needs to fetch
// sample bytes.
type Bus interface {
	Read(tick clock.Tick, addr uint32) uint8
}

type pulseChannel struct {
	dutyCycle                   uint8
	envelopeLoop, envelopeDisable bool
	volume                      uint8

	sweepEnable, sweepNegate bool
	sweepPeriod, sweepShift  uint8
	sweepReload              bool
	sweepCounter             uint8

	timer, timerCounter uint16

	lengthCounter uint8
	lengthHalt    bool

	envelopeStart   bool
	envelopeCounter uint8
	envelopeDivider uint8

	dutyIndex    uint8
	sequencerPos uint8
}

type triangleChannel struct {
	lengthCounterHalt bool
	linearCounterLoad uint8

	timer, timerCounter uint16
	lengthCounter       uint8

	linearCounter       uint8
	linearCounterReload bool

	sequencerPos uint8
}

type noiseChannel struct {
	envelopeLoop, envelopeDisable bool
	volume                        uint8

	mode         bool
	periodIndex  uint8
	timerCounter uint16

	lengthCounter uint8
	lengthHalt    bool

	envelopeStart   bool
	envelopeCounter uint8
	envelopeDivider uint8

	shiftRegister uint16
}

type dmcChannel struct {
	irqEnable, loop bool
	rateIndex       uint8

	outputLevel uint8

	sampleAddress uint16
	sampleLength  uint16

	timerCounter      uint16
	sampleBuffer      uint8
	sampleBufferBits  uint8
	sampleBufferEmpty bool
	bytesRemaining    uint16
	currentAddress    uint16

	irqFlag bool
}

// APU is the NES 2A03 sound core.
type APU struct {
	pulse1, pulse2 pulseChannel
	triangle       triangleChannel
	noise          noiseChannel
	dmc            dmcChannel

	frameCounter     uint16
	frameMode        bool
	frameIRQEnable   bool
	frameIRQFlag     bool

	channelEnable [5]bool

	bus Bus

	samples    []float32
	sampleRate int

	tick         clock.Tick
	desiredTicks clock.Tick
	cycleAccum   clock.Tick

	log logging.Logger
}

// New returns an APU wired to bus for DMC sample fetches.
func New(bus Bus) *APU {
	a := &APU{bus: bus, sampleRate: 44100, samples: make([]float32, 0, 4096), log: logging.New("APU_NES", nil)}
	a.Reset()
	return a
}

// SetLogSink redirects the APU's unimplemented-register trace (spec
// §4.7, §9) to sink instead of the default log.Default().
func (a *APU) SetLogSink(sink logging.Sink) { a.log = logging.New("APU_NES", sink) }

func (a *APU) Reset() {
	a.pulse1, a.pulse2 = pulseChannel{}, pulseChannel{}
	a.triangle = triangleChannel{}
	a.noise = noiseChannel{shiftRegister: 1}
	a.dmc = dmcChannel{}
	a.frameCounter = 0
	a.frameMode = false
	a.frameIRQEnable = true
	a.frameIRQFlag = false
	for i := range a.channelEnable {
		a.channelEnable[i] = false
	}
	a.samples = a.samples[:0]
	a.tick, a.desiredTicks, a.cycleAccum = 0, 0, 0
}

// --- clock.Listener ---

func (a *APU) Execute() {
	for a.tick < a.desiredTicks {
		a.cycleAccum += 1
		a.tick++
		if a.cycleAccum >= ticksPerCPUCycle {
			a.cycleAccum -= ticksPerCPUCycle
			a.stepCPUCycle()
		}
	}
}

func (a *APU) SetDesiredTicks(ticks clock.Tick) { a.desiredTicks = ticks }

func (a *APU) AdvanceClock(ticks clock.Tick) {
	a.tick -= ticks
	a.desiredTicks -= ticks
}

func (a *APU) ResetClock() {
	a.tick = 0
	a.desiredTicks = 0
}

func (a *APU) stepCPUCycle() {
	a.stepFrameCounter()
	a.stepPulseTimer(&a.pulse1)
	a.stepPulseTimer(&a.pulse2)
	a.stepTriangleTimer(&a.triangle)
	a.stepNoiseTimer(&a.noise)
	a.stepDMCTimer(&a.dmc)
	a.generateSample()
}

func (a *APU) stepFrameCounter() {
	a.frameCounter++
	if a.frameMode {
		switch a.frameCounter {
		case 7457, 22371:
			a.clockEnvelopeAndLinear()
		case 14913:
			a.clockEnvelopeAndLinear()
			a.clockLengthAndSweep()
		case 37281:
			a.clockEnvelopeAndLinear()
			a.clockLengthAndSweep()
			a.frameCounter = 0
		}
	} else {
		switch a.frameCounter {
		case 7457, 22371:
			a.clockEnvelopeAndLinear()
		case 14913:
			a.clockEnvelopeAndLinear()
			a.clockLengthAndSweep()
		case 29829:
			a.clockEnvelopeAndLinear()
			a.clockLengthAndSweep()
		case 29830:
			if a.frameIRQEnable {
				a.frameIRQFlag = true
			}
			a.frameCounter = 0
		}
	}
}

func (a *APU) clockEnvelopeAndLinear() {
	a.clockPulseEnvelope(&a.pulse1)
	a.clockPulseEnvelope(&a.pulse2)
	a.clockNoiseEnvelope(&a.noise)
	a.clockTriangleLinear(&a.triangle)
}

func (a *APU) clockLengthAndSweep() {
	a.clockPulseLength(&a.pulse1)
	a.clockPulseSweep(&a.pulse1, true)
	a.clockPulseLength(&a.pulse2)
	a.clockPulseSweep(&a.pulse2, false)
	a.clockTriangleLength(&a.triangle)
	a.clockNoiseLength(&a.noise)
}

func (a *APU) generateSample() {
	p1 := a.channelOutput(0)
	p2 := a.channelOutput(1)
	tr := a.channelOutput(2)
	no := a.channelOutput(3)
	dm := a.channelOutput(4)
	a.samples = append(a.samples, mixChannels(p1, p2, tr, no, dm))
}

// GetSamples drains and returns the accumulated sample buffer.
func (a *APU) GetSamples() []float32 {
	out := a.samples
	a.samples = make([]float32, 0, 4096)
	return out
}

func (a *APU) SetSampleRate(rate int) { a.sampleRate = rate }
func (a *APU) GetSampleRate() int     { return a.sampleRate }

func (a *APU) GetFrameIRQ() bool { return a.frameIRQFlag }
func (a *APU) GetDMCIRQ() bool   { return a.dmc.irqFlag }

// Serialize writes every channel's state, the frame sequencer and the
// channel-enable mask. The sample buffer is transient audio output and is
// not part of a save state.
func (a *APU) Serialize(w *serialize.Writer) {
	w.Version(1)
	serializePulse(w, &a.pulse1)
	serializePulse(w, &a.pulse2)

	w.PutBool(a.triangle.lengthCounterHalt)
	w.PutUint8(a.triangle.linearCounterLoad)
	w.PutUint16(a.triangle.timer)
	w.PutUint16(a.triangle.timerCounter)
	w.PutUint8(a.triangle.lengthCounter)
	w.PutUint8(a.triangle.linearCounter)
	w.PutBool(a.triangle.linearCounterReload)
	w.PutUint8(a.triangle.sequencerPos)

	w.PutBool(a.noise.envelopeLoop)
	w.PutBool(a.noise.envelopeDisable)
	w.PutUint8(a.noise.volume)
	w.PutBool(a.noise.mode)
	w.PutUint8(a.noise.periodIndex)
	w.PutUint16(a.noise.timerCounter)
	w.PutUint8(a.noise.lengthCounter)
	w.PutBool(a.noise.lengthHalt)
	w.PutBool(a.noise.envelopeStart)
	w.PutUint8(a.noise.envelopeCounter)
	w.PutUint8(a.noise.envelopeDivider)
	w.PutUint16(a.noise.shiftRegister)

	w.PutBool(a.dmc.irqEnable)
	w.PutBool(a.dmc.loop)
	w.PutUint8(a.dmc.rateIndex)
	w.PutUint8(a.dmc.outputLevel)
	w.PutUint16(a.dmc.sampleAddress)
	w.PutUint16(a.dmc.sampleLength)
	w.PutUint16(a.dmc.timerCounter)
	w.PutUint8(a.dmc.sampleBuffer)
	w.PutUint8(a.dmc.sampleBufferBits)
	w.PutBool(a.dmc.sampleBufferEmpty)
	w.PutUint16(a.dmc.bytesRemaining)
	w.PutUint16(a.dmc.currentAddress)
	w.PutBool(a.dmc.irqFlag)

	w.PutUint16(a.frameCounter)
	w.PutBool(a.frameMode)
	w.PutBool(a.frameIRQEnable)
	w.PutBool(a.frameIRQFlag)
	for _, enabled := range a.channelEnable {
		w.PutBool(enabled)
	}
	w.PutInt32(int32(a.tick))
	w.PutInt32(int32(a.desiredTicks))
	w.PutInt32(int32(a.cycleAccum))
}

// Deserialize restores state written by Serialize.
func (a *APU) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	deserializePulse(r, &a.pulse1)
	deserializePulse(r, &a.pulse2)

	a.triangle.lengthCounterHalt = r.Bool()
	a.triangle.linearCounterLoad = r.Uint8()
	a.triangle.timer = r.Uint16()
	a.triangle.timerCounter = r.Uint16()
	a.triangle.lengthCounter = r.Uint8()
	a.triangle.linearCounter = r.Uint8()
	a.triangle.linearCounterReload = r.Bool()
	a.triangle.sequencerPos = r.Uint8()

	a.noise.envelopeLoop = r.Bool()
	a.noise.envelopeDisable = r.Bool()
	a.noise.volume = r.Uint8()
	a.noise.mode = r.Bool()
	a.noise.periodIndex = r.Uint8()
	a.noise.timerCounter = r.Uint16()
	a.noise.lengthCounter = r.Uint8()
	a.noise.lengthHalt = r.Bool()
	a.noise.envelopeStart = r.Bool()
	a.noise.envelopeCounter = r.Uint8()
	a.noise.envelopeDivider = r.Uint8()
	a.noise.shiftRegister = r.Uint16()

	a.dmc.irqEnable = r.Bool()
	a.dmc.loop = r.Bool()
	a.dmc.rateIndex = r.Uint8()
	a.dmc.outputLevel = r.Uint8()
	a.dmc.sampleAddress = r.Uint16()
	a.dmc.sampleLength = r.Uint16()
	a.dmc.timerCounter = r.Uint16()
	a.dmc.sampleBuffer = r.Uint8()
	a.dmc.sampleBufferBits = r.Uint8()
	a.dmc.sampleBufferEmpty = r.Bool()
	a.dmc.bytesRemaining = r.Uint16()
	a.dmc.currentAddress = r.Uint16()
	a.dmc.irqFlag = r.Bool()

	a.frameCounter = r.Uint16()
	a.frameMode = r.Bool()
	a.frameIRQEnable = r.Bool()
	a.frameIRQFlag = r.Bool()
	for i := range a.channelEnable {
		a.channelEnable[i] = r.Bool()
	}
	a.tick = clock.Tick(r.Int32())
	a.desiredTicks = clock.Tick(r.Int32())
	a.cycleAccum = clock.Tick(r.Int32())
	return r.Err()
}

func serializePulse(w *serialize.Writer, p *pulseChannel) {
	w.PutUint8(p.dutyCycle)
	w.PutBool(p.envelopeLoop)
	w.PutBool(p.envelopeDisable)
	w.PutUint8(p.volume)
	w.PutBool(p.sweepEnable)
	w.PutBool(p.sweepNegate)
	w.PutUint8(p.sweepPeriod)
	w.PutUint8(p.sweepShift)
	w.PutBool(p.sweepReload)
	w.PutUint8(p.sweepCounter)
	w.PutUint16(p.timer)
	w.PutUint16(p.timerCounter)
	w.PutUint8(p.lengthCounter)
	w.PutBool(p.lengthHalt)
	w.PutBool(p.envelopeStart)
	w.PutUint8(p.envelopeCounter)
	w.PutUint8(p.envelopeDivider)
	w.PutUint8(p.dutyIndex)
	w.PutUint8(p.sequencerPos)
}

func deserializePulse(r *serialize.Reader, p *pulseChannel) {
	p.dutyCycle = r.Uint8()
	p.envelopeLoop = r.Bool()
	p.envelopeDisable = r.Bool()
	p.volume = r.Uint8()
	p.sweepEnable = r.Bool()
	p.sweepNegate = r.Bool()
	p.sweepPeriod = r.Uint8()
	p.sweepShift = r.Uint8()
	p.sweepReload = r.Bool()
	p.sweepCounter = r.Uint8()
	p.timer = r.Uint16()
	p.timerCounter = r.Uint16()
	p.lengthCounter = r.Uint8()
	p.lengthHalt = r.Bool()
	p.envelopeStart = r.Bool()
	p.envelopeCounter = r.Uint8()
	p.envelopeDivider = r.Uint8()
	p.dutyIndex = r.Uint8()
	p.sequencerPos = r.Uint8()
}

func mixChannels(pulse1, pulse2, triangle, noise, dmc uint8) float32 {
	pulseSum := float64(pulse1 + pulse2)
	var pulseOut float64
	if pulseSum != 0 {
		pulseOut = 95.88 / ((8128.0 / pulseSum) + 100.0)
	}
	tndSum := (float64(triangle) / 8227.0) + (float64(noise) / 12241.0) + (float64(dmc) / 22638.0)
	var tndOut float64
	if tndSum != 0 {
		tndOut = 159.79 / ((1.0 / tndSum) + 100.0)
	}
	return float32((pulseOut+tndOut)/30.0 - 1.0)
}
