// Package apugb implements the Game Boy (DMG) audio unit: two pulse
// channels (the first with a frequency sweep), a programmable wave
// channel, a noise channel, the 512 Hz frame sequencer, and the NR50/NR51
// stereo mixer. Grounded on original_source/Gameboy/Audio.h's NRxx
// register surface and the teacher's apunes package for the
// clock.Listener-driven channel/frame-sequencer architecture, generalized
// from apunes' CPU-cycle tick rate to the Game Boy's T-state tick rate
// (cpulr35902's master tick unit).
package apugb

import (
	"duoemu/internal/clock"
	"duoemu/internal/logging"
	"duoemu/internal/serialize"
)

// frameSequencerPeriod is 8192 T-states, giving the 512 Hz frame
// sequencer clock from the 4.194304 MHz DMG system clock.
const frameSequencerPeriod = 8192

type pulseChannel struct {
	sweepPeriod, sweepShift uint8
	sweepNegate             bool
	sweepEnabled            bool
	sweepTimer              uint8
	shadowFreq              uint16

	duty uint8

	lengthCounter uint8
	lengthEnable  bool

	volume          uint8
	envelopeAddMode bool
	envelopePeriod  uint8
	envelopeTimer   uint8

	frequency    uint16
	timerCounter uint16
	dutyIndex    uint8

	enabled bool
}

type waveChannel struct {
	dacEnabled    bool
	lengthCounter uint16
	lengthEnable  bool
	volumeShift   uint8
	frequency     uint16
	timerCounter  uint16
	position      uint8
	ram           [16]uint8

	enabled bool
}

type noiseChannel struct {
	lengthCounter uint8
	lengthEnable  bool

	volume          uint8
	envelopeAddMode bool
	envelopePeriod  uint8
	envelopeTimer   uint8

	shiftAmount  uint8
	widthMode    bool
	divisorCode  uint8
	timerCounter uint16
	shiftRegister uint16

	enabled bool
}

// APU is the DMG sound core.
type APU struct {
	pulse1, pulse2 pulseChannel
	wave           waveChannel
	noise          noiseChannel

	nr50 uint8 // master volume / Vin
	nr51 uint8 // channel panning
	powerOn bool

	frameSequencerCounter clock.Tick
	frameSequencerStep    uint8

	samples    []float32
	sampleRate int

	tick, desiredTicks clock.Tick

	log logging.Logger
}

// New returns a DMG APU.
func New() *APU {
	a := &APU{sampleRate: 44100, samples: make([]float32, 0, 4096), log: logging.New("APU_GB", nil)}
	a.Reset()
	return a
}

// SetLogSink redirects the APU's unimplemented-register trace (spec
// §4.7, §9) to sink instead of the default log.Default().
func (a *APU) SetLogSink(sink logging.Sink) { a.log = logging.New("APU_GB", sink) }

func (a *APU) Reset() {
	a.pulse1, a.pulse2 = pulseChannel{}, pulseChannel{}
	a.wave = waveChannel{}
	a.noise = noiseChannel{shiftRegister: 0x7FFF}
	a.nr50, a.nr51 = 0x77, 0xF3
	a.powerOn = true
	a.frameSequencerCounter, a.frameSequencerStep = 0, 0
	a.samples = a.samples[:0]
	a.tick, a.desiredTicks = 0, 0
}

// --- clock.Listener ---

func (a *APU) Execute() {
	for a.tick < a.desiredTicks {
		a.stepTick()
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

func (a *APU) stepTick() {
	a.tick++
	if !a.powerOn {
		return
	}

	a.stepPulseTimer(&a.pulse1)
	a.stepPulseTimer(&a.pulse2)
	a.stepWaveTimer(&a.wave)
	a.stepNoiseTimer(&a.noise)

	a.frameSequencerCounter++
	if a.frameSequencerCounter >= frameSequencerPeriod {
		a.frameSequencerCounter -= frameSequencerPeriod
		a.stepFrameSequencer()
	}

	a.generateSample()
}

func (a *APU) stepFrameSequencer() {
	switch a.frameSequencerStep {
	case 0, 4:
		a.clockLength()
	case 2, 6:
		a.clockLength()
		a.clockSweep()
	case 7:
		a.clockEnvelope()
	}
	a.frameSequencerStep = (a.frameSequencerStep + 1) & 7
}

func (a *APU) generateSample() {
	left, right := a.mix()
	a.samples = append(a.samples, left, right)
}

// GetSamples drains and returns the accumulated interleaved stereo buffer.
func (a *APU) GetSamples() []float32 {
	out := a.samples
	a.samples = make([]float32, 0, 4096)
	return out
}

func (a *APU) SetSampleRate(rate int) { a.sampleRate = rate }
func (a *APU) GetSampleRate() int     { return a.sampleRate }

// Serialize writes every channel's state, the frame sequencer and mixer
// registers. The sample buffer is transient audio output and is not part
// of a save state.
func (a *APU) Serialize(w *serialize.Writer) {
	w.Version(1)
	serializeGBPulse(w, &a.pulse1)
	serializeGBPulse(w, &a.pulse2)

	w.PutBool(a.wave.dacEnabled)
	w.PutUint16(a.wave.lengthCounter)
	w.PutBool(a.wave.lengthEnable)
	w.PutUint8(a.wave.volumeShift)
	w.PutUint16(a.wave.frequency)
	w.PutUint16(a.wave.timerCounter)
	w.PutUint8(a.wave.position)
	w.PutBytes(a.wave.ram[:])
	w.PutBool(a.wave.enabled)

	w.PutUint8(a.noise.lengthCounter)
	w.PutBool(a.noise.lengthEnable)
	w.PutUint8(a.noise.volume)
	w.PutBool(a.noise.envelopeAddMode)
	w.PutUint8(a.noise.envelopePeriod)
	w.PutUint8(a.noise.envelopeTimer)
	w.PutUint8(a.noise.shiftAmount)
	w.PutBool(a.noise.widthMode)
	w.PutUint8(a.noise.divisorCode)
	w.PutUint16(a.noise.timerCounter)
	w.PutUint16(a.noise.shiftRegister)
	w.PutBool(a.noise.enabled)

	w.PutUint8(a.nr50)
	w.PutUint8(a.nr51)
	w.PutBool(a.powerOn)
	w.PutInt32(int32(a.frameSequencerCounter))
	w.PutUint8(a.frameSequencerStep)
	w.PutInt32(int32(a.tick))
	w.PutInt32(int32(a.desiredTicks))
}

// Deserialize restores state written by Serialize.
func (a *APU) Deserialize(r *serialize.Reader) error {
	r.Version(1)
	deserializeGBPulse(r, &a.pulse1)
	deserializeGBPulse(r, &a.pulse2)

	a.wave.dacEnabled = r.Bool()
	a.wave.lengthCounter = r.Uint16()
	a.wave.lengthEnable = r.Bool()
	a.wave.volumeShift = r.Uint8()
	a.wave.frequency = r.Uint16()
	a.wave.timerCounter = r.Uint16()
	a.wave.position = r.Uint8()
	copy(a.wave.ram[:], r.Bytes())
	a.wave.enabled = r.Bool()

	a.noise.lengthCounter = r.Uint8()
	a.noise.lengthEnable = r.Bool()
	a.noise.volume = r.Uint8()
	a.noise.envelopeAddMode = r.Bool()
	a.noise.envelopePeriod = r.Uint8()
	a.noise.envelopeTimer = r.Uint8()
	a.noise.shiftAmount = r.Uint8()
	a.noise.widthMode = r.Bool()
	a.noise.divisorCode = r.Uint8()
	a.noise.timerCounter = r.Uint16()
	a.noise.shiftRegister = r.Uint16()
	a.noise.enabled = r.Bool()

	a.nr50 = r.Uint8()
	a.nr51 = r.Uint8()
	a.powerOn = r.Bool()
	a.frameSequencerCounter = clock.Tick(r.Int32())
	a.frameSequencerStep = r.Uint8()
	a.tick = clock.Tick(r.Int32())
	a.desiredTicks = clock.Tick(r.Int32())
	return r.Err()
}

func serializeGBPulse(w *serialize.Writer, p *pulseChannel) {
	w.PutUint8(p.sweepPeriod)
	w.PutUint8(p.sweepShift)
	w.PutBool(p.sweepNegate)
	w.PutBool(p.sweepEnabled)
	w.PutUint8(p.sweepTimer)
	w.PutUint16(p.shadowFreq)
	w.PutUint8(p.duty)
	w.PutUint8(p.lengthCounter)
	w.PutBool(p.lengthEnable)
	w.PutUint8(p.volume)
	w.PutBool(p.envelopeAddMode)
	w.PutUint8(p.envelopePeriod)
	w.PutUint8(p.envelopeTimer)
	w.PutUint16(p.frequency)
	w.PutUint16(p.timerCounter)
	w.PutUint8(p.dutyIndex)
	w.PutBool(p.enabled)
}

func deserializeGBPulse(r *serialize.Reader, p *pulseChannel) {
	p.sweepPeriod = r.Uint8()
	p.sweepShift = r.Uint8()
	p.sweepNegate = r.Bool()
	p.sweepEnabled = r.Bool()
	p.sweepTimer = r.Uint8()
	p.shadowFreq = r.Uint16()
	p.duty = r.Uint8()
	p.lengthCounter = r.Uint8()
	p.lengthEnable = r.Bool()
	p.volume = r.Uint8()
	p.envelopeAddMode = r.Bool()
	p.envelopePeriod = r.Uint8()
	p.envelopeTimer = r.Uint8()
	p.frequency = r.Uint16()
	p.timerCounter = r.Uint16()
	p.dutyIndex = r.Uint8()
	p.enabled = r.Bool()
}
