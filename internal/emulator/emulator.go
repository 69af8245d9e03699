// Package emulator implements the Emulator factory from spec §6: the
// single entry point a host binds a render buffer, a sound buffer and
// controller input to, dispatching every call to whichever system's
// Context (internal/context) backs the currently loaded Rom.
package emulator

import (
	"errors"
	"fmt"

	corectx "duoemu/internal/context"
	"duoemu/internal/input"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

// SystemInfo names a supported console family and the file extensions
// its ROM images use.
type SystemInfo struct {
	Name       string
	Extensions []string
}

var supportedSystems = []SystemInfo{
	{Name: "NES", Extensions: []string{".nes"}},
	{Name: "Game Boy", Extensions: []string{".gb"}},
}

// GetSystemInfo returns every console family this build supports.
func GetSystemInfo() []SystemInfo { return supportedSystems }

// context is the narrow interface both NESContext and GBContext satisfy,
// everything the Emulator needs to drive a loaded cartridge.
type context interface {
	Reset()
	Valid() bool
	Execute()
	DisplaySize() (int, int)
	SoundSamples(n int) []int16
	SerializeGameData(w *serialize.Writer)
	DeserializeGameData(r *serialize.Reader) error
	SerializeGameState(w *serialize.Writer)
	DeserializeGameState(r *serialize.Reader) error
}

// Emulator is the factory described by spec §6. The zero value is not
// usable; construct with New.
type Emulator struct {
	rom *rom.Rom
	ctx context

	renderBuffer []uint32
	renderPitch  int
}

// New returns an empty Emulator with no ROM loaded.
func New() *Emulator { return &Emulator{} }

// LoadROM parses path and holds it ready for CreateContext. Any
// previously loaded ROM and its Context are released first.
func (e *Emulator) LoadROM(path string) error {
	r, err := rom.Load(path)
	if err != nil {
		return fmt.Errorf("emulator: load rom: %w", err)
	}
	e.UnloadROM()
	e.rom = r
	return nil
}

// UnloadROM releases the current ROM and Context, if any.
func (e *Emulator) UnloadROM() {
	e.rom = nil
	e.ctx = nil
}

// CreateContext builds a running Context for the loaded ROM. The caller
// must call LoadROM first; an unsupported mapper or missing ROM returns
// an error and leaves the Emulator without a Context, per spec §7's
// construction-phase propagation policy.
func (e *Emulator) CreateContext() error {
	if e.rom == nil {
		return errors.New("emulator: no rom loaded")
	}
	switch e.rom.Description().System {
	case rom.SystemNES:
		ctx, err := corectx.NewNESContext(e.rom)
		if err != nil {
			return fmt.Errorf("emulator: %w", err)
		}
		e.ctx = ctx
	case rom.SystemGB:
		ctx, err := corectx.NewGBContext(e.rom)
		if err != nil {
			return fmt.Errorf("emulator: %w", err)
		}
		e.ctx = ctx
	default:
		return fmt.Errorf("emulator: unsupported system %v", e.rom.Description().System)
	}
	return nil
}

// DestroyContext releases the current Context without unloading the ROM.
func (e *Emulator) DestroyContext() { e.ctx = nil }

// GetDisplaySize returns the Context's host-visible frame dimensions.
func (e *Emulator) GetDisplaySize() (int, int) {
	if e.ctx == nil {
		return 0, 0
	}
	return e.ctx.DisplaySize()
}

// SerializeGameData writes the Context's battery-backed save RAM.
func (e *Emulator) SerializeGameData(w *serialize.Writer) error {
	if e.ctx == nil {
		return errors.New("emulator: no context")
	}
	e.ctx.SerializeGameData(w)
	return nil
}

// DeserializeGameData restores battery RAM written by SerializeGameData.
func (e *Emulator) DeserializeGameData(r *serialize.Reader) error {
	if e.ctx == nil {
		return errors.New("emulator: no context")
	}
	return e.ctx.DeserializeGameData(r)
}

// SerializeGameState writes a full save-state snapshot of the Context.
func (e *Emulator) SerializeGameState(w *serialize.Writer) error {
	if e.ctx == nil {
		return errors.New("emulator: no context")
	}
	e.ctx.SerializeGameState(w)
	return nil
}

// DeserializeGameState restores a snapshot written by SerializeGameState.
// On error the Context is left in its pre-load state, per spec §7.
func (e *Emulator) DeserializeGameState(r *serialize.Reader) error {
	if e.ctx == nil {
		return errors.New("emulator: no context")
	}
	return e.ctx.DeserializeGameState(r)
}

// SetRenderBuffer binds a host-owned RGBA pixel buffer that Execute will
// fill after every frame, pitch pixels wide per row.
func (e *Emulator) SetRenderBuffer(buf []uint32, pitch int) {
	e.renderBuffer = buf
	e.renderPitch = pitch
}

// SetSoundBuffer is accepted for interface symmetry with spec §6; the
// actual fill happens on demand from DrainSound, since Go callers own
// their audio buffers directly rather than writing through a raw pointer.
func (e *Emulator) SetSoundBuffer(int) {}

// SetController updates controller index's button state from a packed
// bitmask (bits A, B, Select, Start, Up, Down, Left, Right), masking out
// the invalid Left+Right / Up+Down combinations at this boundary per
// spec §6.
func (e *Emulator) SetController(index int, bitmask uint8) {
	if e.ctx == nil {
		return
	}
	bitmask = maskInvalidDirections(bitmask)
	switch ctx := e.ctx.(type) {
	case *corectx.NESContext:
		for _, b := range []input.Button{input.ButtonA, input.ButtonB, input.ButtonSelect, input.ButtonStart, input.ButtonUp, input.ButtonDown, input.ButtonLeft, input.ButtonRight} {
			ctx.SetButton(index, b, bitmask&uint8(b) != 0)
		}
	case *corectx.GBContext:
		ctx.SetAction(input.GBA, bitmask&uint8(input.ButtonA) != 0)
		ctx.SetAction(input.GBB, bitmask&uint8(input.ButtonB) != 0)
		ctx.SetAction(input.GBSelect, bitmask&uint8(input.ButtonSelect) != 0)
		ctx.SetAction(input.GBStart, bitmask&uint8(input.ButtonStart) != 0)
		ctx.SetDirection(input.GBUp, bitmask&uint8(input.ButtonUp) != 0)
		ctx.SetDirection(input.GBDown, bitmask&uint8(input.ButtonDown) != 0)
		ctx.SetDirection(input.GBLeft, bitmask&uint8(input.ButtonLeft) != 0)
		ctx.SetDirection(input.GBRight, bitmask&uint8(input.ButtonRight) != 0)
	}
}

func maskInvalidDirections(bitmask uint8) uint8 {
	const up, down, left, right = uint8(input.ButtonUp), uint8(input.ButtonDown), uint8(input.ButtonLeft), uint8(input.ButtonRight)
	if bitmask&up != 0 && bitmask&down != 0 {
		bitmask &^= up | down
	}
	if bitmask&left != 0 && bitmask&right != 0 {
		bitmask &^= left | right
	}
	return bitmask
}

// Reset returns the current Context to its power-on state.
func (e *Emulator) Reset() {
	if e.ctx != nil {
		e.ctx.Reset()
	}
}

// Execute advances the Context by one frame and, if a render buffer is
// bound, copies the completed frame into it (cropping NES overscan rows
// per spec §6). It reports false if the Context faulted, per spec §7's
// "frame returns false" runtime-fault behavior.
func (e *Emulator) Execute() bool {
	if e.ctx == nil {
		return false
	}
	e.ctx.Execute()
	if !e.ctx.Valid() {
		return false
	}
	e.drawFrame()
	return true
}

func (e *Emulator) drawFrame() {
	if e.renderBuffer == nil {
		return
	}
	switch ctx := e.ctx.(type) {
	case *corectx.NESContext:
		src := ctx.FrameBuffer()
		const fullHeight = 240
		const visibleHeight = 224
		const width = 256
		const topMargin = (fullHeight - visibleHeight) / 2
		for y := 0; y < visibleHeight; y++ {
			srcRow := src[(y+topMargin)*width : (y+topMargin)*width+width]
			dstRow := e.renderBuffer[y*e.renderPitch : y*e.renderPitch+width]
			copy(dstRow, srcRow)
		}
	case *corectx.GBContext:
		src := ctx.FrameBuffer()
		w, h := ctx.DisplaySize()
		for y := 0; y < h; y++ {
			srcRow := src[y*w : y*w+w]
			dstRow := e.renderBuffer[y*e.renderPitch : y*e.renderPitch+w]
			copy(dstRow, srcRow)
		}
	}
}

// DrainSound copies exactly n decimated mono 16-bit PCM samples from the
// current Context's audio queue into out, per spec §6's sound-buffer
// contract.
func (e *Emulator) DrainSound(out []int16) {
	if e.ctx == nil {
		return
	}
	samples := e.ctx.SoundSamples(len(out))
	copy(out, samples)
}
