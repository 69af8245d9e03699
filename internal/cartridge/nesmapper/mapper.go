// Package nesmapper implements the NES cartridge mapper contract from
// spec §4.8: bank-switched PRG/CHR views installed over the CPU and PPU
// buses, plus the mapper-raised IRQ line used by MMC3's scanline counter.
package nesmapper

import (
	"fmt"

	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

// PPUHost is the narrow view of the PPU a mapper needs: its CHR bus for
// pattern-table bank switching, nametable mirroring control, and a
// subscription to the start of each visible scanline (used by MMC3's A12
// IRQ counter).
type PPUHost interface {
	CHRBus() *membus.Bus
	SetMirroring(rom.Mirroring)
	AddScanlineListener(fn func(tick clock.Tick))
}

// Components is everything Initialize needs to wire a mapper's bank views
// over the system buses. It is the Go analogue of ManyEmu's
// Mapper::Components.
type Components struct {
	Rom    *rom.Rom
	CPUBus *membus.Bus
	PPU    PPUHost
	Clock  *clock.Clock
	// SetIRQ reports the mapper's own IRQ line state; the Context ORs it
	// with the APU frame IRQ before forwarding to the CPU.
	SetIRQ func(active bool)
}

// Mapper is the contract every NES cartridge hardware variant implements,
// per spec §4.8.
type Mapper interface {
	Initialize(c Components) error
	Reset()
	BeginFrame()
	SerializeGameData(w *serialize.Writer)
	DeserializeGameData(r *serialize.Reader) error
	SerializeGameState(w *serialize.Writer)
	DeserializeGameState(r *serialize.Reader) error
}

// New returns the Mapper implementation for r's mapper id.
func New(r *rom.Rom) (Mapper, error) {
	switch id := r.Description().MapperID; id {
	case 0:
		return newNROM(), nil
	case 1:
		return newMMC1(), nil
	case 2:
		return newUxROM(), nil
	case 4:
		return newMMC3(), nil
	default:
		return nil, fmt.Errorf("nesmapper: unsupported mapper %d", id)
	}
}

const (
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
	prgRAMSize  = 8 * 1024
)
