// Package gbmapper implements the Game Boy cartridge mapper contract from
// spec §4.8: each mapper type installs its own two ROM view slots and
// 0xA000-0xBFFF external RAM slot, and the banked ones install write traps
// over cart ROM address ranges to interpret the mapper-specific latch
// protocol, grounded on original_source/Gameboy/Mappers.cpp's MapperBase.
package gbmapper

import (
	"fmt"

	"duoemu/internal/membus"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

// Components is everything Initialize needs to wire a Game Boy mapper's
// bank views over the cart's address space. Unlike the NES mapper, Game
// Boy cart hardware never talks to the PPU or raises CPU interrupts (MBC3's
// RTC is read purely through the bus), so this is just the bus and the Rom.
type Components struct {
	Rom    *rom.Rom
	CPUBus *membus.Bus
}

// Mapper is the contract every Game Boy cartridge hardware variant
// implements.
type Mapper interface {
	Initialize(c Components) error
	Reset()
	BeginFrame()
	SerializeGameData(w *serialize.Writer)
	DeserializeGameData(r *serialize.Reader) error
	SerializeGameState(w *serialize.Writer)
	DeserializeGameState(r *serialize.Reader) error
}

// New returns the Mapper implementation for r's cartridge type.
func New(r *rom.Rom) (Mapper, error) {
	switch r.Description().GBMapper {
	case rom.GBMapperROM:
		return newROMOnly(), nil
	case rom.GBMapperMBC1:
		return newMBC1(), nil
	case rom.GBMapperMBC2:
		return newMBC2(), nil
	case rom.GBMapperMBC3:
		return newMBC3(), nil
	case rom.GBMapperMBC5:
		return newMBC5(), nil
	default:
		return nil, fmt.Errorf("gbmapper: unsupported cartridge type %#02x", r.Description().CartridgeType)
	}
}

const (
	romBankSize = 0x4000
	ramBankSize = 0x2000
)
