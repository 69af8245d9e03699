package gbmapper

import (
	"duoemu/internal/serialize"
)

// romOnly implements cartridge type 0x00/0x08/0x09: no bank switching, an
// optional fixed external RAM window, grounded on MapperBase/MapperROM in
// original_source/Gameboy/Mappers.cpp.
type romOnly struct {
	rom [2 * romBankSize]byte
	ram [ramBankSize]byte
	hasRAM bool
}

func newROMOnly() *romOnly { return &romOnly{} }

func (m *romOnly) Initialize(c Components) error {
	raw := c.Rom.Content().RawROM
	copy(m.rom[:], raw)
	m.hasRAM = c.Rom.Description().HasRAM

	c.CPUBus.AddReadWriteRange(0x0000, 0x7FFF, m.rom[:], 0x0000)
	if m.hasRAM {
		c.CPUBus.AddReadWriteRange(0xA000, 0xBFFF, m.ram[:], 0xA000)
	}
	return nil
}

func (m *romOnly) Reset()      {}
func (m *romOnly) BeginFrame() {}

func (m *romOnly) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	if m.hasRAM {
		w.PutBytes(m.ram[:])
	}
}

func (m *romOnly) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	if m.hasRAM {
		copy(m.ram[:], r.Bytes())
	}
	return r.Err()
}

func (m *romOnly) SerializeGameState(w *serialize.Writer) { w.Version(1) }
func (m *romOnly) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	return r.Err()
}
