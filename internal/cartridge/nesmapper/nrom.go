package nesmapper

import (
	"duoemu/internal/membus"
	"duoemu/internal/serialize"
)

// nrom implements mapper 0 (NROM): fixed PRG/CHR banks, no bank-switching
// writes, generalized from the teacher's internal/cartridge/mapper000.go.
type nrom struct {
	prg []byte
	ram [prgRAMSize]byte
}

func newNROM() *nrom { return &nrom{} }

func (m *nrom) Initialize(c Components) error {
	content := c.Rom.Content()
	m.prg = content.PRGROM

	c.CPUBus.AddReadWriteRange(0x6000, 0x7FFF, m.ram[:], 0x6000)

	// 16KB ROMs mirror across both halves of the 32KB window; 32KB ROMs
	// map directly.
	c.CPUBus.AddRange(membus.TableRead, 0x8000, 0xBFFF, membus.MemAccess(m.prg, 0x8000))
	if len(m.prg) >= 0x8000 {
		c.CPUBus.AddRange(membus.TableRead, 0xC000, 0xFFFF, membus.MemAccess(m.prg, 0x8000))
	} else {
		c.CPUBus.AddRange(membus.TableRead, 0xC000, 0xFFFF, membus.MemAccess(m.prg, 0xC000))
	}

	chr := content.CHRROM
	chrWritable := len(chr) == 0
	if chrWritable {
		chr = make([]byte, 0x2000)
	}
	c.PPU.CHRBus().AddRange(membus.TableRead, 0x0000, 0x1FFF, membus.MemAccess(chr, 0))
	if chrWritable {
		c.PPU.CHRBus().AddRange(membus.TableWrite, 0x0000, 0x1FFF, membus.MemAccess(chr, 0))
	}

	c.PPU.SetMirroring(c.Rom.Description().Mirroring)
	return nil
}

func (m *nrom) Reset()      {}
func (m *nrom) BeginFrame() {}

func (m *nrom) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	w.PutBytes(m.ram[:])
}

func (m *nrom) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	copy(m.ram[:], r.Bytes())
	return r.Err()
}

func (m *nrom) SerializeGameState(w *serialize.Writer) { w.Version(1) }
func (m *nrom) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	return r.Err()
}
