package nesmapper

import (
	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/serialize"
)

// uxrom implements mapper 2 (UxROM): a single latch write switches the
// 16KB PRG bank at $8000; the bank at $C000 is fixed to the last page.
// CHR is always RAM (UxROM carts have none).
type uxrom struct {
	prg     []byte
	chrRAM  [0x2000]byte
	ram     [prgRAMSize]byte
	bus     *membus.Bus
	bank    uint8
	banks   uint8
}

func newUxROM() *uxrom { return &uxrom{} }

func (m *uxrom) Initialize(c Components) error {
	content := c.Rom.Content()
	m.prg = content.PRGROM
	m.banks = uint8(len(m.prg) / prgBankSize)
	m.bus = c.CPUBus

	c.CPUBus.AddReadWriteRange(0x6000, 0x7FFF, m.ram[:], 0x6000)
	c.CPUBus.AddRange(membus.TableWrite, 0x8000, 0xFFFF, membus.WriteCallback(m.regWrite, nil, 0x8000))
	c.CPUBus.AddRange(membus.TableRead, 0xC000, 0xFFFF, membus.MemAccess(m.prg[uint32(m.banks-1)*prgBankSize:], 0xC000))

	c.PPU.CHRBus().AddReadWriteRange(0x0000, 0x1FFF, m.chrRAM[:], 0)
	c.PPU.SetMirroring(c.Rom.Description().Mirroring)

	m.updateBank()
	return nil
}

func (m *uxrom) regWrite(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.bank = value % m.banks
	m.updateBank()
}

func (m *uxrom) updateBank() {
	off := uint32(m.bank) * prgBankSize
	m.bus.AddRange(membus.TableRead, 0x8000, 0xBFFF, membus.MemAccess(m.prg[off:off+prgBankSize], 0x8000))
}

func (m *uxrom) Reset()      { m.bank = 0; m.updateBank() }
func (m *uxrom) BeginFrame() {}

func (m *uxrom) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	w.PutBytes(m.ram[:])
	w.PutBytes(m.chrRAM[:])
}

func (m *uxrom) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	copy(m.ram[:], r.Bytes())
	copy(m.chrRAM[:], r.Bytes())
	return r.Err()
}

func (m *uxrom) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	w.PutUint8(m.bank)
}

func (m *uxrom) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	m.bank = r.Uint8()
	m.updateBank()
	return r.Err()
}
