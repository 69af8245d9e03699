package gbmapper

import (
	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/serialize"
)

// mbc2 implements the MBC2 cartridge: a 4-bit ROM bank register and a
// built-in 512x4-bit RAM, both accessed through writes to the same ROM
// range distinguished by address bit 8, per the canonical Game Boy MBC2
// behavior and the same MapperBase windowing style as mbc1.
type mbc2 struct {
	bus       *membus.Bus
	rawROM    []byte
	ram       [512]byte
	ramEnable bool
	romBank   uint8
}

func newMBC2() *mbc2 { return &mbc2{} }

func (m *mbc2) Initialize(c Components) error {
	m.rawROM = c.Rom.Content().RawROM
	m.bus = c.CPUBus

	c.CPUBus.AddRange(membus.TableWrite, 0x0000, 0x3FFF, membus.WriteCallback(m.writeControl, nil, 0x0000))
	c.CPUBus.AddRange(membus.TableRead, 0xA000, 0xBFFF, membus.ReadCallback(m.readRAM, nil, 0xA000))
	c.CPUBus.AddRange(membus.TableWrite, 0xA000, 0xBFFF, membus.WriteCallback(m.writeRAM, nil, 0xA000))

	m.Reset()
	return nil
}

func (m *mbc2) Reset() {
	m.ramEnable = false
	m.romBank = 1
	m.updateMemoryMap()
}

func (m *mbc2) BeginFrame() {}

// writeControl dispatches on address bit 8: clear selects the RAM-enable
// latch, set selects the ROM bank register.
func (m *mbc2) writeControl(_ any, _ clock.Tick, addr uint32, value uint8) {
	if addr&0x0100 == 0 {
		m.ramEnable = value&0x0F == 0x0A
		return
	}
	m.romBank = value & 0x0F
	if m.romBank == 0 {
		m.romBank = 1
	}
	m.updateMemoryMap()
}

func (m *mbc2) updateMemoryMap() {
	banks := uint32(len(m.rawROM) / romBankSize)
	if banks == 0 {
		return
	}
	bank := uint32(m.romBank) % banks
	off := bank * romBankSize
	m.bus.AddRange(membus.TableRead, 0x0000, 0x3FFF, membus.MemAccess(m.rawROM[:romBankSize], 0x0000))
	m.bus.AddRange(membus.TableRead, 0x4000, 0x7FFF, membus.MemAccess(m.rawROM[off:off+romBankSize], 0x4000))
}

// addr arrives already relative to the $A000 base this callback was
// installed at; membus.Access subtracts Base before calling ReadFn/WriteFn.
func (m *mbc2) readRAM(_ any, _ clock.Tick, addr uint32) uint8 {
	if !m.ramEnable {
		return 0xFF
	}
	return m.ram[addr%512] | 0xF0
}

func (m *mbc2) writeRAM(_ any, _ clock.Tick, addr uint32, value uint8) {
	if !m.ramEnable {
		return
	}
	m.ram[addr%512] = value & 0x0F
}

func (m *mbc2) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	w.PutBytes(m.ram[:])
}

func (m *mbc2) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	copy(m.ram[:], r.Bytes())
	return r.Err()
}

func (m *mbc2) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	w.PutBool(m.ramEnable)
	w.PutUint8(m.romBank)
}

func (m *mbc2) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	m.ramEnable = r.Bool()
	m.romBank = r.Uint8()
	m.updateMemoryMap()
	return r.Err()
}
