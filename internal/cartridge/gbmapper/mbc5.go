package gbmapper

import (
	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/serialize"
)

// mbc5 implements the MBC5 cartridge: a full 9-bit ROM bank register split
// across two write ports and a 4-bit RAM bank register, the simplest of the
// bank-switched families (no mode latch, no fixed-low-bank quirk). Grounded
// on the same MapperBase windowing as mbc1/mbc3, generalized to MBC5's
// wider bank range per the canonical Game Boy MBC5 behavior.
type mbc5 struct {
	bus     *membus.Bus
	rawROM  []byte
	ram     []byte
	hasRAM  bool
	hasRumble bool

	ramEnable bool
	romBankLo uint8
	romBankHi uint8
	ramBank   uint8
}

func newMBC5() *mbc5 { return &mbc5{} }

func (m *mbc5) Initialize(c Components) error {
	m.rawROM = c.Rom.Content().RawROM
	m.hasRAM = c.Rom.Description().HasRAM
	m.hasRumble = c.Rom.Description().HasRumble
	if m.hasRAM {
		banks := c.Rom.Description().RAMBanks
		if banks == 0 {
			banks = 1
		}
		m.ram = make([]byte, banks*ramBankSize)
	}
	m.bus = c.CPUBus

	c.CPUBus.AddRange(membus.TableWrite, 0x0000, 0x1FFF, membus.WriteCallback(m.writeRAMEnable, nil, 0x0000))
	c.CPUBus.AddRange(membus.TableWrite, 0x2000, 0x2FFF, membus.WriteCallback(m.writeROMBankLow, nil, 0x2000))
	c.CPUBus.AddRange(membus.TableWrite, 0x3000, 0x3FFF, membus.WriteCallback(m.writeROMBankHigh, nil, 0x3000))
	c.CPUBus.AddRange(membus.TableWrite, 0x4000, 0x5FFF, membus.WriteCallback(m.writeRAMBank, nil, 0x4000))
	if m.hasRAM {
		c.CPUBus.AddRange(membus.TableRead, 0xA000, 0xBFFF, membus.ReadCallback(m.readRAM, nil, 0xA000))
		c.CPUBus.AddRange(membus.TableWrite, 0xA000, 0xBFFF, membus.WriteCallback(m.writeRAM, nil, 0xA000))
	}

	m.Reset()
	return nil
}

func (m *mbc5) Reset() {
	m.ramEnable = false
	m.romBankLo = 1
	m.romBankHi = 0
	m.ramBank = 0
	m.updateMemoryMap()
}

func (m *mbc5) BeginFrame() {}

func (m *mbc5) writeRAMEnable(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.ramEnable = value&0x0F == 0x0A
}

func (m *mbc5) writeROMBankLow(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.romBankLo = value
	m.updateMemoryMap()
}

func (m *mbc5) writeROMBankHigh(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.romBankHi = value & 0x01
	m.updateMemoryMap()
}

func (m *mbc5) writeRAMBank(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.ramBank = value & 0x0F
}

func (m *mbc5) updateMemoryMap() {
	banks := uint32(len(m.rawROM) / romBankSize)
	if banks == 0 {
		return
	}
	bank := (uint32(m.romBankHi)<<8 | uint32(m.romBankLo)) % banks
	off := bank * romBankSize
	m.bus.AddRange(membus.TableRead, 0x0000, 0x3FFF, membus.MemAccess(m.rawROM[:romBankSize], 0x0000))
	m.bus.AddRange(membus.TableRead, 0x4000, 0x7FFF, membus.MemAccess(m.rawROM[off:off+romBankSize], 0x4000))
}

// addr arrives already relative to the $A000 base this callback was
// installed at; membus.Access subtracts Base before calling ReadFn/WriteFn.
func (m *mbc5) readRAM(_ any, _ clock.Tick, addr uint32) uint8 {
	if !m.ramEnable {
		return 0xFF
	}
	off := uint32(m.ramBank)*ramBankSize + addr
	if int(off) >= len(m.ram) {
		return 0xFF
	}
	return m.ram[off]
}

func (m *mbc5) writeRAM(_ any, _ clock.Tick, addr uint32, value uint8) {
	if !m.ramEnable {
		return
	}
	off := uint32(m.ramBank)*ramBankSize + addr
	if int(off) < len(m.ram) {
		m.ram[off] = value
	}
}

func (m *mbc5) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	w.PutBytes(m.ram)
}

func (m *mbc5) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	copy(m.ram, r.Bytes())
	return r.Err()
}

func (m *mbc5) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	w.PutBool(m.ramEnable)
	w.PutUint8(m.romBankLo)
	w.PutUint8(m.romBankHi)
	w.PutUint8(m.ramBank)
}

func (m *mbc5) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	m.ramEnable = r.Bool()
	m.romBankLo = r.Uint8()
	m.romBankHi = r.Uint8()
	m.ramBank = r.Uint8()
	m.updateMemoryMap()
	return r.Err()
}
