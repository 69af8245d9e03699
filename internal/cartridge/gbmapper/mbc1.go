package gbmapper

import (
	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/serialize"
)

// mbc1 implements the MBC1 cartridge: a 5-bit ROM bank register and a 2-bit
// register shared between the RAM bank and the high ROM bank bits,
// multiplexed by a banking-mode latch, generalized from the fixed-bank
// MapperBase in original_source/Gameboy/Mappers.cpp to MBC1's switchable
// windows per the canonical Game Boy MBC1 behavior.
type mbc1 struct {
	bus    *membus.Bus
	rawROM []byte
	ram    []byte
	hasRAM bool

	ramEnable bool
	romLow5   uint8
	bank2     uint8 // RAM bank, or ROM bank bits 5-6 in mode 0
	mode      uint8 // 0: ROM banking, 1: RAM banking
}

func newMBC1() *mbc1 { return &mbc1{} }

func (m *mbc1) Initialize(c Components) error {
	m.rawROM = c.Rom.Content().RawROM
	m.hasRAM = c.Rom.Description().HasRAM
	if m.hasRAM {
		banks := c.Rom.Description().RAMBanks
		if banks == 0 {
			banks = 1
		}
		m.ram = make([]byte, banks*ramBankSize)
	}
	m.bus = c.CPUBus

	c.CPUBus.AddRange(membus.TableWrite, 0x0000, 0x1FFF, membus.WriteCallback(m.writeRAMEnable, nil, 0x0000))
	c.CPUBus.AddRange(membus.TableWrite, 0x2000, 0x3FFF, membus.WriteCallback(m.writeROMBankLow, nil, 0x2000))
	c.CPUBus.AddRange(membus.TableWrite, 0x4000, 0x5FFF, membus.WriteCallback(m.writeBank2, nil, 0x4000))
	c.CPUBus.AddRange(membus.TableWrite, 0x6000, 0x7FFF, membus.WriteCallback(m.writeMode, nil, 0x6000))
	if m.hasRAM {
		c.CPUBus.AddRange(membus.TableRead, 0xA000, 0xBFFF, membus.ReadCallback(m.readRAM, nil, 0xA000))
		c.CPUBus.AddRange(membus.TableWrite, 0xA000, 0xBFFF, membus.WriteCallback(m.writeRAM, nil, 0xA000))
	}

	m.Reset()
	return nil
}

func (m *mbc1) Reset() {
	m.ramEnable = false
	m.romLow5 = 1
	m.bank2 = 0
	m.mode = 0
	m.updateMemoryMap()
}

func (m *mbc1) BeginFrame() {}

func (m *mbc1) writeRAMEnable(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.ramEnable = value&0x0F == 0x0A
}

func (m *mbc1) writeROMBankLow(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.romLow5 = value & 0x1F
	if m.romLow5 == 0 {
		m.romLow5 = 1
	}
	m.updateMemoryMap()
}

func (m *mbc1) writeBank2(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.bank2 = value & 0x03
	m.updateMemoryMap()
}

func (m *mbc1) writeMode(_ any, _ clock.Tick, _ uint32, value uint8) {
	m.mode = value & 0x01
	m.updateMemoryMap()
}

func (m *mbc1) romBankCount() uint32 {
	return uint32(len(m.rawROM) / romBankSize)
}

func (m *mbc1) updateMemoryMap() {
	banks := m.romBankCount()
	if banks == 0 {
		return
	}

	lowBank := uint32(0)
	if m.mode == 1 {
		lowBank = (uint32(m.bank2) << 5) % banks
	}
	highBank := (uint32(m.bank2)<<5 | uint32(m.romLow5)) % banks

	loOff := lowBank * romBankSize
	hiOff := highBank * romBankSize
	m.bus.AddRange(membus.TableRead, 0x0000, 0x3FFF, membus.MemAccess(m.rawROM[loOff:loOff+romBankSize], 0x0000))
	m.bus.AddRange(membus.TableRead, 0x4000, 0x7FFF, membus.MemAccess(m.rawROM[hiOff:hiOff+romBankSize], 0x4000))
}

func (m *mbc1) ramBank() uint32 {
	if m.mode == 1 {
		return uint32(m.bank2)
	}
	return 0
}

// readRAM and writeRAM receive addr already relative to the $A000 base the
// callback was installed at (membus.Access subtracts Base before invoking
// ReadFn/WriteFn), so no further offsetting is needed here.
func (m *mbc1) readRAM(_ any, _ clock.Tick, addr uint32) uint8 {
	if !m.ramEnable || m.ram == nil {
		return 0xFF
	}
	off := m.ramBank()*ramBankSize + addr
	if int(off) >= len(m.ram) {
		return 0xFF
	}
	return m.ram[off]
}

func (m *mbc1) writeRAM(_ any, _ clock.Tick, addr uint32, value uint8) {
	if !m.ramEnable || m.ram == nil {
		return
	}
	off := m.ramBank()*ramBankSize + addr
	if int(off) < len(m.ram) {
		m.ram[off] = value
	}
}

func (m *mbc1) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	w.PutBytes(m.ram)
}

func (m *mbc1) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	copy(m.ram, r.Bytes())
	return r.Err()
}

func (m *mbc1) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	w.PutBool(m.ramEnable)
	w.PutUint8(m.romLow5)
	w.PutUint8(m.bank2)
	w.PutUint8(m.mode)
}

func (m *mbc1) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	m.ramEnable = r.Bool()
	m.romLow5 = r.Uint8()
	m.bank2 = r.Uint8()
	m.mode = r.Uint8()
	m.updateMemoryMap()
	return r.Err()
}
