package nesmapper

import (
	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

const chrSubBankSize = 4 * 1024

// mmc1 implements mapper 1 (SxROM), grounded on
// original_source/ManyNES/Mapper1.cpp: a 5-bit serial shift register
// latches writes anywhere in $8000-$FFFF; the fifth write commits the
// shifted value into one of four control registers selected by the
// address's bit 13-14.
type mmc1 struct {
	cpuBus, chrBus *membus.Bus
	ppu            PPUHost
	prgROM, chrROM []byte
	chrRAM         []byte
	ram            [prgRAMSize]byte

	shift   uint8
	count   uint8
	ctrl    uint8 // register 0: mirroring(0-1) | prgMode(2-3) | chrMode(4)
	chr0    uint8 // register 1
	chr1    uint8 // register 2
	prgBank uint8 // register 3
}

func newMMC1() *mmc1 { return &mmc1{} }

func (m *mmc1) Initialize(c Components) error {
	content := c.Rom.Content()
	m.prgROM = content.PRGROM
	m.chrROM = content.CHRROM
	m.cpuBus = c.CPUBus
	m.chrBus = c.PPU.CHRBus()
	m.ppu = c.PPU
	if len(m.chrROM) == 0 {
		m.chrRAM = make([]byte, 0x2000)
	}

	c.CPUBus.AddReadWriteRange(0x6000, 0x7FFF, m.ram[:], 0x6000)
	c.CPUBus.AddRange(membus.TableWrite, 0x8000, 0xFFFF, membus.WriteCallback(m.regWrite, nil, 0x8000))

	m.Reset()
	return nil
}

func (m *mmc1) Reset() {
	m.shift, m.count = 0, 0
	m.ctrl = 0x0C
	m.chr0, m.chr1, m.prgBank = 0, 0, 0
	m.updateMemoryMap()
}

func (m *mmc1) BeginFrame() {}

func (m *mmc1) regWrite(_ any, _ clock.Tick, addr uint32, value uint8) {
	if value&0x80 != 0 {
		m.shift, m.count = 0, 0
		m.ctrl |= 0x0C
		m.updateMemoryMap()
		return
	}
	m.shift = (m.shift >> 1) | ((value & 1) << 4)
	m.count++
	if m.count < 5 {
		return
	}
	reg := (addr >> 13) & 3
	switch reg {
	case 0:
		m.ctrl = m.shift
	case 1:
		m.chr0 = m.shift
	case 2:
		m.chr1 = m.shift
	case 3:
		m.prgBank = m.shift
	}
	m.shift, m.count = 0, 0
	m.updateMemoryMap()
}

func (m *mmc1) updateMemoryMap() {
	prgBanks := uint32(len(m.prgROM) / prgBankSize)
	prgMode := (m.ctrl >> 2) & 0x03
	prgBank := uint32(m.prgBank & 0x0F)

	switch prgMode {
	case 0, 1:
		// 32KB mode: bank ignores the low bit, both halves switch together.
		base := (prgBank &^ 1) * prgBankSize
		m.cpuBus.AddRange(membus.TableRead, 0x8000, 0xBFFF, membus.MemAccess(m.prgROM[base:base+prgBankSize], 0x8000))
		m.cpuBus.AddRange(membus.TableRead, 0xC000, 0xFFFF, membus.MemAccess(m.prgROM[base+prgBankSize:base+2*prgBankSize], 0xC000))
	case 2:
		// fix first bank at $8000, switch $C000
		m.cpuBus.AddRange(membus.TableRead, 0x8000, 0xBFFF, membus.MemAccess(m.prgROM[:prgBankSize], 0x8000))
		off := prgBank * prgBankSize
		m.cpuBus.AddRange(membus.TableRead, 0xC000, 0xFFFF, membus.MemAccess(m.prgROM[off:off+prgBankSize], 0xC000))
	case 3:
		// switch $8000, fix last bank at $C000
		off := prgBank * prgBankSize
		m.cpuBus.AddRange(membus.TableRead, 0x8000, 0xBFFF, membus.MemAccess(m.prgROM[off:off+prgBankSize], 0x8000))
		lastOff := (prgBanks - 1) * prgBankSize
		m.cpuBus.AddRange(membus.TableRead, 0xC000, 0xFFFF, membus.MemAccess(m.prgROM[lastOff:lastOff+prgBankSize], 0xC000))
	}

	chr0, chr1 := uint32(m.chr0&0x1F), uint32(m.chr1&0x1F)
	chr8KMode := m.ctrl&0x10 == 0
	if chr8KMode {
		chr0 &^= 1
		chr1 = chr0 | 1
	}
	src := m.chrROM
	if m.chrRAM != nil {
		src = m.chrRAM
	}
	if uint32(len(src)) >= (chr0+1)*chrSubBankSize {
		access := membus.MemAccess(src[chr0*chrSubBankSize:(chr0+1)*chrSubBankSize], 0x0000)
		m.chrBus.AddRange(membus.TableRead, 0x0000, 0x0FFF, access)
		if m.chrRAM != nil {
			m.chrBus.AddRange(membus.TableWrite, 0x0000, 0x0FFF, access)
		}
	}
	if uint32(len(src)) >= (chr1+1)*chrSubBankSize {
		access := membus.MemAccess(src[chr1*chrSubBankSize:(chr1+1)*chrSubBankSize], 0x1000)
		m.chrBus.AddRange(membus.TableRead, 0x1000, 0x1FFF, access)
		if m.chrRAM != nil {
			m.chrBus.AddRange(membus.TableWrite, 0x1000, 0x1FFF, access)
		}
	}

	m.ppu.SetMirroring(mmc1Mirroring(m.ctrl))
}

func mmc1Mirroring(ctrl uint8) rom.Mirroring {
	switch ctrl & 0x03 {
	case 0:
		return rom.MirrorSingleScreen0
	case 1:
		return rom.MirrorSingleScreen1
	case 2:
		return rom.MirrorVertical
	default:
		return rom.MirrorHorizontal
	}
}

func (m *mmc1) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	w.PutBytes(m.ram[:])
	w.PutBytes(m.chrRAM)
}

func (m *mmc1) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	copy(m.ram[:], r.Bytes())
	copy(m.chrRAM, r.Bytes())
	return r.Err()
}

func (m *mmc1) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	w.PutUint8(m.shift)
	w.PutUint8(m.count)
	w.PutUint8(m.ctrl)
	w.PutUint8(m.chr0)
	w.PutUint8(m.chr1)
	w.PutUint8(m.prgBank)
}

func (m *mmc1) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	m.shift = r.Uint8()
	m.count = r.Uint8()
	m.ctrl = r.Uint8()
	m.chr0 = r.Uint8()
	m.chr1 = r.Uint8()
	m.prgBank = r.Uint8()
	m.updateMemoryMap()
	return r.Err()
}
