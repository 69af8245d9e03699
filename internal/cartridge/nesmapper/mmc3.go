package nesmapper

import (
	"duoemu/internal/clock"
	"duoemu/internal/membus"
	"duoemu/internal/rom"
	"duoemu/internal/serialize"
)

const chrQuarterBankSize = 1024

// mmc3 implements mapper 4 (MMC3/MMC6), grounded on
// original_source/NES/Mapper4.cpp: eight bank-select ports behind a single
// $8000 port-select register, independent PRG/CHR windowing modes, and a
// scanline-driven IRQ counter fed by the PPU's A12 toggling (approximated
// here as one decrement per visible scanline, matching the teacher pack's
// line-based PPU timing rather than true A12 edge detection).
type mmc3 struct {
	cpuBus, chrBus *membus.Bus
	ppu            PPUHost
	setIRQ         func(bool)
	prgROM, chrROM []byte
	chrRAM         []byte
	ram            [prgRAMSize]byte
	nameTableLocal []byte // four-screen carts only

	bankPorts [8]uint8
	chrMode   uint8
	prgMode   uint8
	port      uint8
	mirroring uint8
	wramEnable       bool
	wramWriteProtect bool

	irqCount   uint8
	irqReload  uint8
	irqEnable  bool
	irqPending bool
}

func newMMC3() *mmc3 { return &mmc3{} }

func (m *mmc3) Initialize(c Components) error {
	content := c.Rom.Content()
	m.prgROM = content.PRGROM
	m.chrROM = content.CHRROM
	m.cpuBus = c.CPUBus
	m.chrBus = c.PPU.CHRBus()
	m.ppu = c.PPU
	m.setIRQ = c.SetIRQ
	if len(m.chrROM) == 0 {
		m.chrRAM = make([]byte, 0x2000)
	}
	if c.Rom.Description().Mirroring == rom.MirrorFourScreen {
		m.nameTableLocal = make([]byte, 0x0800)
	}

	c.CPUBus.AddReadWriteRange(0x6000, 0x7FFF, m.ram[:], 0x6000)
	c.CPUBus.AddRange(membus.TableWrite, 0x8000, 0xFFFF, membus.WriteCallback(m.regWrite, nil, 0x8000))
	c.PPU.AddScanlineListener(m.onVisibleLineStart)

	m.Reset()
	return nil
}

func (m *mmc3) Reset() {
	for i := range m.bankPorts {
		m.bankPorts[i] = 0
	}
	m.chrMode = 0
	m.prgMode = 0
	m.port = 0
	m.mirroring = 0
	m.wramEnable = false
	m.wramWriteProtect = true
	m.irqCount = 0xFF
	m.irqReload = 0
	m.irqEnable = false
	m.irqPending = false
	m.updateMemoryMap()
	m.updateIRQStatus()
}

func (m *mmc3) BeginFrame() { m.updateIRQStatus() }

func (m *mmc3) regWrite(_ any, _ clock.Tick, addr uint32, value uint8) {
	switch addr & 0x6001 {
	case 0x0000:
		m.chrMode = (value >> 7) & 1
		m.prgMode = (value >> 6) & 1
		m.port = value & 0x07
		m.updateMemoryMap()
	case 0x0001:
		m.bankPorts[m.port] = value
		m.updateMemoryMap()
	case 0x2000:
		m.mirroring = value & 1
		m.updateMemoryMap()
	case 0x2001:
		m.wramEnable = value&0x80 != 0
		m.wramWriteProtect = value&0x40 == 0
		m.updateMemoryMap()
	case 0x4000:
		m.irqReload = value
	case 0x4001:
		m.irqCount = m.irqReload + 1
		m.updateIRQStatus()
	case 0x6000:
		m.irqEnable = false
		m.irqPending = false
		m.updateIRQStatus()
	case 0x6001:
		m.irqEnable = true
		m.updateIRQStatus()
	}
}

func (m *mmc3) onVisibleLineStart(_ clock.Tick) {
	m.irqCount--
	if m.irqCount == 0 {
		m.irqCount = m.irqReload
		m.irqPending = true
		m.updateIRQStatus()
	}
}

func (m *mmc3) updateIRQStatus() {
	if m.setIRQ != nil {
		m.setIRQ(m.irqPending && m.irqEnable)
	}
}

func (m *mmc3) updateMemoryMap() {
	prgBankCount := uint32(len(m.prgROM) / 0x2000)
	var prgBank [4]uint32
	if m.prgMode == 0 {
		prgBank[0] = uint32(m.bankPorts[6])
		prgBank[1] = uint32(m.bankPorts[7])
		prgBank[2] = prgBankCount - 2
		prgBank[3] = prgBankCount - 1
	} else {
		prgBank[0] = prgBankCount - 2
		prgBank[1] = uint32(m.bankPorts[7])
		prgBank[2] = uint32(m.bankPorts[6])
		prgBank[3] = prgBankCount - 1
	}
	for bank := uint32(0); bank < 4; bank++ {
		idx := prgBank[bank] % prgBankCount
		start := 0x8000 + bank*0x2000
		off := idx * 0x2000
		m.cpuBus.AddRange(membus.TableRead, start, start+0x1FFF, membus.MemAccess(m.prgROM[off:off+0x2000], start))
	}

	src := m.chrROM
	writable := m.chrRAM != nil
	if writable {
		src = m.chrRAM
	}
	chrBankCount := uint32(len(src) / chrQuarterBankSize)
	var chrBank [8]uint32
	if m.chrMode == 0 {
		chrBank[0] = uint32(m.bankPorts[0]) &^ 1
		chrBank[1] = uint32(m.bankPorts[0]) | 1
		chrBank[2] = uint32(m.bankPorts[1]) &^ 1
		chrBank[3] = uint32(m.bankPorts[1]) | 1
		chrBank[4] = uint32(m.bankPorts[2])
		chrBank[5] = uint32(m.bankPorts[3])
		chrBank[6] = uint32(m.bankPorts[4])
		chrBank[7] = uint32(m.bankPorts[5])
	} else {
		chrBank[0] = uint32(m.bankPorts[2])
		chrBank[1] = uint32(m.bankPorts[3])
		chrBank[2] = uint32(m.bankPorts[4])
		chrBank[3] = uint32(m.bankPorts[5])
		chrBank[4] = uint32(m.bankPorts[0]) &^ 1
		chrBank[5] = uint32(m.bankPorts[0]) | 1
		chrBank[6] = uint32(m.bankPorts[1]) &^ 1
		chrBank[7] = uint32(m.bankPorts[1]) | 1
	}
	for bank := uint32(0); bank < 8; bank++ {
		if chrBankCount == 0 {
			break
		}
		idx := chrBank[bank] % chrBankCount
		start := bank * chrQuarterBankSize
		off := idx * chrQuarterBankSize
		access := membus.MemAccess(src[off:off+chrQuarterBankSize], start)
		m.chrBus.AddRange(membus.TableRead, start, start+chrQuarterBankSize-1, access)
		if writable {
			m.chrBus.AddRange(membus.TableWrite, start, start+chrQuarterBankSize-1, access)
		}
	}

	if m.nameTableLocal != nil {
		m.ppu.SetMirroring(rom.MirrorFourScreen)
	} else if m.mirroring == 0 {
		m.ppu.SetMirroring(rom.MirrorVertical)
	} else {
		m.ppu.SetMirroring(rom.MirrorHorizontal)
	}
}

func (m *mmc3) SerializeGameData(w *serialize.Writer) {
	w.Version(1)
	w.PutBytes(m.ram[:])
	w.PutBytes(m.chrRAM)
	w.PutBytes(m.nameTableLocal)
}

func (m *mmc3) DeserializeGameData(r *serialize.Reader) error {
	r.Version(1)
	copy(m.ram[:], r.Bytes())
	copy(m.chrRAM, r.Bytes())
	copy(m.nameTableLocal, r.Bytes())
	return r.Err()
}

func (m *mmc3) SerializeGameState(w *serialize.Writer) {
	w.Version(1)
	for _, b := range m.bankPorts {
		w.PutUint8(b)
	}
	w.PutUint8(m.chrMode)
	w.PutUint8(m.prgMode)
	w.PutUint8(m.port)
	w.PutUint8(m.mirroring)
	w.PutBool(m.wramEnable)
	w.PutBool(m.wramWriteProtect)
	w.PutUint8(m.irqCount)
	w.PutUint8(m.irqReload)
	w.PutBool(m.irqEnable)
	w.PutBool(m.irqPending)
}

func (m *mmc3) DeserializeGameState(r *serialize.Reader) error {
	r.Version(1)
	for i := range m.bankPorts {
		m.bankPorts[i] = r.Uint8()
	}
	m.chrMode = r.Uint8()
	m.prgMode = r.Uint8()
	m.port = r.Uint8()
	m.mirroring = r.Uint8()
	m.wramEnable = r.Bool()
	m.wramWriteProtect = r.Bool()
	m.irqCount = r.Uint8()
	m.irqReload = r.Uint8()
	m.irqEnable = r.Bool()
	m.irqPending = r.Bool()
	m.updateMemoryMap()
	m.updateIRQStatus()
	return r.Err()
}
