package rom

import (
	"fmt"
	"strings"
)

const gbHeaderOffset = 0x100
const gbHeaderSize = 0x50 // 0x100-0x14F

// parseGB parses the Game Boy cartridge header living at file offset
// 0x100 (bytes 0x100-0x14F), per spec §6.
func parseGB(data []byte) (*Rom, error) {
	if len(data) < gbHeaderOffset+gbHeaderSize {
		return nil, fmt.Errorf("%w: file too short for Game Boy header", ErrMalformedHeader)
	}
	h := data[gbHeaderOffset : gbHeaderOffset+gbHeaderSize]

	cgbFlag := h[0x43]
	cgbSupport := cgbFlag&0x80 != 0
	cgbOnly := cgbFlag == 0xC0

	titleEnd := 0x44
	if cgbSupport {
		titleEnd = 0x3F // CGB carts reuse 0x13F-0x142 for manufacturer code
	}
	title := strings.TrimRight(string(h[0x34:titleEnd]), "\x00")

	cartType := h[0x47]
	mapper, hasRAM, hasBattery, hasTimer, hasRumble := classifyGBMapper(cartType)
	if mapper == GBMapperUnsupported {
		return nil, fmt.Errorf("%w: cartridge type %#02x", ErrUnknownMapper, cartType)
	}

	romBanks := gbROMBanks(h[0x48])
	ramBanks := gbRAMBanks(h[0x49])
	romSize := romBanks * 16 * 1024
	if len(data) < romSize {
		return nil, fmt.Errorf("%w: declared ROM size exceeds file length", ErrInconsistentSize)
	}

	desc := Description{
		System:         SystemGB,
		Title:          title,
		GBMapper:       mapper,
		CartridgeType:  cartType,
		ROMBanks:       romBanks,
		RAMBanks:       ramBanks,
		CGBSupport:     cgbSupport,
		CGBOnly:        cgbOnly,
		SGBSupport:     h[0x46] == 0x03,
		HasRAM:         hasRAM,
		Battery:        hasBattery,
		HasTimer:       hasTimer,
		HasRumble:      hasRumble,
		Destination:    h[0x4A],
		LicenseeOld:    h[0x4B],
		LicenseeNew:    uint16(h[0x44])<<8 | uint16(h[0x45]),
		Version:        h[0x4C],
		HeaderChecksum: h[0x4D],
		GlobalChecksum:  uint16(h[0x4E])<<8 | uint16(h[0x4F]),
	}
	content := Content{
		RawROM: data[:romSize],
		Header: append([]byte(nil), h...),
	}
	return &Rom{desc: desc, content: content}, nil
}

// classifyGBMapper maps the cartridge-type byte to a mapper family and its
// RAM/battery/timer/rumble flags, per the canonical Game Boy header table.
func classifyGBMapper(cartType uint8) (mapper GBMapper, hasRAM, hasBattery, hasTimer, hasRumble bool) {
	switch cartType {
	case 0x00:
		return GBMapperROM, false, false, false, false
	case 0x08:
		return GBMapperROM, true, false, false, false
	case 0x09:
		return GBMapperROM, true, true, false, false
	case 0x01:
		return GBMapperMBC1, false, false, false, false
	case 0x02:
		return GBMapperMBC1, true, false, false, false
	case 0x03:
		return GBMapperMBC1, true, true, false, false
	case 0x05:
		return GBMapperMBC2, false, false, false, false
	case 0x06:
		return GBMapperMBC2, true, true, false, false
	case 0x0F:
		return GBMapperMBC3, false, true, true, false
	case 0x10:
		return GBMapperMBC3, true, true, true, false
	case 0x11:
		return GBMapperMBC3, false, false, false, false
	case 0x12:
		return GBMapperMBC3, true, false, false, false
	case 0x13:
		return GBMapperMBC3, true, true, false, false
	case 0x19:
		return GBMapperMBC5, false, false, false, false
	case 0x1A:
		return GBMapperMBC5, true, false, false, false
	case 0x1B:
		return GBMapperMBC5, true, true, false, false
	case 0x1C:
		return GBMapperMBC5, false, false, false, true
	case 0x1D:
		return GBMapperMBC5, true, false, false, true
	case 0x1E:
		return GBMapperMBC5, true, true, false, true
	default:
		return GBMapperUnsupported, false, false, false, false
	}
}

func gbROMBanks(code uint8) int {
	if code > 0x08 {
		return 2
	}
	return 2 << code
}

func gbRAMBanks(code uint8) int {
	switch code {
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}
