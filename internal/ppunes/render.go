package ppunes

import "duoemu/internal/video"

// evaluateSprites picks up to 8 sprites intersecting the scanline about to
// be drawn into secondaryOAM, setting the overflow flag past that, matching
// the teacher's evaluateSprites/secondaryOAM model.
func (p *PPU) evaluateSprites() {
	p.spriteCount = 0
	height := 8
	if p.ctrl&0x20 != 0 {
		height = 16
	}

	for i := 0; i < 64; i++ {
		base := i * 4
		y := int(p.oam[base])
		if p.scanline < y+1 || p.scanline >= y+1+height {
			continue
		}
		if p.spriteCount < 8 {
			p.secondaryOAM[p.spriteCount] = spriteSlot{
				y:     p.oam[base],
				tile:  p.oam[base+1],
				attr:  p.oam[base+2],
				x:     p.oam[base+3],
				index: uint8(i),
			}
			p.spriteCount++
		} else {
			p.status |= 0x20 // sprite overflow
			break
		}
	}
}

// renderScanline composites background and sprite pixels for one visible
// row directly into the frame buffer.
func (p *PPU) renderScanline(y int) {
	if !p.renderingEnabled() {
		for x := 0; x < FrameWidth; x++ {
			p.frameBuffer[y*FrameWidth+x] = nesColorPalette[p.palette[0]&0x3F] & 0x00FFFFFF
		}
		return
	}

	var bgColorIndex [FrameWidth]uint8
	for x := 0; x < FrameWidth; x++ {
		var color uint8
		if p.mask&0x08 != 0 {
			color = p.backgroundPixel(x, y)
		}
		bgColorIndex[x] = color
		p.frameBuffer[y*FrameWidth+x] = p.paletteColor(0, color, false)
	}

	if p.mask&0x10 == 0 {
		return
	}

	// Lower OAM index wins: iterate back to front so the frontmost sprite's
	// write lands last.
	for i := p.spriteCount - 1; i >= 0; i-- {
		s := p.secondaryOAM[i]
		spriteY := y - (int(s.y) + 1)
		height := 8
		if p.ctrl&0x20 != 0 {
			height = 16
		}
		if spriteY < 0 || spriteY >= height {
			continue
		}
		if s.attr&0x80 != 0 {
			spriteY = height - 1 - spriteY
		}

		tile := s.tile
		patternBase := uint16(0)
		if height == 16 {
			patternBase = uint16(tile&1) * 0x1000
			tile &^= 1
			if spriteY >= 8 {
				tile++
				spriteY -= 8
			}
		} else if p.ctrl&0x08 != 0 {
			patternBase = 0x1000
		}

		low := p.readVRAM(patternBase + uint16(tile)*16 + uint16(spriteY))
		high := p.readVRAM(patternBase + uint16(tile)*16 + uint16(spriteY) + 8)
		row := video.TileRow2BPP(low, high)

		for col := 0; col < 8; col++ {
			px := int(s.x) + col
			if px < 0 || px >= FrameWidth {
				continue
			}
			idx := col
			if s.attr&0x40 != 0 {
				idx = 7 - col
			}
			colorIndex := row[idx]
			if colorIndex == 0 {
				continue
			}
			if s.index == 0 && bgColorIndex[px] != 0 && px != 255 {
				p.status |= 0x40 // sprite 0 hit
			}
			if s.attr&0x20 != 0 && bgColorIndex[px] != 0 {
				continue // background-priority sprite loses to opaque background
			}
			palette := s.attr & 0x03
			p.frameBuffer[y*FrameWidth+px] = p.paletteColor(4+palette, colorIndex, true)
		}
	}
}

// backgroundPixel returns the palette color index (0-3) for a scrolled
// background pixel, following the coarse/fine scroll split of v/t/x.
func (p *PPU) backgroundPixel(pixelX, pixelY int) uint8 {
	scrollX := int(p.t&0x001F)<<3 + int(p.x)
	scrollY := int((p.t>>5)&0x001F)<<3 + int((p.t>>12)&0x07)
	nametable := int((p.t >> 10) & 0x03)

	worldX := pixelX + scrollX
	worldY := pixelY + scrollY
	if worldX >= 256 {
		nametable ^= 1
		worldX -= 256
	}
	if worldY >= 240 {
		nametable ^= 2
		worldY -= 240
	}

	tileX, tileY := worldX>>3, worldY>>3
	fineX, fineY := worldX&7, worldY&7

	nametableAddr := 0x2000 | uint16(nametable&3)<<10 | uint16(tileY*32+tileX)
	tileID := p.readVRAM(nametableAddr)

	attrAddr := 0x23C0 | uint16(nametable&3)<<10 | uint16((tileY>>2)*8+(tileX>>2))
	attrByte := p.readVRAM(attrAddr)
	block := (tileX&2)>>1 + (tileY&2)
	paletteIdx := (attrByte >> (block * 2)) & 0x03

	patternBase := uint16(0)
	if p.ctrl&0x10 != 0 {
		patternBase = 0x1000
	}
	patternAddr := patternBase + uint16(tileID)*16 + uint16(fineY)
	low := p.readVRAM(patternAddr)
	high := p.readVRAM(patternAddr + 8)
	colorIndex := video.TileRow2BPP(low, high)[fineX]
	if colorIndex == 0 {
		return 0
	}
	return paletteIdx<<2 | colorIndex
}

// paletteColor resolves a background/sprite palette selector and in-palette
// index into an RGB color, treating color index 0 as the universal
// background color per NES palette addressing rules.
func (p *PPU) paletteColor(paletteSelector uint8, colorIndex uint8, isSprite bool) uint32 {
	if colorIndex&0x03 == 0 && !isSprite {
		return nesColorPalette[p.palette[0]&0x3F] & 0x00FFFFFF
	}
	var addr uint16
	if isSprite {
		addr = 0x10 + uint16(paletteSelector&0x03)*4 + uint16(colorIndex&0x03)
	} else {
		addr = uint16(paletteSelector)*4 + uint16(colorIndex&0x03)
		if colorIndex&0x03 == 0 {
			addr = 0
		}
	}
	return nesColorPalette[p.palette[paletteIndex(0x3F00+addr)]&0x3F] & 0x00FFFFFF
}

// nesColorPalette is the NES 2C02 NTSC palette, 64 entries stored as
// 0xFFRRGGBB; lookups mask off the alpha byte.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}
