package ppugb

import (
	"sort"

	"duoemu/internal/video"
)

// dmgShades are the four-shade monochrome palette the teacher's
// kMonoPalette table uses, stored here as 0xAARRGGBB so frame buffers can
// be blitted directly.
var dmgShades = [4]uint32{
	0xFFFFFFFF,
	0xFFBBBBBB,
	0xFF555555,
	0xFF000000,
}

func shade(palette uint8, colorIndex uint8) uint32 {
	idx := (palette >> (colorIndex * 2)) & 0x03
	return dmgShades[idx]
}

// renderScanline composites background, window and sprite pixels for one
// visible row, matching Display::renderLinesMono's per-line granularity.
func (p *PPU) renderScanline(y int) {
	var bgColorIndex [FrameWidth]uint8

	if p.lcdc&lcdcBGOn != 0 {
		p.renderBackgroundRow(y, &bgColorIndex)
	} else {
		for x := range bgColorIndex {
			p.frameBuffer[y*FrameWidth+x] = dmgShades[0]
		}
	}

	windowDrawn := false
	if p.lcdc&lcdcWindowOn != 0 && int(p.wy) <= y && p.wx <= 166 {
		p.renderWindowRow(y, &bgColorIndex)
		windowDrawn = true
	}
	if windowDrawn {
		p.windowLine++
	}

	if p.lcdc&lcdcObjOn != 0 {
		p.renderSpriteRow(y, &bgColorIndex)
	}
}

func (p *PPU) renderBackgroundRow(y int, bgColorIndex *[FrameWidth]uint8) {
	tileMapBase := uint16(0x1800)
	if p.lcdc&lcdcBGMap != 0 {
		tileMapBase = 0x1C00
	}
	signedTiles := p.lcdc&lcdcTileData == 0

	bgY := uint8(y) + p.scy
	tileRow := uint16(bgY>>3) * 32
	fineY := bgY & 7

	for x := 0; x < FrameWidth; x++ {
		bgX := uint8(x) + p.scx
		tileCol := uint16(bgX >> 3)
		fineX := bgX & 7

		tileIndex := p.vram[tileMapBase+tileRow+tileCol]
		tileAddr := tileDataAddr(tileIndex, signedTiles)

		low := p.vram[tileAddr+uint16(fineY)*2]
		high := p.vram[tileAddr+uint16(fineY)*2+1]
		colorIndex := video.TileRow2BPP(low, high)[fineX]

		bgColorIndex[x] = colorIndex
		p.frameBuffer[y*FrameWidth+x] = shade(p.bgp, colorIndex)
	}
}

func (p *PPU) renderWindowRow(y int, bgColorIndex *[FrameWidth]uint8) {
	tileMapBase := uint16(0x1800)
	if p.lcdc&lcdcWindowMap != 0 {
		tileMapBase = 0x1C00
	}
	signedTiles := p.lcdc&lcdcTileData == 0

	winY := uint8(p.windowLine)
	tileRow := uint16(winY>>3) * 32
	fineY := winY & 7

	startX := int(p.wx) - 7
	for x := 0; x < FrameWidth; x++ {
		if x < startX {
			continue
		}
		winX := uint8(x - startX)
		tileCol := uint16(winX >> 3)
		fineX := winX & 7

		tileIndex := p.vram[tileMapBase+tileRow+tileCol]
		tileAddr := tileDataAddr(tileIndex, signedTiles)

		low := p.vram[tileAddr+uint16(fineY)*2]
		high := p.vram[tileAddr+uint16(fineY)*2+1]
		colorIndex := video.TileRow2BPP(low, high)[fineX]

		bgColorIndex[x] = colorIndex
		p.frameBuffer[y*FrameWidth+x] = shade(p.bgp, colorIndex)
	}
}

func tileDataAddr(tileIndex uint8, signedTiles bool) uint16 {
	if signedTiles {
		return uint16(0x1000 + int16(int8(tileIndex))*16)
	}
	return uint16(tileIndex) * 16
}

// renderSpriteRow scans OAM for up to 10 sprites intersecting y and draws
// them, matching Display::sortMonoSprites/drawSpritesMono's X-then-index
// priority order (lower X wins; ties broken by OAM index, drawn here by
// iterating candidates back-to-front so the earliest-priority sprite's
// write lands last).
func (p *PPU) renderSpriteRow(y int, bgColorIndex *[FrameWidth]uint8) {
	height := 8
	if p.lcdc&lcdcObjSize != 0 {
		height = 16
	}

	var candidates []spriteEntry
	for i := 0; i < 40 && len(candidates) < 10; i++ {
		base := i * 4
		spriteY := int(p.oam[base]) - 16
		if y < spriteY || y >= spriteY+height {
			continue
		}
		candidates = append(candidates, spriteEntry{
			y:        p.oam[base],
			x:        p.oam[base+1],
			tile:     p.oam[base+2],
			attr:     p.oam[base+3],
			oamIndex: uint8(i),
		})
	}

	// Sort by priority ascending (smallest X, then smallest OAM index
	// wins), then draw back to front so the highest-priority sprite's
	// write lands last.
	sort.Slice(candidates, func(i, j int) bool {
		return higherPriority(candidates[i], candidates[j])
	})

	for i := len(candidates) - 1; i >= 0; i-- {
		s := candidates[i]
		spriteY := int(s.y) - 16
		spriteX := int(s.x) - 8
		line := y - spriteY
		if s.attr&0x40 != 0 {
			line = height - 1 - line
		}

		tile := s.tile
		if height == 16 {
			tile &^= 1
			if line >= 8 {
				tile++
				line -= 8
			}
		}

		tileAddr := uint16(tile) * 16
		low := p.vram[tileAddr+uint16(line)*2]
		high := p.vram[tileAddr+uint16(line)*2+1]
		row := video.TileRow2BPP(low, high)

		palette := p.obp0
		if s.attr&0x10 != 0 {
			palette = p.obp1
		}
		behindBG := s.attr&0x80 != 0

		for col := 0; col < 8; col++ {
			px := spriteX + col
			if px < 0 || px >= FrameWidth {
				continue
			}
			idx := col
			if s.attr&0x20 != 0 {
				idx = 7 - col
			}
			colorIndex := row[idx]
			if colorIndex == 0 {
				continue
			}
			if behindBG && bgColorIndex[px] != 0 {
				continue
			}
			p.frameBuffer[y*FrameWidth+px] = shade(palette, colorIndex)
		}
	}
}

// higherPriority reports whether a should be drawn over b: smaller X wins,
// ties broken by smaller OAM index.
func higherPriority(a, b spriteEntry) bool {
	if a.x != b.x {
		return a.x < b.x
	}
	return a.oamIndex < b.oamIndex
}
