package main

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"duoemu/internal/emulator"
	"duoemu/internal/input"
)

const sampleRate = 44100
const samplesPerFrame = sampleRate / 60

// game implements ebiten.Game around an emulator.Emulator, grounded on the
// teacher's EbitengineGame (internal/graphics/ebitengine_backend.go):
// keyboard polling in Update, a reusable RGBA buffer blitted in Draw.
type game struct {
	emu *emulator.Emulator

	width, height int
	pixels        []uint32
	img           *ebiten.Image
	rgba          *image.RGBA

	soundBuf    [samplesPerFrame]int16
	sound       *soundStream
	audioPlayer *audio.Player
}

func newGame(emu *emulator.Emulator, width, height int) *game {
	g := &game{
		emu:    emu,
		width:  width,
		height: height,
		pixels: make([]uint32, width*height),
		img:    ebiten.NewImage(width, height),
		rgba:   image.NewRGBA(image.Rect(0, 0, width, height)),
		sound:  &soundStream{},
	}
	g.emu.SetRenderBuffer(g.pixels, width)

	ctx := audio.NewContext(sampleRate)
	player, err := ctx.NewPlayer(g.sound)
	if err == nil {
		player.Play()
		g.audioPlayer = player
	}
	return g
}

var keyButtons = map[ebiten.Key]input.Button{
	ebiten.KeyArrowUp:    input.ButtonUp,
	ebiten.KeyArrowDown:  input.ButtonDown,
	ebiten.KeyArrowLeft:  input.ButtonLeft,
	ebiten.KeyArrowRight: input.ButtonRight,
	ebiten.KeyZ:          input.ButtonA,
	ebiten.KeyX:          input.ButtonB,
	ebiten.KeyEnter:      input.ButtonStart,
	ebiten.KeyShiftLeft:  input.ButtonSelect,
}

func (g *game) Update() error {
	var bitmask uint8
	for key, button := range keyButtons {
		if ebiten.IsKeyPressed(key) {
			bitmask |= uint8(button)
		}
	}
	g.emu.SetController(0, bitmask)

	if !g.emu.Execute() {
		return nil
	}

	g.emu.DrainSound(g.soundBuf[:])
	g.sound.push(g.soundBuf[:])
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	for i, p := range g.pixels {
		g.rgba.Pix[i*4+0] = uint8(p >> 16)
		g.rgba.Pix[i*4+1] = uint8(p >> 8)
		g.rgba.Pix[i*4+2] = uint8(p)
		g.rgba.Pix[i*4+3] = 0xFF
	}
	g.img.WritePixels(g.rgba.Pix)

	op := &ebiten.DrawImageOptions{}
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	scaleX := float64(sw) / float64(g.width)
	scaleY := float64(sh) / float64(g.height)
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}
	op.GeoM.Scale(scale, scale)
	offsetX := (float64(sw) - float64(g.width)*scale) / 2
	offsetY := (float64(sh) - float64(g.height)*scale) / 2
	op.GeoM.Translate(offsetX, offsetY)

	screen.Fill(color.Black)
	screen.DrawImage(g.img, op)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// soundStream adapts the per-frame mono PCM16 buffer push(es) from Update
// to the io.Reader the Ebitengine audio player pulls from on its own
// goroutine, duplicating each mono sample into both stereo channels since
// duoemu's sound buffer is mono per spec. Silence is emitted if Update
// hasn't produced a frame's worth of audio yet.
type soundStream struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *soundStream) push(samples []int16) {
	var frame bytes.Buffer
	for _, sample := range samples {
		binary.Write(&frame, binary.LittleEndian, sample)
		binary.Write(&frame, binary.LittleEndian, sample)
	}
	s.mu.Lock()
	s.buf.Write(frame.Bytes())
	s.mu.Unlock()
}

func (s *soundStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() < len(p) {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil // emit silence until Update catches up
	}
	return s.buf.Read(p)
}
