// Package main implements the duoemu executable: an Ebitengine-backed
// host window around the internal/emulator factory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"duoemu/internal/emulator"
	"duoemu/internal/version"
)

func main() {
	romFile := flag.String("rom", "", "Path to a .nes or .gb ROM file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		version.PrintBuildInfo()
		os.Exit(0)
	}

	if *romFile == "" {
		fmt.Println("usage: duoemu -rom <file.nes|file.gb>")
		os.Exit(1)
	}

	emu := emulator.New()
	if err := emu.LoadROM(*romFile); err != nil {
		log.Fatalf("failed to load rom: %v", err)
	}
	if err := emu.CreateContext(); err != nil {
		log.Fatalf("failed to start emulation: %v", err)
	}

	w, h := emu.GetDisplaySize()
	game := newGame(emu, w, h)

	ebiten.SetWindowTitle(fmt.Sprintf("duoemu - %s", *romFile))
	ebiten.SetWindowSize(w*3, h*3)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil {
		log.Fatalf("duoemu exited: %v", err)
	}
}
