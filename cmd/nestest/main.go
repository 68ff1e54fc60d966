// Command nestest is a headless CPU-conformance runner: it loads a ROM
// (nestest.nes, conventionally) with PC forced to $C000 — nestest's
// automated entry point that skips the interactive/visual test menu —
// and emits one line per instruction in the nestest trace-log format, so
// the output can be diffed against a golden log from a reference
// emulator.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"nescore/internal/bus"
	"nescore/internal/cartridge"
)

func main() {
	romPath := flag.String("rom", "", "path to an iNES ROM file (nestest.nes)")
	outPath := flag.String("out", "", "trace output file (default: stdout)")
	instructions := flag.Int("instructions", 8991, "number of instructions to trace (nestest.log has 8991 entries)")
	entryPoint := flag.Uint("entry", 0xC000, "PC to force after reset (nestest's automated-mode entry point)")
	flag.Parse()
	defer glog.Flush()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: nestest -rom path/to/nestest.nes [-out trace.log] [-instructions N]")
		os.Exit(1)
	}

	cart, err := cartridge.Load(*romPath)
	if err != nil {
		glog.Fatalf("loading %s: %v", *romPath, err)
	}

	b := bus.New(cart)
	b.Reset()
	b.CPU.PC = uint16(*entryPoint)

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			glog.Fatalf("creating %s: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	for i := 0; i < *instructions; i++ {
		fmt.Fprintln(w, b.CPU.Trace(b.PPU.Dot(), b.PPU.Scanline()))
		stepOneInstruction(b)
	}
}

// stepOneInstruction runs Bus.Step until the CPU has actually dispatched
// one instruction — Step only consumes one CPU cycle at a time while an
// OAMDMA transfer is draining, so a single call isn't guaranteed to
// correspond to one instruction.
func stepOneInstruction(b *bus.Bus) {
	startCycles := b.CPU.Cycles()
	b.Step()
	for b.CPU.Stalled() || b.CPU.Cycles() == startCycles {
		b.Step()
	}
}
