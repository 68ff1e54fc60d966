// Command gones runs the NES emulator with an Ebitengine front end:
// a 256x240 video window, a streamed audio player fed by the APU's
// mixer, and keyboard input mapped onto the two controller ports.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image/color"
	"os"

	"github.com/golang/glog"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"nescore/internal/bus"
	"nescore/internal/cartridge"
	"nescore/internal/input"
	"nescore/internal/ppu"
)

const (
	nesWidth  = 256
	nesHeight = 240
	scale     = 3
)

func main() {
	romPath := flag.String("rom", "", "path to an iNES ROM file")
	flag.Parse()
	defer glog.Flush()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gones -rom path/to/game.nes")
		os.Exit(1)
	}

	cart, err := cartridge.Load(*romPath)
	if err != nil {
		glog.Fatalf("loading %s: %v", *romPath, err)
	}

	b := bus.New(cart)
	b.Reset()

	game := &Game{bus: b}

	audioContext := audio.NewContext(bus.SampleRate)
	player, err := audioContext.NewPlayer(newAudioStream(b.AudioOutput()))
	if err != nil {
		glog.Fatalf("creating audio player: %v", err)
	}
	player.Play()

	ebiten.SetWindowTitle("gones")
	ebiten.SetWindowSize(nesWidth*scale, nesHeight*scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil {
		glog.Fatalf("ebiten.RunGame: %v", err)
	}
}

// Game implements ebiten.Game, driving one emulated frame per Update
// call and blitting the PPU's framebuffer in Draw.
type Game struct {
	bus   *bus.Bus
	frame *ebiten.Image
	pix   []byte // RGBA scratch buffer reused across frames
}

func (g *Game) Update() error {
	g.pollInput(g.bus.Ctrl1)
	g.bus.RunFrame()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.frame == nil {
		g.frame = ebiten.NewImage(nesWidth, nesHeight)
		g.pix = make([]byte, nesWidth*nesHeight*4)
	}

	fb := g.bus.FrameBuffer()
	for i, index := range fb {
		c := ppu.MasterPalette[index&0x3F]
		o := i * 4
		g.pix[o] = c.R
		g.pix[o+1] = c.G
		g.pix[o+2] = c.B
		g.pix[o+3] = 0xFF
	}
	g.frame.WritePixels(g.pix)

	screen.Fill(color.Black)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	screen.DrawImage(g.frame, op)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return nesWidth * scale, nesHeight * scale
}

var keyButtons = map[ebiten.Key]input.Button{
	ebiten.KeyZ:          input.ButtonA,
	ebiten.KeyX:          input.ButtonB,
	ebiten.KeyBackquote:  input.ButtonSelect,
	ebiten.KeyEnter:      input.ButtonStart,
	ebiten.KeyArrowUp:    input.ButtonUp,
	ebiten.KeyArrowDown:  input.ButtonDown,
	ebiten.KeyArrowLeft:  input.ButtonLeft,
	ebiten.KeyArrowRight: input.ButtonRight,
}

func (g *Game) pollInput(c *input.Controller) {
	var pressed [8]bool
	order := []input.Button{
		input.ButtonA, input.ButtonB, input.ButtonSelect, input.ButtonStart,
		input.ButtonUp, input.ButtonDown, input.ButtonLeft, input.ButtonRight,
	}
	held := make(map[input.Button]bool, len(keyButtons))
	for key, button := range keyButtons {
		if ebiten.IsKeyPressed(key) || inpututil.IsKeyJustPressed(key) {
			held[button] = true
		}
	}
	for i, button := range order {
		pressed[i] = held[button]
	}
	c.SetButtons(pressed)
}

// audioStream adapts the APU's float32 sample channel into the 16-bit
// signed stereo PCM byte stream Ebitengine's audio player reads. Samples
// are duplicated to both channels since the APU mixer is mono.
type audioStream struct {
	samples <-chan float32
}

func newAudioStream(samples <-chan float32) *audioStream {
	return &audioStream{samples: samples}
}

func (s *audioStream) Read(p []byte) (int, error) {
	n := 0
	for n+4 <= len(p) {
		var sample float32
		select {
		case sample = <-s.samples:
		default:
			sample = 0
		}
		v := int16(sample * 32767)
		binary.LittleEndian.PutUint16(p[n:], uint16(v))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(v))
		n += 4
	}
	return n, nil
}
