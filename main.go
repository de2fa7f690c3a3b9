package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli"
	"github.com/wrenfield/dmgcore/dmg"
	"github.com/wrenfield/dmgcore/dmg/display"
	"github.com/wrenfield/dmgcore/dmg/memory"
	"github.com/wrenfield/dmgcore/dmg/timing"
)

const (
	// Game Boy screen dimensions
	width  = 160
	height = 144

	// Since terminal characters are taller than wide, we'll scale the width more
	// to maintain approximate aspect ratio
	scaleX = 2 // Each pixel becomes 2 characters wide
	scaleY = 1 // Each pixel becomes 1 character tall
)

// Characters to represent different shades of gray
// From darkest to lightest.
var shadeChars = []rune{'█', '▓', '▒', '░'}

// palette maps a shade index (0 lightest - 3 darkest) to a terminal color.
type palette func(shade uint32) tcell.Color

func defaultPalette(shade uint32) tcell.Color { return tcell.ColorWhite }

func grayscalePalette(shade uint32) tcell.Color {
	levels := []tcell.Color{tcell.ColorBlack, tcell.ColorGray, tcell.ColorSilver, tcell.ColorWhite}
	return levels[3-shade]
}

func greenPalette(shade uint32) tcell.Color {
	levels := []tcell.Color{
		tcell.NewRGBColor(15, 56, 15),
		tcell.NewRGBColor(48, 98, 48),
		tcell.NewRGBColor(139, 172, 15),
		tcell.NewRGBColor(155, 188, 15),
	}
	return levels[3-shade]
}

func paletteFromName(name string) palette {
	switch strings.ToLower(name) {
	case "g", "green":
		return greenPalette
	case "bw", "grayscale":
		return grayscalePalette
	default:
		return defaultPalette
	}
}

var keymap = map[tcell.Key]memory.JoypadKey{
	tcell.KeyUp:    memory.JoypadUp,
	tcell.KeyDown:  memory.JoypadDown,
	tcell.KeyLeft:  memory.JoypadLeft,
	tcell.KeyRight: memory.JoypadRight,
}

var runeMap = map[rune]memory.JoypadKey{
	'z': memory.JoypadA,
	'x': memory.JoypadB,
}

// TerminalRenderer drives the emulator and draws its framebuffer to a
// terminal using block characters shaded by pixel luminance.
type TerminalRenderer struct {
	screen   tcell.Screen
	emulator *dmg.Emulator
	running  bool
	pal      palette
	muted    bool
}

func NewTerminalRenderer(emu *dmg.Emulator, pal palette, muted bool) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}

	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}

	return &TerminalRenderer{
		screen:   screen,
		emulator: emu,
		running:  true,
		pal:      pal,
		muted:    muted,
	}, nil
}

func (t *TerminalRenderer) Run() error {
	defer func() {
		slog.Info("Finishing terminal")
		t.screen.Fini()
	}()

	if t.muted {
		mmu := t.emulator.GetMMU()
		for i := 0; i < 4; i++ {
			mmu.APU.ToggleChannel(i)
		}
	}

	// Set up screen
	t.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	t.screen.Clear()

	// Handle input in a separate goroutine
	go t.handleInput()

	// Main render loop, paced by the same frame-rate limiter the teacher
	// uses for its headless/SDL2 backends.
	limiter := timing.NewTickerLimiter()
	defer limiter.Stop()

	// catch SIGINT and SIGTERM
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	frameDone := make(chan struct{})
	go func() {
		for t.running {
			limiter.WaitForNextFrame()
			frameDone <- struct{}{}
		}
	}()

	for t.running {
		select {
		case <-frameDone:
			t.emulator.RunUntilFrame()
			t.render()
			t.screen.Show()
		case <-signals:
			t.running = false
			slog.Info("Received signal to stop")
			return nil
		}
	}

	return nil
}

func (t *TerminalRenderer) handleInput() {
	for t.running {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape:
				t.running = false
				return
			case tcell.KeyEnter:
				t.emulator.HandleKeyPress(memory.JoypadStart)
			case tcell.KeyRune:
				if ev.Rune() == ' ' {
					t.emulator.HandleKeyPress(memory.JoypadSelect)
					break
				}
				if key, ok := runeMap[ev.Rune()]; ok {
					t.emulator.HandleKeyPress(key)
				}
			default:
				if key, ok := keymap[ev.Key()]; ok {
					t.emulator.HandleKeyPress(key)
				}
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

func (t *TerminalRenderer) render() {
	fb := t.emulator.GetCurrentFrame()
	frame := fb.ToSlice()

	// Clear screen with background color
	t.screen.Clear()

	// Render each pixel
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Get pixel value (a packed RGBA8 color where higher values = lighter)
			pixel := frame[y*width+x]
			// Convert the red channel to a shade index (4 shades), inverted
			// so higher luminance maps to a lower (darker-glyph) index.
			red := (pixel >> display.RGBARShift) & display.RGBAColorMask
			shade := 3 - red/64
			if shade > 3 {
				shade = 3
			}

			// Draw scaled pixel
			style := tcell.StyleDefault.Foreground(t.pal(shade))
			char := shadeChars[shade]

			// Draw the character repeated scaleX times
			screenX := x * scaleX
			screenY := y * scaleY
			for sx := 0; sx < scaleX; sx++ {
				t.screen.SetContent(screenX+sx, screenY, char, nil, style)
			}
		}
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Description = "A Game Boy (DMG) emulator core with a terminal frontend"
	app.Usage = "dmgcore [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "d",
			Usage: "enable debug logging",
		},
		cli.BoolFlag{
			Name:  "m",
			Usage: "mute audio output",
		},
		cli.StringFlag{
			Name:  "p",
			Value: "default",
			Usage: "color palette: g (green), bw (grayscale), default",
		},
		cli.StringFlag{
			Name:  "s",
			Usage: "path to the save file (defaults next to the ROM, same name with .sav)",
		},
	}
	app.Action = runEmulator

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	if c.Bool("d") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	romPath := c.Args().First()
	if romPath == "" {
		cli.ShowAppHelp(c)
		return errors.New("no ROM path provided")
	}

	emu, err := dmg.NewWithFile(romPath)
	if err != nil {
		return err
	}

	savePath := c.String("s")
	if savePath == "" {
		savePath = defaultSavePath(romPath)
	}

	if emu.HasBattery() {
		if data, err := os.ReadFile(savePath); err == nil {
			emu.LoadRAM(data)
			slog.Info("Loaded save file", "path", savePath)
		}
	}

	renderer, err := NewTerminalRenderer(emu, paletteFromName(c.String("p")), c.Bool("m"))
	if err != nil {
		return err
	}

	runErr := renderer.Run()

	if emu.HasBattery() {
		if data := emu.SaveRAM(); len(data) > 0 {
			if err := os.WriteFile(savePath, data, 0o644); err != nil {
				slog.Error("Failed to write save file", "path", savePath, "error", err)
			} else {
				slog.Info("Wrote save file", "path", savePath)
			}
		}
	}

	return runErr
}

func defaultSavePath(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}
