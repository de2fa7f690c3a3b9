// Package video implements the DMG picture processing unit: the scanline
// renderer, its mode timing, and the framebuffer it writes into.
package video

import (
	"github.com/wrenfield/dmgcore/dmg/addr"
	"github.com/wrenfield/dmgcore/dmg/memory"
)

// GpuMode is one of the 4 states of the PPU's per-scanline state machine.
// Values match the 2-bit mode field reported in STAT bits 0-1.
type GpuMode uint8

const (
	modeHBlank GpuMode = iota
	modeVBlank
	modeOAMScan
	modeDraw
)

// T-cycle lengths of each mode. A scanline is oamScanCycles + drawCycles +
// hblankCycles = 456 cycles long; a frame is 154 scanlines (144 visible
// plus 10 V-blank lines), i.e. 70224 cycles.
const (
	oamScanCycles  = 80
	drawCycles     = 172
	hblankCycles   = 204
	scanlineCycles = oamScanCycles + drawCycles + hblankCycles
	visibleLines   = 144
	totalLines     = 154

	tileBytes = 16 // 8 rows * 2 bytes/row

	maxSpritesPerLine = 10 // hardware cap on sprites drawn per scanline
)

// statFlag names the bit positions of the STAT register.
type statFlag uint8

const (
	statModeLow statFlag = iota
	statModeHigh
	statCoincidence
	statHBlankIRQ
	statVBlankIRQ
	statOAMIRQ
	statLYCIRQ
)

// lcdcFlag names the bit positions of the LCDC register.
type lcdcFlag uint8

const (
	lcdcBGEnable lcdcFlag = iota
	lcdcSpriteEnable
	lcdcSpriteSize
	lcdcBGTileMap
	lcdcTileDataSelect
	lcdcWindowEnable
	lcdcWindowTileMap
	lcdcLCDEnable
)

// GPU drives the PPU's mode FSM and renders scanlines into a FrameBuffer.
// Background/window/sprite pixel data is fetched straight out of VRAM and
// OAM on demand; there is no tile cache to invalidate.
type GPU struct {
	mmu *memory.MMU
	fb  *FrameBuffer
	oam *OAM

	// bgIndex holds the raw (pre-palette) color index the background or
	// window layer drew at each framebuffer position on the current
	// frame; sprites consult it to resolve the "behind background" flag.
	bgIndex [FramebufferSize]uint8

	mode       GpuMode
	line       int
	lineClock  int // cycles elapsed within the current scanline, 0..455
	drawn      bool
	windowLine int
	frameDone  bool
}

// NewGpu creates a GPU positioned at the start of the V-blank period,
// matching the LCD state left behind by the DMG boot ROM.
func NewGpu(mmu *memory.MMU) *GPU {
	g := &GPU{
		mmu:  mmu,
		fb:   NewFrameBuffer(),
		oam:  NewOAM(mmu),
		mode: modeVBlank,
		line: visibleLines,
	}
	g.mmu.Write(addr.STAT, uint8(modeVBlank))
	return g
}

// GetFrameBuffer returns the framebuffer the GPU renders into.
func (g *GPU) GetFrameBuffer() *FrameBuffer {
	return g.fb
}

// FrameDone reports whether the most recent Tick call crossed the
// boundary into V-blank, i.e. a complete 70224-cycle frame was just
// rendered. This is the PPU's own signal of frame completion, rather
// than something the caller infers by counting cycles itself.
func (g *GPU) FrameDone() bool {
	return g.frameDone
}

// Tick advances the PPU's mode FSM by the given number of CPU cycles,
// stepping through as many mode transitions as the cycle count demands.
func (g *GPU) Tick(cycles int) {
	g.frameDone = false
	g.lineClock += cycles

	for {
		switch g.mode {
		case modeOAMScan:
			if g.lineClock < oamScanCycles {
				return
			}
			g.lineClock -= oamScanCycles
			g.enterMode(modeDraw)

		case modeDraw:
			if !g.drawn {
				g.renderScanline()
				g.drawn = true
			}
			if g.lineClock < drawCycles {
				return
			}
			g.lineClock -= drawCycles
			g.enterMode(modeHBlank)
			g.raiseStatIfEnabled(statHBlankIRQ)

		case modeHBlank:
			if g.lineClock < hblankCycles {
				return
			}
			g.lineClock -= hblankCycles
			g.advanceLine()

			if g.line == visibleLines {
				g.enterMode(modeVBlank)
				g.windowLine = 0
				g.mmu.RequestInterrupt(addr.VBlankInterrupt)
				g.raiseStatIfEnabled(statVBlankIRQ)
				g.frameDone = true
			} else {
				g.enterMode(modeOAMScan)
				g.raiseStatIfEnabled(statOAMIRQ)
			}

		case modeVBlank:
			if g.lineClock < scanlineCycles {
				return
			}
			g.lineClock -= scanlineCycles
			g.advanceLine()

			if g.line == totalLines {
				g.setLine(0)
				g.enterMode(modeOAMScan)
				g.raiseStatIfEnabled(statOAMIRQ)
			}
		}
	}
}

func (g *GPU) advanceLine() {
	g.setLine(g.line + 1)
	g.drawn = false
}

func (g *GPU) setLine(line int) {
	g.line = line
	g.mmu.Write(addr.LY, uint8(line))

	lyc := g.mmu.Read(addr.LYC)
	coincidence := uint8(line) == lyc
	g.mmu.SetBit(uint8(statCoincidence), addr.STAT, coincidence)
	if coincidence {
		g.raiseStatIfEnabled(statLYCIRQ)
	}
}

func (g *GPU) enterMode(mode GpuMode) {
	g.mode = mode
	stat := g.mmu.Read(addr.STAT)
	stat = stat&^0x03 | uint8(mode)
	g.mmu.Write(addr.STAT, stat)
}

func (g *GPU) raiseStatIfEnabled(irq statFlag) {
	if g.mmu.ReadBit(uint8(irq), addr.STAT) {
		g.mmu.RequestInterrupt(addr.LCDSTATInterrupt)
	}
}

func (g *GPU) lcdcBit(flag lcdcFlag) bool {
	return g.mmu.ReadBit(uint8(flag), addr.LCDC)
}

// renderScanline composites background, window and sprites for g.line
// into the framebuffer, or blanks the line if the LCD is switched off.
func (g *GPU) renderScanline() {
	if !g.lcdcBit(lcdcLCDEnable) {
		g.blankLine()
		return
	}

	g.composeBackground()
	g.composeWindow()
	g.composeSprites()
}

func (g *GPU) blankLine() {
	row := g.line * FramebufferWidth
	for x := 0; x < FramebufferWidth; x++ {
		g.fb.buffer[row+x] = uint32(WhiteColor)
		g.bgIndex[row+x] = 0
	}
}

// tileTexel returns the raw 2-bit color index for the pixel at (px, py)
// within the tile found at (tileCol, tileRow) of the given tile map,
// honoring LCDC's tile-data addressing mode.
func (g *GPU) tileTexel(mapBase uint16, signedAddressing bool, tileCol, tileRow, px, py int) uint8 {
	mapEntry := mapBase + uint16(tileRow*32+tileCol)
	tileNumber := g.mmu.Read(mapEntry)

	var tileBase uint16
	if signedAddressing {
		tileBase = uint16(int(addr.TileData2) + int(int8(tileNumber))*tileBytes)
	} else {
		tileBase = addr.TileData0 + uint16(int(tileNumber)*tileBytes)
	}

	row := FetchTileRow(g.mmu, tileBase+uint16(py*2))
	return uint8(row.GetPixel(px))
}

func (g *GPU) composeBackground() {
	row := g.line * FramebufferWidth

	if !g.lcdcBit(lcdcBGEnable) {
		// LCDC bit 0 clear blanks both background and window to white,
		// and also disables sprite "behind background" priority below.
		for x := 0; x < FramebufferWidth; x++ {
			g.fb.buffer[row+x] = uint32(WhiteColor)
			g.bgIndex[row+x] = 0
		}
		return
	}

	mapBase := addr.TileMap0
	if g.lcdcBit(lcdcBGTileMap) {
		mapBase = addr.TileMap1
	}
	signed := !g.lcdcBit(lcdcTileDataSelect)

	scx := int(g.mmu.Read(addr.SCX))
	scy := int(g.mmu.Read(addr.SCY))
	bgY := (g.line + scy) & 0xFF
	tileRow, py := bgY/8, bgY%8
	palette := g.mmu.Read(addr.BGP)

	for x := 0; x < FramebufferWidth; x++ {
		bgX := (x + scx) & 0xFF
		tileCol, px := bgX/8, bgX%8

		texel := g.tileTexel(mapBase, signed, tileCol, tileRow, px, py)
		g.fb.buffer[row+x] = uint32(paletteColor(palette, texel))
		g.bgIndex[row+x] = texel
	}
}

func (g *GPU) composeWindow() {
	if !g.lcdcBit(lcdcWindowEnable) {
		return
	}

	wy := int(g.mmu.Read(addr.WY))
	wx := int(g.mmu.Read(addr.WX)) - 7
	if g.line < wy || wx >= FramebufferWidth {
		return
	}

	mapBase := addr.TileMap0
	if g.lcdcBit(lcdcWindowTileMap) {
		mapBase = addr.TileMap1
	}
	signed := !g.lcdcBit(lcdcTileDataSelect)

	tileRow, py := g.windowLine/8, g.windowLine%8
	row := g.line * FramebufferWidth
	palette := g.mmu.Read(addr.BGP)

	for x := 0; x < FramebufferWidth; x++ {
		col := x - wx
		if col < 0 {
			continue
		}
		tileCol, px := col/8, col%8

		texel := g.tileTexel(mapBase, signed, tileCol, tileRow, px, py)
		g.fb.buffer[row+x] = uint32(paletteColor(palette, texel))
		g.bgIndex[row+x] = texel
	}
	g.windowLine++
}

func (g *GPU) composeSprites() {
	if !g.lcdcBit(lcdcSpriteEnable) {
		return
	}

	sprites := g.oam.GetSpritesForScanline(g.line)
	rowStart := g.line * FramebufferWidth

	for i := range sprites {
		g.drawSprite(&sprites[i], rowStart)
	}
}

func (g *GPU) drawSprite(s *Sprite, rowStart int) {
	if !s.HasPriorityForAnyPixel() {
		return
	}

	spriteRow := g.line - int(s.Y)
	if s.FlipY {
		spriteRow = s.Height - 1 - spriteRow
	}

	tile := int(s.TileIndex)
	if s.Height == 16 {
		tile &^= 1 // 8x16 sprites address two consecutive tiles as one unit
	}
	tileRow := FetchTileRow(g.mmu, addr.TileData0+uint16(tile*tileBytes+spriteRow*2))

	paletteAddr := addr.OBP0
	if s.PaletteOBP1 {
		paletteAddr = addr.OBP1
	}
	palette := g.mmu.Read(paletteAddr)

	for px := 0; px < 8; px++ {
		if !s.HasPriorityForPixel(px) {
			continue
		}

		var texel int
		if s.FlipX {
			texel = tileRow.GetPixelFlipped(px)
		} else {
			texel = tileRow.GetPixel(px)
		}
		if texel == 0 {
			continue // color 0 is always transparent for sprites
		}

		x := int(s.X) + px
		if x < 0 || x >= FramebufferWidth {
			continue
		}
		if s.BehindBG && g.bgIndex[rowStart+x] != 0 {
			continue // background wins: sprite asked to stay behind it
		}

		g.fb.buffer[rowStart+x] = uint32(paletteColor(palette, uint8(texel)))
	}
}

func paletteColor(palette, texel uint8) GBColor {
	shade := (palette >> (texel * 2)) & 0x03
	return ByteToColor(shade)
}
