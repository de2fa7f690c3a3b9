package video

// GBColor is one of the DMG's 4 fixed shades, packed as RGBA8888 so it
// can be handed straight to a host pixel buffer.
type GBColor uint32

const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

const (
	WhiteColor     GBColor = 0xFFFFFFFF
	LightGreyColor         = 0x989898FF
	DarkGreyColor          = 0x4C4C4CFF
	BlackColor             = 0x000000FF
)

// ByteToColor maps a 2-bit DMG shade index (0-3, 0=lightest) to its
// display color.
func ByteToColor(value byte) GBColor {
	switch value {
	case 0:
		return WhiteColor
	case 1:
		return LightGreyColor
	case 2:
		return DarkGreyColor
	case 3:
		return BlackColor
	default:
		return 0
	}
}

// FrameBuffer is the 160x144 RGBA pixel grid the PPU renders a frame
// into, in row-major order.
type FrameBuffer struct {
	width  uint
	height uint
	buffer []uint32
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		width:  FramebufferWidth,
		height: FramebufferHeight,
		buffer: make([]uint32, FramebufferSize),
	}
}

func (fb FrameBuffer) GetPixel(x, y uint) uint32 {
	return fb.buffer[y*fb.width+x]
}

func (fb *FrameBuffer) SetPixel(x, y uint, color GBColor) {
	fb.buffer[y*fb.width+x] = uint32(color)
}

// ToSlice exposes the backing pixel buffer, for a host renderer to
// blit directly without a copy.
func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}

// Clear resets the framebuffer to black.
func (fb *FrameBuffer) Clear() {
	for i := range fb.buffer {
		fb.buffer[i] = 0
	}
}
