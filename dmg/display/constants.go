package display

// RGBA pixel format constants
const (
	// RGBABytesPerPixel is the number of bytes per pixel in RGBA format
	RGBABytesPerPixel = 4
	// RGBARShift is the bit shift for the red component in RGBA format
	RGBARShift = 24
	// RGBAGShift is the bit shift for the green component in RGBA format
	RGBAGShift = 16
	// RGBABShift is the bit shift for the blue component in RGBA format
	RGBABShift = 8
	// RGBAColorMask is the mask for extracting color components
	RGBAColorMask = 0xFF
)

// Color mapping constants
const (
	// GrayscaleWhite is the RGB value for white in grayscale
	GrayscaleWhite = 255
	// GrayscaleLightGray is the RGB value for light gray in grayscale
	GrayscaleLightGray = 170
	// GrayscaleDarkGray is the RGB value for dark gray in grayscale
	GrayscaleDarkGray = 85
	// GrayscaleBlack is the RGB value for black in grayscale
	GrayscaleBlack = 0
	// FullAlpha is the alpha value for fully opaque pixels
	FullAlpha = 255
)
