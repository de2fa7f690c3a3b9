package memory

import "github.com/wrenfield/dmgcore/dmg/util"

const titleLength = 11

const (
	entryPointAddress       = 0x100
	logoAddress             = 0x104
	titleAddress            = 0x134
	manufacturerCodeAddress = 0x13F
	cgbFlagAddress          = 0x143
	newLicenseCodeAddress   = 0x144
	sgbFlagAddress          = 0x146
	cartridgeTypeAddress    = 0x147
	romSizeAddress          = 0x148
	ramSizeAddress          = 0x149
	destinationCodeAddress  = 0x14A
	oldLicenseCodeAddress   = 0x14B
	versionNumberAddress    = 0x14C
	headerChecksumAddress   = 0x14D
	globalChecksumAddress   = 0x14E
)

// MBCType identifies which memory bank controller a cartridge header
// asks for, decoded from the byte at 0x147.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// ramBankCountTable maps the byte at 0x149 to a number of 8KB RAM banks.
var ramBankCountTable = map[uint8]uint8{
	0x00: 0,
	0x01: 1, // unofficial 2KB, treated as a single partial bank
	0x02: 1,
	0x03: 4,
	0x04: 16,
	0x05: 8,
}

type Cartridge struct {
	data           []byte
	title          string
	headerChecksum uint16
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSize        uint8
	ramSize        uint8

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x10000),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData initializes a new Cartridge from a slice of bytes.
func NewCartridgeWithData(bytes []byte) *Cartridge {
	titleBytes := bytes[titleAddress : titleAddress+titleLength]

	cart := &Cartridge{
		data:           make([]byte, len(bytes)),
		title:          sanitizeTitle(titleBytes),
		headerChecksum: util.CombineBytes(bytes[headerChecksumAddress+1], bytes[headerChecksumAddress]),
		globalChecksum: util.CombineBytes(bytes[globalChecksumAddress+1], bytes[globalChecksumAddress]),
		version:        bytes[versionNumberAddress],
		cartType:       bytes[cartridgeTypeAddress],
		romSize:        bytes[romSizeAddress],
		ramSize:        bytes[ramSizeAddress],
	}

	copy(cart.data, bytes)
	cart.decodeMBC()

	return cart
}

// decodeMBC translates the cartridge-type byte at 0x147 into the MBC
// variant and feature flags (battery, RTC, rumble, RAM bank count) the
// memory unit needs to build the right controller.
func (c *Cartridge) decodeMBC() {
	c.ramBankCount = ramBankCountTable[c.ramSize]

	switch c.cartType {
	case 0x00:
		c.mbcType = NoMBCType
	case 0x01:
		c.mbcType = MBC1Type
	case 0x02:
		c.mbcType = MBC1Type
		c.hasBattery = false
	case 0x03:
		c.mbcType = MBC1Type
		c.hasBattery = true
	case 0x05:
		c.mbcType = MBC2Type
	case 0x06:
		c.mbcType = MBC2Type
		c.hasBattery = true
	case 0x0F:
		c.mbcType = MBC3Type
		c.hasRTC = true
		c.hasBattery = true
	case 0x10:
		c.mbcType = MBC3Type
		c.hasRTC = true
		c.hasBattery = true
		if c.ramBankCount == 0 {
			c.ramBankCount = 4
		}
	case 0x11:
		c.mbcType = MBC3Type
	case 0x12:
		c.mbcType = MBC3Type
	case 0x13:
		c.mbcType = MBC3Type
		c.hasBattery = true
	case 0x19:
		c.mbcType = MBC5Type
	case 0x1A:
		c.mbcType = MBC5Type
	case 0x1B:
		c.mbcType = MBC5Type
		c.hasBattery = true
	case 0x1C:
		c.mbcType = MBC5Type
		c.hasRumble = true
	case 0x1D:
		c.mbcType = MBC5Type
		c.hasRumble = true
	case 0x1E:
		c.mbcType = MBC5Type
		c.hasRumble = true
		c.hasBattery = true
	default:
		c.mbcType = MBCUnknownType
	}

	if c.mbcType == MBC2Type {
		// MBC2 carries its own 512x4bit RAM; the header's RAM size byte
		// does not apply.
		c.ramBankCount = 0
	}
}

// HasBattery reports whether cartridge RAM (or MBC2's built-in RAM)
// should be persisted across sessions. MBC3's RTC registers are not
// part of the saved data.
func (c Cartridge) HasBattery() bool {
	return c.hasBattery
}

// Title returns the game title stored in the cartridge header.
func (c Cartridge) Title() string {
	return c.title
}
