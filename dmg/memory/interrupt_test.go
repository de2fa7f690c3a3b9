package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wrenfield/dmgcore/dmg/addr"
)

func TestGetInterrupts_MasksToEnabledAndPending(t *testing.T) {
	m := New()

	m.RequestInterrupt(addr.VBlankInterrupt)
	m.RequestInterrupt(addr.TimerInterrupt)
	m.Write(addr.IE, uint8(addr.VBlankInterrupt))

	assert.Equal(t, uint8(addr.VBlankInterrupt), m.GetInterrupts())

	m.Write(addr.IE, uint8(addr.VBlankInterrupt)|uint8(addr.TimerInterrupt))
	assert.Equal(t, uint8(addr.VBlankInterrupt)|uint8(addr.TimerInterrupt), m.GetInterrupts())
}

func TestClearInterruptFlag_RoundTrip(t *testing.T) {
	m := New()
	m.Write(addr.IE, 0x1F)

	m.RequestInterrupt(addr.SerialInterrupt)
	assert.Equal(t, uint8(addr.SerialInterrupt), m.GetInterrupts())

	m.ClearInterruptFlag(addr.SerialInterrupt)
	assert.Equal(t, uint8(0), m.GetInterrupts())
}

func TestClearInterruptFlag_LeavesOthersPending(t *testing.T) {
	m := New()
	m.Write(addr.IE, 0x1F)

	m.RequestInterrupt(addr.VBlankInterrupt)
	m.RequestInterrupt(addr.JoypadInterrupt)

	m.ClearInterruptFlag(addr.VBlankInterrupt)

	assert.Equal(t, uint8(addr.JoypadInterrupt), m.GetInterrupts())
}
