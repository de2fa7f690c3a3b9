package audio

import (
	"github.com/wrenfield/dmgcore/dmg/addr"
	"github.com/wrenfield/dmgcore/dmg/bit"
)

// ReadRegister returns a sound register's value with its write-only and
// unused bits forced to 1, matching real hardware's read-back behavior.
func (a *APU) ReadRegister(address uint16) uint8 {
	switch address {
	case addr.NR10:
		return a.NR10 | 0b1000_0000
	case addr.NR11:
		return a.NR11 | 0b0011_1111
	case addr.NR12:
		return a.NR12
	case addr.NR13:
		return 0xFF
	case addr.NR14:
		return a.NR14 | 0b1011_1111
	case addr.NR21:
		return a.NR21 | 0b0011_1111
	case addr.NR22:
		return a.NR22
	case addr.NR23:
		return 0xFF
	case addr.NR24:
		return a.NR24 | 0b1011_1111
	case addr.NR30:
		return a.NR30 | 0b0111_1111
	case addr.NR31:
		return 0xFF
	case addr.NR32:
		return a.NR32 | 0b1001_1111
	case addr.NR33:
		return 0xFF
	case addr.NR34:
		return a.NR34 | 0b1011_1111
	case addr.NR41:
		return 0xFF
	case addr.NR42:
		return a.NR42
	case addr.NR43:
		return a.NR43
	case addr.NR44:
		return a.NR44 | 0b1011_1111
	case addr.NR50:
		return a.NR50
	case addr.NR51:
		return a.NR51
	case addr.NR52:
		status := uint8(0b0111_0000) // bits 6-4 always read 1
		if a.enabled {
			status = bit.Set(7, status)
		}
		for i := range a.ch {
			if a.ch[i].enabled {
				status = bit.Set(uint8(i), status)
			}
		}
		return status
	}

	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		if a.waveRAMBusy() {
			// While CH3 plays, the CPU sees the live sample buffer
			// instead of the underlying RAM byte.
			return a.ch[2].waveSample
		}
		return a.waveRAM[address-addr.WaveRAMStart]
	}
	return 0xFF
}

// WriteRegister stores a sound register/wave-RAM write and resynchronizes
// channel state from the new register values.
func (a *APU) WriteRegister(address uint16, value uint8) {
	isWaveRAM := address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd

	if !a.enabled && address != addr.NR52 && !isWaveRAM {
		// Powered off: only NR52 and wave RAM remain writable.
		return
	}

	switch address {
	case addr.NR10:
		a.NR10 = value
	case addr.NR11:
		a.NR11 = value
		a.ch[0].length = 64 - uint16(bit.ExtractBits(value, 5, 0))
	case addr.NR12:
		a.NR12 = value
		a.reloadEnvelopeCounter(&a.ch[0], value)
	case addr.NR13:
		a.NR13 = value
	case addr.NR14:
		a.NR14 = value
	case addr.NR21:
		a.NR21 = value
		a.ch[1].length = 64 - uint16(bit.ExtractBits(value, 5, 0))
	case addr.NR22:
		a.NR22 = value
		a.reloadEnvelopeCounter(&a.ch[1], value)
	case addr.NR23:
		a.NR23 = value
	case addr.NR24:
		a.NR24 = value
	case addr.NR30:
		a.NR30 = value
	case addr.NR31:
		a.NR31 = value
		a.ch[2].length = 256 - uint16(value)
	case addr.NR32:
		a.NR32 = value
	case addr.NR33:
		a.NR33 = value
	case addr.NR34:
		a.NR34 = value
	case addr.NR41:
		a.NR41 = value
		a.ch[3].length = 64 - uint16(bit.ExtractBits(value, 5, 0))
	case addr.NR42:
		a.NR42 = value
		a.reloadEnvelopeCounter(&a.ch[3], value)
	case addr.NR43:
		a.NR43 = value
	case addr.NR44:
		a.NR44 = value
	case addr.NR50:
		a.NR50 = value
	case addr.NR51:
		a.NR51 = value
	case addr.NR52:
		a.NR52 = value
	}

	if isWaveRAM {
		offset := address - addr.WaveRAMStart
		if a.waveRAMBusy() {
			// A write during playback updates the sample currently
			// being played, not the underlying RAM byte.
			idx := a.ch[2].waveIndex >> 1
			a.waveRAM[idx] = value
			a.ch[2].waveSample = value
		} else {
			a.waveRAM[offset] = value
		}
	}

	a.syncChannelsFromRegisters()
}

// reloadEnvelopeCounter re-arms an envelope's internal counter whenever
// its NRx2 volume/envelope register is written.
func (a *APU) reloadEnvelopeCounter(ch *Channel, nrx2 uint8) {
	pace := bit.ExtractBits(nrx2, 2, 0)
	if pace == 0 {
		pace = 8
	}
	ch.envelopeCounter = pace
	ch.envelopeLatched = false
}

// applyLengthQuirk reproduces the DMG's "extra length clock" oddities
// around enabling length and triggering a channel mid-sequencer-period:
//   - enabling length in the second half of a sequencer period clocks
//     it once immediately
//   - a trigger reloads length from zero before that clock runs
//   - a trigger that lands exactly on a zero-length reload still takes
//     the forced extra clock afterwards
//
// Reference: https://gbdev.io/pandocs/Audio_details.html#obscure-behavior.
func (a *APU) applyLengthQuirk(prevEnabled bool, lengthBefore uint16, triggered bool, maxLength uint16, chIdx int) {
	ch := &a.ch[chIdx]
	lengthWasZero := lengthBefore == 0
	clockOnEnable := !prevEnabled && ch.lengthEnable && a.step%2 == 1 && lengthBefore > 0

	if triggered && (lengthWasZero || (clockOnEnable && lengthBefore == 1)) {
		ch.length = maxLength
	}

	if !ch.lengthEnable {
		return
	}

	forceClock := lengthWasZero && triggered && ch.length > 0
	if !forceClock && prevEnabled {
		return
	}

	if a.step%2 == 1 && ch.length > 0 {
		ch.length--
		if ch.length == 0 {
			ch.enabled = false
		}
	}
}

// syncChannelsFromRegisters re-derives every channel's decoded state
// from the raw NRxx register bytes, handling the trigger (write-1 to
// NRx4 bit 7) side effects for each channel.
func (a *APU) syncChannelsFromRegisters() {
	a.enabled = bit.IsSet(7, a.NR52)
	if !a.enabled {
		a.NR10, a.NR11, a.NR12, a.NR13, a.NR14 = 0, 0, 0, 0, 0
		a.NR21, a.NR22, a.NR23, a.NR24 = 0, 0, 0, 0
		a.NR30, a.NR31, a.NR32, a.NR33, a.NR34 = 0, 0, 0, 0, 0
		a.NR41, a.NR42, a.NR43, a.NR44 = 0, 0, 0, 0
		a.NR50, a.NR51 = 0, 0
		for i := range a.ch {
			a.ch[i].enabled = false
		}
	}

	for i := range a.ch {
		a.ch[i].right = bit.IsSet(uint8(i), a.NR51)
		a.ch[i].left = bit.IsSet(uint8(i+4), a.NR51)
	}

	a.vinLeft, a.vinRight = bit.IsSet(7, a.NR50), bit.IsSet(3, a.NR50)
	a.volLeft, a.volRight = bit.ExtractBits(a.NR50, 6, 4), bit.ExtractBits(a.NR50, 2, 0)

	a.syncSquareChannel(0, a.NR10, a.NR11, a.NR12, a.NR13, &a.NR14)
	a.syncSquareChannel(1, 0, a.NR21, a.NR22, a.NR23, &a.NR24)
	a.syncWaveChannel()
	a.syncNoiseChannel()

	for i := range a.ch {
		if !a.ch[i].dacEnabled {
			a.ch[i].enabled = false
		}
	}
}

// syncSquareChannel decodes CH1 or CH2 from its NRx0-NRx4 registers and
// applies trigger effects. Only idx 0 (CH1) decodes nr10 as a sweep
// register; CH2 has no sweep unit and passes 0, which is not read.
func (a *APU) syncSquareChannel(idx int, nr10, nrx1, nrx2, nrx3 uint8, nrx4 *uint8) {
	ch := &a.ch[idx]

	if idx == 0 {
		prevSweepDown := ch.sweepDown
		ch.sweepPeriod = bit.ExtractBits(nr10, 6, 4)
		ch.sweepDown = bit.IsSet(3, nr10)
		ch.sweepStep = bit.ExtractBits(nr10, 2, 0)
		if !ch.sweepDown && prevSweepDown && ch.sweepNegUsed && (ch.sweepPeriod > 0 || ch.sweepStep > 0) {
			// Switching sweep direction from subtract to add after a
			// subtract calculation already ran disables CH1 outright.
			ch.enabled = false
		}
	}

	ch.duty = bit.ExtractBits(nrx1, 7, 6)
	ch.timer = bit.ExtractBits(nrx1, 5, 0)

	ch.volume = bit.ExtractBits(nrx2, 7, 4)
	ch.envelopeUp = bit.IsSet(3, nrx2)
	ch.envelopePace = bit.ExtractBits(nrx2, 2, 0)
	ch.dacEnabled = ch.volume > 0 || ch.envelopeUp

	ch.period = bit.Combine(*nrx4&0b111, nrx3)

	prevLenEnable := ch.lengthEnable
	lengthBefore := ch.length
	triggered := bit.IsSet(7, *nrx4)
	ch.lengthEnable = bit.IsSet(6, *nrx4)
	ch.trigger = triggered

	if triggered {
		if ch.dacEnabled {
			ch.enabled = true
		}
		ch.envelopeLatched = false
		if ch.envelopePace == 0 {
			ch.envelopeCounter = 8
		} else {
			ch.envelopeCounter = ch.envelopePace
		}
		ch.dutyStep = 0
		ch.freqTimer = ch.squarePeriodCycles()

		if idx == 0 {
			ch.sweepEnabled = ch.sweepPeriod > 0 || ch.sweepStep > 0
			ch.sweepTimer = ch.sweepPeriod
			if ch.sweepTimer == 0 {
				ch.sweepTimer = 8
			}
			ch.shadowFreq = ch.period
			ch.sweepNegUsed = false

			if ch.sweepStep != 0 {
				if ch.sweepDown {
					ch.sweepNegUsed = true
				}
				if _, overflow := ch.calculateSweepFrequency(); overflow {
					ch.enabled = false
				}
			}
		}

		*nrx4 = bit.Reset(7, *nrx4)
		ch.trigger = false
	}

	a.applyLengthQuirk(prevLenEnable, lengthBefore, triggered, 64, idx)
}

func (a *APU) syncWaveChannel() {
	ch := &a.ch[2]

	ch.dacEnabled = bit.IsSet(7, a.NR30)
	ch.timer = a.NR31
	ch.volume = bit.ExtractBits(a.NR32, 6, 5)
	ch.period = bit.Combine(a.NR34&0b111, a.NR33)

	prevLenEnable := ch.lengthEnable
	lengthBefore := ch.length
	triggered := bit.IsSet(7, a.NR34)
	ch.lengthEnable = bit.IsSet(6, a.NR34)
	ch.trigger = triggered

	if triggered {
		if ch.dacEnabled {
			ch.enabled = true
		}
		ch.freqTimer = ch.wavePeriodCycles()
		ch.waveIndex = 0
		ch.waveSample = a.waveRAM[0]
		a.NR34 = bit.Reset(7, a.NR34)
		ch.trigger = false
	}

	a.applyLengthQuirk(prevLenEnable, lengthBefore, triggered, 256, 2)
}

func (a *APU) syncNoiseChannel() {
	ch := &a.ch[3]

	ch.timer = bit.ExtractBits(a.NR41, 5, 0)
	ch.volume = bit.ExtractBits(a.NR42, 7, 4)
	ch.envelopeUp = bit.IsSet(3, a.NR42)
	ch.envelopePace = bit.ExtractBits(a.NR42, 2, 0)

	// frequency = 524288 / divider / 2^(shift+1)
	ch.shift = bit.ExtractBits(a.NR43, 7, 4)
	ch.use7bitLFSR = bit.IsSet(3, a.NR43)
	ch.divider = bit.ExtractBits(a.NR43, 2, 0)
	ch.dacEnabled = ch.volume > 0 || ch.envelopeUp

	prevLenEnable := ch.lengthEnable
	lengthBefore := ch.length
	triggered := bit.IsSet(7, a.NR44)
	ch.lengthEnable = bit.IsSet(6, a.NR44)
	ch.trigger = triggered

	if triggered {
		if ch.dacEnabled {
			ch.enabled = true
		}
		ch.envelopeLatched = false
		if ch.envelopePace == 0 {
			ch.envelopeCounter = 8
		} else {
			ch.envelopeCounter = ch.envelopePace
		}
		ch.lfsr = 0x7FFF
		ch.noiseTimer = ch.noisePeriodCycles()
		a.NR44 = bit.Reset(7, a.NR44)
		ch.trigger = false
	}

	a.applyLengthQuirk(prevLenEnable, lengthBefore, triggered, 64, 3)
}
