package audio

import (
	"github.com/wrenfield/dmgcore/dmg/timing"
)

// APU is the DMG's Audio Processing Unit: 4 independent sound generators
// (CH1 square+sweep, CH2 square, CH3 wave, CH4 noise) mixed down to a
// stereo PCM stream. Each generator is little more than a handful of
// counters ticking at register-derived rates; the interesting behavior
// lives in how triggers, length counters, envelopes and the frequency
// sweep interact, most of which is governed by the 512Hz frame
// sequencer (see sequencer.go).
type APU struct {
	enabled bool
	ch      [4]Channel

	vinLeft, vinRight bool  // NR50 VIN panning
	volLeft, volRight uint8 // NR50 master volume, 0-7 per side
	vinSample         int16 // external VIN input, unused on DMG but wired per Pan Docs

	// Raw channel levels are accumulated at CPU rate, then downsampled
	// to the host's sample rate for GetSamples.
	mixLeftAcc         int64
	mixRightAcc        int64
	mixAccumCycles     int
	pcmBuffer          []int16
	pcmCursor          int
	pcmCycleAcc        float64
	pcmCyclesPerSample float64
	hostSampleRate     int

	step   int // frame sequencer step, 0-7
	cycles int // cycles accumulated since the last sequencer step

	NR10, NR11, NR12, NR13, NR14 uint8
	NR21, NR22, NR23, NR24       uint8
	NR30, NR31, NR32, NR33, NR34 uint8
	NR41, NR42, NR43, NR44       uint8
	NR50, NR51, NR52             uint8
	waveRAM                      [waveRAMSize]uint8
}

func New() *APU {
	// Post-boot register state: APU powered, full master volume, and the
	// boot ROM's NR51 channel routing.
	apu := &APU{hostSampleRate: 44100, NR50: 0x77, NR51: 0xF3, NR52: 0x80}
	apu.pcmCyclesPerSample = float64(timing.CPUFrequency) / float64(apu.hostSampleRate)
	apu.syncChannelsFromRegisters()
	return apu
}

// Tick advances every enabled generator by the given number of CPU
// T-cycles, then feeds the 512Hz frame sequencer from the same budget.
func (a *APU) Tick(cycles int) {
	if !a.enabled {
		return
	}

	a.advanceChannels(cycles)

	a.cycles += cycles
	for a.cycles >= cyclesPerStep {
		a.cycles -= cyclesPerStep
		a.advanceSequencer()
	}
}

// advanceChannels steps each channel's waveform generator, mixes the
// resulting levels into the left/right accumulators per NR51 panning,
// and drains the accumulator into PCM output at the host sample rate.
func (a *APU) advanceChannels(cycles int) {
	if cycles <= 0 {
		return
	}

	var leftLevel, rightLevel int64
	for i := range a.ch {
		ch := &a.ch[i]
		if !ch.enabled || !ch.dacEnabled || ch.muted {
			continue
		}

		var level int64
		switch i {
		case 0, 1:
			level = a.stepSquare(ch, cycles)
		case 2:
			level = a.stepWave(ch, cycles)
		case 3:
			level = a.stepNoise(ch, cycles)
		}
		if level == 0 {
			continue
		}

		if ch.left {
			leftLevel += level
		}
		if ch.right {
			rightLevel += level
		}
	}

	if a.vinLeft {
		leftLevel += int64(a.vinSample)
	}
	if a.vinRight {
		rightLevel += int64(a.vinSample)
	}

	a.mixLeftAcc += leftLevel * int64(cycles)
	a.mixRightAcc += rightLevel * int64(cycles)
	a.mixAccumCycles += cycles
	a.drainMixBuffer(cycles)
}

// drainMixBuffer pushes one averaged PCM sample into pcmBuffer each time
// enough CPU cycles have accumulated to cover a host sample period.
func (a *APU) drainMixBuffer(cycles int) {
	if a.hostSampleRate <= 0 || a.pcmCyclesPerSample == 0 {
		return
	}

	a.pcmCycleAcc += float64(cycles)
	if a.pcmCycleAcc < a.pcmCyclesPerSample {
		return
	}
	a.pcmCycleAcc -= a.pcmCyclesPerSample

	left, right := a.popMixedSample()
	a.pcmBuffer = append(a.pcmBuffer, left, right)
}

// popMixedSample averages the accumulated left/right levels since the
// last call, applies master volume, and resets the accumulators.
func (a *APU) popMixedSample() (int16, int16) {
	if a.mixAccumCycles == 0 {
		return 0, 0
	}

	leftAvg := float64(a.mixLeftAcc) / float64(a.mixAccumCycles)
	rightAvg := float64(a.mixRightAcc) / float64(a.mixAccumCycles)
	left, right := pcmScale(leftAvg, a.volLeft), pcmScale(rightAvg, a.volRight)

	a.mixLeftAcc = 0
	a.mixRightAcc = 0
	a.mixAccumCycles = 0

	return left, right
}

const sampleScale = 32767.0 / 15.0

// pcmScale converts a raw averaged channel level (roughly -15..15) into
// a 16-bit PCM sample, gained by the 3-bit NR50 master volume (0-7).
func pcmScale(avg float64, masterVol uint8) int16 {
	gain := float64(masterVol+1) / 8.0
	value := avg * gain * sampleScale
	if value > 32767 {
		value = 32767
	} else if value < -32768 {
		value = -32768
	}
	return int16(value)
}

// GetSamples returns up to count interleaved stereo sample pairs,
// zero-padding if the mixer hasn't produced enough yet.
func (a *APU) GetSamples(count int) []int16 {
	if count <= 0 {
		return nil
	}

	needed := count * 2
	available := len(a.pcmBuffer) - a.pcmCursor
	if available <= 0 {
		return make([]int16, needed)
	}

	out := make([]int16, needed)
	toCopy := min(available, needed)
	copy(out, a.pcmBuffer[a.pcmCursor:a.pcmCursor+toCopy])
	a.pcmCursor += toCopy

	if a.pcmCursor >= len(a.pcmBuffer) {
		a.pcmBuffer = a.pcmBuffer[:0]
		a.pcmCursor = 0
	}

	return out
}

// ToggleChannel flips a channel's debug mute flag, independent of its
// enabled/DAC state.
func (a *APU) ToggleChannel(idx int) {
	if idx < 0 || idx >= 4 {
		return
	}
	a.ch[idx].muted = !a.ch[idx].muted
}

// SoloChannel mutes every channel except idx; calling it again with the
// same index un-mutes all of them.
func (a *APU) SoloChannel(channel int) {
	if channel < 0 || channel >= 4 {
		return
	}

	soloed := !a.ch[channel].muted
	for i := range a.ch {
		if i != channel && !a.ch[i].muted {
			soloed = false
		}
	}

	for i := range a.ch {
		a.ch[i].muted = !soloed && i != channel
	}
}

// GetChannelStatus reports whether each channel is currently producing
// sound (enabled), regardless of debug mute/solo state.
func (a *APU) GetChannelStatus() (bool, bool, bool, bool) {
	return a.ch[0].enabled, a.ch[1].enabled, a.ch[2].enabled, a.ch[3].enabled
}

// GetChannelVolumes returns each channel's current envelope volume.
func (a *APU) GetChannelVolumes() (ch1, ch2, ch3, ch4 uint8) {
	return a.ch[0].volume, a.ch[1].volume, a.ch[2].volume, a.ch[3].volume
}

// waveRAMBusy reports whether CH3 is actively playing with its DAC on,
// in which case the CPU sees the live sample buffer instead of RAM.
func (a *APU) waveRAMBusy() bool {
	return a.enabled && a.ch[2].enabled && a.ch[2].dacEnabled
}
