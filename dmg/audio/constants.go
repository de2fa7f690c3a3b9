package audio

// cyclesPerStep is the CPU-cycle period of one frame-sequencer step:
// the sequencer runs at 512Hz, and 4194304Hz/512Hz = 8192 T-cycles.
// Reference: https://gbdev.io/pandocs/Audio_details.html
const cyclesPerStep = 8192

// waveRAMSize is CH3's wave pattern RAM, 16 bytes holding 32 4-bit samples.
const waveRAMSize = 16
