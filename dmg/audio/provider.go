package audio

// Provider is what a host audio backend needs from the APU: pulling
// mixed PCM and toggling per-channel debug mute/solo state.
type Provider interface {
	GetSamples(count int) []int16

	ToggleChannel(channel int)
	SoloChannel(channel int)
	GetChannelStatus() (ch1, ch2, ch3, ch4 bool)
}

var _ Provider = (*APU)(nil)
