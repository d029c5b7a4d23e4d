package pipeline

import (
	"fmt"
	"strings"

	"github.com/lavahost/soundnode/internal/filters"
)

// buildAudioFilterGraph translates a present FilterChain into an FFmpeg
// -af filtergraph string, applied in filters.FilterOrder. An empty chain
// yields an empty string, in which case -af is omitted entirely.
func buildAudioFilterGraph(chain filters.FilterChain) string {
	var stages []string

	if chain.Volume.IsPresent() {
		stages = append(stages, fmt.Sprintf("volume=%.4f", chain.Volume.Value))
	}
	if chain.Equalizer.IsPresent() {
		for _, band := range chain.Equalizer.Value {
			freq := eqBandFrequency(band.Band)
			stages = append(stages, fmt.Sprintf("equalizer=f=%.1f:width_type=o:width=1:g=%.2f", freq, band.Gain*12))
		}
	}
	if chain.Karaoke.IsPresent() {
		k := chain.Karaoke.Value
		stages = append(stages, fmt.Sprintf("stereotools=mlev=%.3f:sbal=0:mode=ms", 1.0-k.Level))
	}
	if chain.Timescale.IsPresent() {
		ts := chain.Timescale.Value
		stages = append(stages, fmt.Sprintf("atempo=%.4f", ts.Speed))
		if ts.Pitch != 1.0 {
			stages = append(stages, fmt.Sprintf("asetrate=48000*%.4f,aresample=48000", ts.Pitch))
		}
	}
	if chain.Tremolo.IsPresent() {
		tr := chain.Tremolo.Value
		stages = append(stages, fmt.Sprintf("tremolo=f=%.3f:d=%.3f", tr.Frequency, tr.Depth))
	}
	if chain.Vibrato.IsPresent() {
		v := chain.Vibrato.Value
		stages = append(stages, fmt.Sprintf("vibrato=f=%.3f:d=%.3f", v.Frequency, v.Depth))
	}
	if chain.Rotation.IsPresent() {
		stages = append(stages, fmt.Sprintf("apulsator=hz=%.4f", chain.Rotation.Value.RotationHz))
	}
	if chain.Distortion.IsPresent() {
		d := chain.Distortion.Value
		stages = append(stages, fmt.Sprintf("acrusher=level_in=%.2f:level_out=%.2f", 1+d.Scale, 1+d.Offset))
	}
	if chain.ChannelMix.IsPresent() {
		cm := chain.ChannelMix.Value
		stages = append(stages, fmt.Sprintf(
			"pan=stereo|c0=%.3f*c0+%.3f*c1|c1=%.3f*c0+%.3f*c1",
			cm.LeftToLeft, cm.RightToLeft, cm.LeftToRight, cm.RightToRight,
		))
	}
	if chain.LowPass.IsPresent() {
		cutoff := 20000.0 / chain.LowPass.Value.Smoothing
		stages = append(stages, fmt.Sprintf("lowpass=f=%.1f", cutoff))
	}

	return strings.Join(stages, ",")
}

// eqBandFrequency maps a Lavalink 15-band equalizer index (0-14) to its
// center frequency in Hz.
func eqBandFrequency(band int) float64 {
	freqs := []float64{
		25, 40, 63, 100, 160, 250, 400, 630,
		1000, 1600, 2500, 4000, 6300, 10000, 16000,
	}
	if band < 0 || band >= len(freqs) {
		return 1000
	}
	return freqs[band]
}
