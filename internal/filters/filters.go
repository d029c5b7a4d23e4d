package filters

import "encoding/json"

// EqBand is a single equalizer band: index 0-14, gain -0.25 to 1.0.
type EqBand struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// KaraokeFilter attenuates a vocal band via center-channel cancellation.
type KaraokeFilter struct {
	Level       float64 `json:"level"`
	MonoLevel   float64 `json:"monoLevel"`
	FilterBand  float64 `json:"filterBand"`
	FilterWidth float64 `json:"filterWidth"`
}

// TimescaleFilter changes speed, pitch, and rate independently.
type TimescaleFilter struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

// TremoloFilter amplitude-modulates the signal.
type TremoloFilter struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

// VibratoFilter frequency-modulates the signal.
type VibratoFilter struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

// RotationFilter rotates the stereo image at RotationHz.
type RotationFilter struct {
	RotationHz float64 `json:"rotationHz"`
}

// DistortionFilter applies a trigonometric waveshaping distortion.
type DistortionFilter struct {
	SinOffset float64 `json:"sinOffset"`
	SinScale  float64 `json:"sinScale"`
	CosOffset float64 `json:"cosOffset"`
	CosScale  float64 `json:"cosScale"`
	TanOffset float64 `json:"tanOffset"`
	TanScale  float64 `json:"tanScale"`
	Offset    float64 `json:"offset"`
	Scale     float64 `json:"scale"`
}

// ChannelMixFilter remaps left/right channel contributions.
type ChannelMixFilter struct {
	LeftToLeft   float64 `json:"leftToLeft"`
	LeftToRight  float64 `json:"leftToRight"`
	RightToLeft  float64 `json:"rightToLeft"`
	RightToRight float64 `json:"rightToRight"`
}

// LowPassFilter smooths high frequencies; Smoothing must be >= 1.0.
type LowPassFilter struct {
	Smoothing float64 `json:"smoothing"`
}

// PluginFilter is an opaque named blob owned by a dynamic plugin. Order in
// the PluginFilters slice is the insertion (application) order.
type PluginFilter struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// FilterChain is the omissible patch document applied to a player's audio
// filter pipeline.
type FilterChain struct {
	Volume        Omissible[float64]
	Equalizer     Omissible[[]EqBand]
	Karaoke       Omissible[KaraokeFilter]
	Timescale     Omissible[TimescaleFilter]
	Tremolo       Omissible[TremoloFilter]
	Vibrato       Omissible[VibratoFilter]
	Rotation      Omissible[RotationFilter]
	Distortion    Omissible[DistortionFilter]
	ChannelMix    Omissible[ChannelMixFilter]
	LowPass       Omissible[LowPassFilter]
	PluginFilters Omissible[[]PluginFilter]
}

// FilterOrder is the fixed application order the decode pipeline uses:
// volume, equalizer, karaoke, timescale, tremolo/vibrato, rotation,
// distortion, channelMix, lowPass, then plugin filters in insertion order.
var FilterOrder = []string{
	"volume", "equalizer", "karaoke", "timescale",
	"tremolo", "vibrato", "rotation", "distortion",
	"channelMix", "lowPass", "pluginFilters",
}

// Merge applies omissible patch semantics field-by-field: absent keeps the
// existing value, null clears it, present overwrites it. Merge is
// idempotent for a fixed patch: merge(merge(x, p), p) == merge(x, p).
func Merge(existing, patch FilterChain) FilterChain {
	return FilterChain{
		Volume:        mergeField(existing.Volume, patch.Volume),
		Equalizer:     mergeField(existing.Equalizer, patch.Equalizer),
		Karaoke:       mergeField(existing.Karaoke, patch.Karaoke),
		Timescale:     mergeField(existing.Timescale, patch.Timescale),
		Tremolo:       mergeField(existing.Tremolo, patch.Tremolo),
		Vibrato:       mergeField(existing.Vibrato, patch.Vibrato),
		Rotation:      mergeField(existing.Rotation, patch.Rotation),
		Distortion:    mergeField(existing.Distortion, patch.Distortion),
		ChannelMix:    mergeField(existing.ChannelMix, patch.ChannelMix),
		LowPass:       mergeField(existing.LowPass, patch.LowPass),
		PluginFilters: mergeField(existing.PluginFilters, patch.PluginFilters),
	}
}

// ValidationError names an offending field and why it failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks every present field against its domain and against the
// disabled-filter set (config keys under lavalink.server.filters.*). A
// filter disabled by configuration is rejected even if its value would
// otherwise be in range.
func Validate(chain FilterChain, disabled map[string]bool) []ValidationError {
	var errs []ValidationError

	check := func(name string, present bool, fn func() []ValidationError) {
		if !present {
			return
		}
		if disabled[name] {
			errs = append(errs, ValidationError{Field: name, Message: "filter is disabled by configuration"})
			return
		}
		errs = append(errs, fn()...)
	}

	check("volume", chain.Volume.IsPresent(), func() []ValidationError {
		v := chain.Volume.Value
		if v < 0.0 || v > 5.0 {
			return []ValidationError{{Field: "volume", Message: "must be between 0.0 and 5.0"}}
		}
		return nil
	})

	check("equalizer", chain.Equalizer.IsPresent(), func() []ValidationError {
		var out []ValidationError
		for _, band := range chain.Equalizer.Value {
			if band.Band < 0 || band.Band > 14 {
				out = append(out, ValidationError{Field: "equalizer.band", Message: "band must be between 0 and 14"})
			}
			if band.Gain < -0.25 || band.Gain > 1.0 {
				out = append(out, ValidationError{Field: "equalizer.gain", Message: "gain must be between -0.25 and 1.0"})
			}
		}
		return out
	})

	check("karaoke", chain.Karaoke.IsPresent(), func() []ValidationError { return nil })

	check("timescale", chain.Timescale.IsPresent(), func() []ValidationError {
		v := chain.Timescale.Value
		var out []ValidationError
		if v.Speed <= 0 {
			out = append(out, ValidationError{Field: "timescale.speed", Message: "must be greater than 0"})
		}
		if v.Pitch <= 0 {
			out = append(out, ValidationError{Field: "timescale.pitch", Message: "must be greater than 0"})
		}
		if v.Rate <= 0 {
			out = append(out, ValidationError{Field: "timescale.rate", Message: "must be greater than 0"})
		}
		return out
	})

	check("tremolo", chain.Tremolo.IsPresent(), func() []ValidationError {
		v := chain.Tremolo.Value
		var out []ValidationError
		if v.Frequency <= 0 {
			out = append(out, ValidationError{Field: "tremolo.frequency", Message: "must be greater than 0"})
		}
		if v.Depth <= 0 || v.Depth > 1 {
			out = append(out, ValidationError{Field: "tremolo.depth", Message: "must be between 0 (exclusive) and 1"})
		}
		return out
	})

	check("vibrato", chain.Vibrato.IsPresent(), func() []ValidationError {
		v := chain.Vibrato.Value
		var out []ValidationError
		if v.Frequency <= 0 || v.Frequency > 14 {
			out = append(out, ValidationError{Field: "vibrato.frequency", Message: "must be between 0 (exclusive) and 14"})
		}
		if v.Depth <= 0 || v.Depth > 1 {
			out = append(out, ValidationError{Field: "vibrato.depth", Message: "must be between 0 (exclusive) and 1"})
		}
		return out
	})

	check("rotation", chain.Rotation.IsPresent(), func() []ValidationError { return nil })

	check("distortion", chain.Distortion.IsPresent(), func() []ValidationError { return nil })

	check("channelMix", chain.ChannelMix.IsPresent(), func() []ValidationError {
		v := chain.ChannelMix.Value
		var out []ValidationError
		for name, val := range map[string]float64{
			"leftToLeft": v.LeftToLeft, "leftToRight": v.LeftToRight,
			"rightToLeft": v.RightToLeft, "rightToRight": v.RightToRight,
		} {
			if val < 0.0 || val > 1.0 {
				out = append(out, ValidationError{Field: "channelMix." + name, Message: "must be between 0.0 and 1.0"})
			}
		}
		return out
	})

	check("lowPass", chain.LowPass.IsPresent(), func() []ValidationError {
		if chain.LowPass.Value.Smoothing < 1.0 {
			return []ValidationError{{Field: "lowPass.smoothing", Message: "must be at least 1.0"}}
		}
		return nil
	})

	return errs
}
