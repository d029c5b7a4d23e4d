package filters

import "testing"

func TestMergeAbsentKeepsExisting(t *testing.T) {
	existing := FilterChain{Volume: Set(0.8)}
	merged := Merge(existing, FilterChain{})
	if merged.Volume != existing.Volume {
		t.Fatalf("merge with all-absent patch changed volume: %+v", merged.Volume)
	}
}

func TestMergeNullClears(t *testing.T) {
	existing := FilterChain{Volume: Set(0.8)}
	patch := FilterChain{Volume: OmitNull[float64]()}
	merged := Merge(existing, patch)
	if !merged.Volume.IsAbsent() {
		t.Fatalf("expected volume cleared, got %+v", merged.Volume)
	}
}

func TestMergePresentOverwrites(t *testing.T) {
	existing := FilterChain{Volume: Set(0.8)}
	patch := FilterChain{Volume: Set(1.5)}
	merged := Merge(existing, patch)
	if merged.Volume.Value != 1.5 {
		t.Fatalf("expected volume overwritten to 1.5, got %v", merged.Volume.Value)
	}
}

func TestMergeIdempotent(t *testing.T) {
	existing := FilterChain{Volume: Set(0.8)}
	patch := FilterChain{Volume: Set(1.2)}
	once := Merge(existing, patch)
	twice := Merge(once, patch)
	if once.Volume != twice.Volume {
		t.Fatalf("merge not idempotent: %+v vs %+v", once.Volume, twice.Volume)
	}
}

func TestValidateVolumeRange(t *testing.T) {
	cases := []struct {
		v     float64
		valid bool
	}{
		{0.0, true}, {5.0, true}, {2.5, true},
		{-0.1, false}, {5.1, false},
	}
	for _, c := range cases {
		chain := FilterChain{Volume: Set(c.v)}
		errs := Validate(chain, nil)
		if c.valid && len(errs) != 0 {
			t.Errorf("volume %v should be valid, got errors %v", c.v, errs)
		}
		if !c.valid && len(errs) == 0 {
			t.Errorf("volume %v should be invalid", c.v)
		}
	}
}

func TestValidateEqualizerBandBoundary(t *testing.T) {
	chain := FilterChain{Equalizer: Set([]EqBand{{Band: 14, Gain: 0}})}
	if errs := Validate(chain, nil); len(errs) != 0 {
		t.Fatalf("band 14 should be valid, got %v", errs)
	}

	chain = FilterChain{Equalizer: Set([]EqBand{{Band: 15, Gain: 0}})}
	if errs := Validate(chain, nil); len(errs) == 0 {
		t.Fatal("band 15 should be rejected")
	}
}

func TestValidateRejectsDisabledFilter(t *testing.T) {
	chain := FilterChain{Volume: Set(1.0)}
	errs := Validate(chain, map[string]bool{"volume": true})
	if len(errs) == 0 {
		t.Fatal("expected validation error for disabled filter")
	}
}

func TestPresetsRecognized(t *testing.T) {
	names := []string{"bassBoost", "nightcore", "vaporwave", "karaoke", "softDistortion", "tremolo", "vibrato"}
	for _, n := range names {
		if _, ok := Preset(n); !ok {
			t.Errorf("expected preset %q to be recognized", n)
		}
	}
	if _, ok := Preset("doesNotExist"); ok {
		t.Error("expected unknown preset to be rejected")
	}
}
