package filters

import (
	"encoding/json"
	"fmt"
)

// addField stages a non-absent omissible field into the rendered object:
// a cleared field becomes an explicit JSON null, a set field becomes its
// value, and an absent field is left out of m entirely.
func addField[T any](m map[string]interface{}, key string, o Omissible[T]) {
	if o.IsAbsent() {
		return
	}
	if o.IsNull() {
		m[key] = nil
		return
	}
	m[key] = o.Value
}

// MarshalJSON omits every Absent field from the rendered object and
// renders a Null field as an explicit JSON null. A player's merged chain
// holds no Null fields (Merge turns a clear into Absent), so a client
// sees only the filters that player currently has set.
//
// This can't be done with struct tags: encoding/json's omitempty only
// recognizes a field's own zero value, and Omissible's zero value (Absent)
// is indistinguishable at that layer from "explicitly cleared". Building
// the object as a map sidesteps that.
func (c FilterChain) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{}
	addField(m, "volume", c.Volume)
	addField(m, "equalizer", c.Equalizer)
	addField(m, "karaoke", c.Karaoke)
	addField(m, "timescale", c.Timescale)
	addField(m, "tremolo", c.Tremolo)
	addField(m, "vibrato", c.Vibrato)
	addField(m, "rotation", c.Rotation)
	addField(m, "distortion", c.Distortion)
	addField(m, "channelMix", c.ChannelMix)
	addField(m, "lowPass", c.LowPass)
	addField(m, "pluginFilters", c.PluginFilters)
	return json.Marshal(m)
}

// UnmarshalJSON parses a partial filter patch: a key absent from data
// leaves the corresponding field Absent, a key present with a JSON null
// clears it, and any other value sets it.
//
// Decoding via a map of raw messages (rather than a struct with pointer
// fields) matters here: encoding/json special-cases a JSON null destined
// for a pointer-typed struct field by nilling the pointer without ever
// calling the pointee's UnmarshalJSON, which would silently turn "clear
// this filter" into "leave it alone". Unmarshaling each present key
// straight into the (non-pointer) Omissible field goes through the normal
// Unmarshaler path instead, so Omissible.UnmarshalJSON sees the null.
func (c *FilterChain) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = FilterChain{}

	for key, v := range raw {
		var err error
		switch key {
		case "volume":
			err = json.Unmarshal(v, &c.Volume)
		case "equalizer":
			err = json.Unmarshal(v, &c.Equalizer)
		case "karaoke":
			err = json.Unmarshal(v, &c.Karaoke)
		case "timescale":
			err = json.Unmarshal(v, &c.Timescale)
		case "tremolo":
			err = json.Unmarshal(v, &c.Tremolo)
		case "vibrato":
			err = json.Unmarshal(v, &c.Vibrato)
		case "rotation":
			err = json.Unmarshal(v, &c.Rotation)
		case "distortion":
			err = json.Unmarshal(v, &c.Distortion)
		case "channelMix":
			err = json.Unmarshal(v, &c.ChannelMix)
		case "lowPass":
			err = json.Unmarshal(v, &c.LowPass)
		case "pluginFilters":
			err = json.Unmarshal(v, &c.PluginFilters)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("filters: field %q: %w", key, err)
		}
	}
	return nil
}
