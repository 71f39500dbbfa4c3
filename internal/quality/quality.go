// Package quality defines the fixed set of streaming quality presets and
// the eligibility rule for a given source height.
package quality

import "fmt"

// Label identifies one of the fixed quality presets.
type Label string

const (
	Direct Label = "direct"
	P2160  Label = "2160p"
	P1080  Label = "1080p"
	P720   Label = "720p"
	P480   Label = "480p"
	P360   Label = "360p"
)

// Preset is the fixed per-quality parameter set. Direct has zero width,
// height, and bitrates: it means passthrough, no transcoder is spawned.
type Preset struct {
	Label            Label
	Width            int
	Height           int
	VideoBitrateKbps int
	AudioBitrateKbps int
}

// presets is the fixed table from the spec's data model (§3). Map order is
// not defined; orderedLabels below fixes the iteration order.
var presets = map[Label]Preset{
	Direct: {Label: Direct},
	P2160:  {Label: P2160, Width: 3840, Height: 2160, VideoBitrateKbps: 12000, AudioBitrateKbps: 192},
	P1080:  {Label: P1080, Width: 1920, Height: 1080, VideoBitrateKbps: 6000, AudioBitrateKbps: 160},
	P720:   {Label: P720, Width: 1280, Height: 720, VideoBitrateKbps: 3000, AudioBitrateKbps: 128},
	P480:   {Label: P480, Width: 854, Height: 480, VideoBitrateKbps: 1500, AudioBitrateKbps: 128},
	P360:   {Label: P360, Width: 640, Height: 360, VideoBitrateKbps: 800, AudioBitrateKbps: 96},
}

// orderedLabels fixes an iteration/eligibility order from highest to lowest,
// used by Allowed to report the full eligible set.
var orderedLabels = []Label{Direct, P2160, P1080, P720, P480, P360}

// Lookup returns the preset for a label, or an error if the label is not
// one of the fixed set.
func Lookup(l Label) (Preset, error) {
	p, ok := presets[l]
	if !ok {
		return Preset{}, fmt.Errorf("quality: unknown label %q", l)
	}
	return p, nil
}

// Eligible reports whether a quality label may be requested for a scene of
// the given source height, per §3: direct is always allowed; any other
// preset is allowed only if its height does not exceed the source's.
func Eligible(l Label, sourceHeight int) bool {
	p, ok := presets[l]
	if !ok {
		return false
	}
	if l == Direct {
		return true
	}
	return p.Height <= sourceHeight
}

// Allowed returns every preset eligible for the given source height, in
// descending-quality order.
func Allowed(sourceHeight int) []Preset {
	out := make([]Preset, 0, len(orderedLabels))
	for _, l := range orderedLabels {
		if Eligible(l, sourceHeight) {
			p := presets[l]
			out = append(out, p)
		}
	}
	return out
}

// Parse validates a raw query-string quality value against the fixed set.
func Parse(raw string) (Label, error) {
	l := Label(raw)
	if _, ok := presets[l]; !ok {
		return "", fmt.Errorf("quality: %q is not one of the allowed presets", raw)
	}
	return l, nil
}
