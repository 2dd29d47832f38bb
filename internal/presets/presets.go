// Package presets holds the genre starting points offered by the prompt form.
package presets

import (
	"slices"
	"strings"
)

// Preset is a genre with a ready-made MusicGen prompt and the genres it
// sits next to musically.
type Preset struct {
	Name    string   `json:"name"`
	Prompt  string   `json:"prompt"`
	Related []string `json:"related"`
}

// catalog is keyed by preset name. Related edges are symmetric.
var catalog = map[string]*Preset{
	"ambient": {
		Name:    "ambient",
		Prompt:  "slow ambient drone, airy synth pads, long reverb tails, no drums, 60 bpm",
		Related: []string{"lofi", "orchestral"},
	},
	"lofi": {
		Name:    "lofi",
		Prompt:  "lofi hip hop, dusty vinyl crackle, mellow rhodes chords, lazy boom bap drums, 80 bpm",
		Related: []string{"ambient", "jazz", "synthwave"},
	},
	"jazz": {
		Name:    "jazz",
		Prompt:  "upbeat jazz piano trio, walking upright bass, brushed snare, swing feel, 140 bpm",
		Related: []string{"lofi", "bossa nova", "funk"},
	},
	"bossa nova": {
		Name:    "bossa nova",
		Prompt:  "bossa nova, nylon string guitar, soft shaker, warm upright bass, gentle 120 bpm groove",
		Related: []string{"jazz", "folk"},
	},
	"folk": {
		Name:    "folk",
		Prompt:  "acoustic folk, fingerpicked steel string guitar, light hand percussion, warm and intimate",
		Related: []string{"bossa nova", "rock"},
	},
	"orchestral": {
		Name:    "orchestral",
		Prompt:  "cinematic orchestral piece, sweeping strings, french horns, timpani swells, heroic build",
		Related: []string{"ambient", "rock"},
	},
	"synthwave": {
		Name:    "synthwave",
		Prompt:  "80s synthwave, pulsing analog bass arpeggio, gated reverb drums, bright lead synth, 110 bpm",
		Related: []string{"lofi", "techno"},
	},
	"techno": {
		Name:    "techno",
		Prompt:  "driving techno, four on the floor kick, rolling sub bass, hypnotic hi hats, 128 bpm",
		Related: []string{"synthwave", "drum and bass", "funk"},
	},
	"drum and bass": {
		Name:    "drum and bass",
		Prompt:  "energetic drum and bass, fast breakbeats, deep reese bass, atmospheric pads, 174 bpm",
		Related: []string{"techno"},
	},
	"funk": {
		Name:    "funk",
		Prompt:  "tight funk groove, slap bass, scratchy rhythm guitar, horn stabs, 105 bpm",
		Related: []string{"jazz", "techno", "rock"},
	},
	"rock": {
		Name:    "rock",
		Prompt:  "classic rock, crunchy electric guitar riffs, steady live drums, driving bass, 120 bpm",
		Related: []string{"folk", "orchestral", "funk"},
	},
}

// Names returns every preset name in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// All returns every preset sorted by name.
func All() []Preset {
	out := make([]Preset, 0, len(catalog))
	for _, name := range Names() {
		out = append(out, *catalog[name])
	}
	return out
}

// Lookup returns the preset for name.
func Lookup(name string) (Preset, bool) {
	p, ok := catalog[normalize(name)]
	if !ok {
		return Preset{}, false
	}
	return *p, true
}

// IsValid reports whether name is a known preset.
func IsValid(name string) bool {
	_, ok := catalog[normalize(name)]
	return ok
}

// Compose merges the user's prompt with a preset. An unknown or empty genre
// leaves the prompt untouched; an empty prompt falls back to the preset's own.
func Compose(genre, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	p, ok := Lookup(genre)
	if !ok {
		return prompt
	}
	if prompt == "" {
		return p.Prompt
	}
	return prompt + ", " + p.Prompt
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// adjectives gives each preset a pool of descriptors for download names.
var adjectives = map[string][]string{
	"ambient":       {"floating", "weightless", "glacial"},
	"lofi":          {"dusty", "rainy", "mellow"},
	"jazz":          {"smoky", "midnight", "swinging"},
	"bossa nova":    {"coastal", "breezy", "swaying"},
	"folk":          {"fireside", "rustic", "open"},
	"orchestral":    {"soaring", "vast", "rising"},
	"synthwave":     {"neon", "chrome", "retro"},
	"techno":        {"kinetic", "hypnotic", "steel"},
	"drum and bass": {"rolling", "liquid", "relentless"},
	"funk":          {"strutting", "tight", "groovy"},
	"rock":          {"blazing", "driven", "roaring"},
}

// FileName builds a deterministic download name like "smoky-jazz-1a2b.wav"
// from a genre and a clip id. Without a known genre it falls back to "clip".
func FileName(genre, id string) string {
	short := strings.NewReplacer("-", "", "/", "", ":", "").Replace(id)
	if len(short) > 4 {
		short = short[len(short)-4:]
	}
	if short == "" {
		short = "0000"
	}

	genre = normalize(genre)
	adjs := adjectives[genre]
	if len(adjs) == 0 {
		return "clip-" + short + ".wav"
	}

	var h uint32
	for i := 0; i < len(id); i++ {
		h = h*31 + uint32(id[i])
	}
	name := adjs[h%uint32(len(adjs))] + "-" + strings.ReplaceAll(genre, " ", "-")
	return name + "-" + short + ".wav"
}
