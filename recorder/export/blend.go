package export

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	blendVersion   = 1
	blendEventName = "event:>Engine>default"
	// gameSoundRoot is where the game expects the exported samples.
	gameSoundRoot = "art/sound/engine"
)

// BlendHeader is the sfxBlend2D header object.
type BlendHeader struct {
	Version int `json:"version"`
}

// BlendSample pairs a game-relative sample path with its RPM. It encodes
// as a two-element JSON array.
type BlendSample struct {
	Path string
	RPM  int
}

// MarshalJSON encodes s as ["path", rpm].
func (s BlendSample) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Path, s.RPM})
}

// Blend2D is the .sfxBlend2D.json document: one sample set at 0% throttle
// followed by one at 100%.
type Blend2D struct {
	Header    BlendHeader     `json:"header"`
	EventName string          `json:"eventName"`
	Samples   [][]BlendSample `json:"samples"`
}

// GamePath is the path of a sample inside the game's sound tree.
func GamePath(blend string, rpm, throttle int) string {
	return fmt.Sprintf("%s/%s/%s", gameSoundRoot, blend, SampleFileName(blend, rpm, throttle))
}

// SampleFileName is the file name of an exported sample.
func SampleFileName(blend string, rpm, throttle int) string {
	return fmt.Sprintf("%s_%d_%d.wav", blend, rpm, throttle)
}

// NewBlend2D builds the document for the given 0% and 100% RPMs.
func NewBlend2D(blend string, rpms0, rpms100 []int) Blend2D {
	set := func(rpms []int, throttle int) []BlendSample {
		out := make([]BlendSample, 0, len(rpms))
		for _, rpm := range rpms {
			out = append(out, BlendSample{Path: GamePath(blend, rpm, throttle), RPM: rpm})
		}
		return out
	}
	return Blend2D{
		Header:    BlendHeader{Version: blendVersion},
		EventName: blendEventName,
		Samples:   [][]BlendSample{set(rpms0, 0), set(rpms100, 100)},
	}
}

// WriteBlend2D writes doc as indented JSON.
func WriteBlend2D(w io.Writer, doc Blend2D) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}
