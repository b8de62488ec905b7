package domain

// Format selectors handed to the extractor
const (
	// FormatSeparateStreams asks for the best video and best audio stream
	// independently; they are muxed locally afterwards.
	FormatSeparateStreams = "bestvideo+bestaudio/best"

	// FormatSingleStream asks for the best stream that already carries both
	// video and audio, since nothing can mux locally.
	FormatSingleStream = "best"
)

// Capability is the result of probing for the muxing binary. It is computed
// once per session and never changes afterwards.
type Capability struct {
	Available bool   `json:"available"`
	Binary    string `json:"binary"`
	Version   string `json:"version,omitempty"`
	Reason    string `json:"reason,omitempty"` // Why the muxer is unavailable
}

// FormatSelector returns the format selector this capability allows
func (c Capability) FormatSelector() string {
	if c.Available {
		return FormatSeparateStreams
	}
	return FormatSingleStream
}

// MergeOptions returns the merge preferences that can be offered to the user
func (c Capability) MergeOptions() []MergePreference {
	if !c.Available {
		return []MergePreference{MergeAuto}
	}
	return []MergePreference{MergeAuto, MergeMP4, MergeMKV}
}
