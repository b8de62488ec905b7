package domain

import (
	"fmt"
	"io"
	"strings"
)

// SpeedTier selects how many fragments the extractor fetches in parallel
type SpeedTier string

const (
	SpeedNormal SpeedTier = "normal"
	SpeedFast   SpeedTier = "fast"
	SpeedMax    SpeedTier = "max"
)

// MergePreference selects the container used when separate video and audio
// streams are muxed together
type MergePreference string

const (
	MergeAuto MergePreference = "auto" // Let the extractor pick a compatible container
	MergeMP4  MergePreference = "mp4"  // Force an MP4 container
	MergeMKV  MergePreference = "mkv"  // Force an MKV container
)

// Fragment counts per speed tier
const (
	fragmentsNormal = 8
	fragmentsFast   = 16
	fragmentsMax    = 32
)

// FragmentCount returns the parallel fragment count for the tier.
// Unknown tiers are treated as normal.
func (s SpeedTier) FragmentCount() int {
	switch s {
	case SpeedFast:
		return fragmentsFast
	case SpeedMax:
		return fragmentsMax
	default:
		return fragmentsNormal
	}
}

// Container returns the forced output container, or "" when the extractor
// should decide
func (m MergePreference) Container() string {
	switch m {
	case MergeMP4:
		return "mp4"
	case MergeMKV:
		return "mkv"
	default:
		return ""
	}
}

// ParseSpeedTier parses a speed tier, defaulting to max when empty
func ParseSpeedTier(s string) (SpeedTier, error) {
	switch tier := SpeedTier(strings.ToLower(strings.TrimSpace(s))); tier {
	case "":
		return SpeedMax, nil
	case SpeedNormal, SpeedFast, SpeedMax:
		return tier, nil
	default:
		return "", fmt.Errorf("%w: unknown speed tier %q", ErrInvalidInput, s)
	}
}

// ParseMergePreference parses a merge preference, defaulting to auto when empty
func ParseMergePreference(s string) (MergePreference, error) {
	switch pref := MergePreference(strings.ToLower(strings.TrimSpace(s))); pref {
	case "":
		return MergeAuto, nil
	case MergeAuto, MergeMP4, MergeMKV:
		return pref, nil
	default:
		return "", fmt.Errorf("%w: unknown merge preference %q", ErrInvalidInput, s)
	}
}

// DownloadRequest is a single user-initiated download
type DownloadRequest struct {
	URL string

	// Cookies is an uploaded cookies.txt body. When set, it is staged into a
	// temporary file owned by the downloader for the duration of the request.
	Cookies io.Reader

	// CookieFile is a pre-existing cookies.txt path. It is never deleted.
	CookieFile string

	Merge MergePreference
	Speed SpeedTier
}

// Normalize collapses the merge preference to auto when no muxer is available
func (r DownloadRequest) Normalize(capability Capability) DownloadRequest {
	if !capability.Available {
		r.Merge = MergeAuto
	}
	r.URL = strings.TrimSpace(r.URL)
	return r
}
