// Package model defines shared data structures.
package model

// Feed represents an RSS feed subscription. It is created once per
// successful add and never mutated afterwards.
type Feed struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Post represents a single item discovered in a feed.
type Post struct {
	ID          string `json:"id"`
	FeedURL     string `json:"feed_url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"` // dedup key at ingestion time
}

// LoadPhase is the phase of the most recent add-feed attempt.
type LoadPhase int

const (
	PhaseIdle LoadPhase = iota
	PhaseLoading
	PhaseFailed
)

func (p LoadPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Valid reports whether p is one of the three known phases.
func (p LoadPhase) Valid() bool {
	return p >= PhaseIdle && p <= PhaseFailed
}

// MarshalText encodes the phase by name.
func (p LoadPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ErrorKind classifies a failed add-feed attempt.
type ErrorKind string

const (
	KindNone    ErrorKind = ""
	KindParsing ErrorKind = "ParsingError"
	KindNetwork ErrorKind = "NetworkError"
	KindUnknown ErrorKind = "Unknown"
)

// Valid reports whether k is a known kind.
func (k ErrorKind) Valid() bool {
	switch k {
	case KindNone, KindParsing, KindNetwork, KindUnknown:
		return true
	}
	return false
}

// LoadStatus describes the outcome of the latest add-feed attempt.
type LoadStatus struct {
	Phase     LoadPhase `json:"phase"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// FormStatus describes the latest validation outcome for the input.
type FormStatus struct {
	IsValid      bool   `json:"is_valid"`
	ErrorMessage string `json:"error_message,omitempty"`
}
