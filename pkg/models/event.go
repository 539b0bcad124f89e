package models

// Event kinds delivered by the progress gateway. Both the push channel and
// the polling fallback terminate in this same vocabulary.
const (
	EventProgress = "progress"
	EventOutfit   = "outfit"
	EventComplete = "complete"
	EventError    = "error"
)

// JobEvent is one progress-gateway event. Which fields are populated depends
// on Type: progress carries Percent; outfit carries Index and Outfit;
// complete carries Results and optionally Reasoning; error carries Message.
type JobEvent struct {
	Type      string   `json:"type"`
	Percent   int      `json:"percent"`
	Index     int      `json:"index"`
	Outfit    *Outfit  `json:"outfit,omitempty"`
	Results   []Outfit `json:"results,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
	Message   string   `json:"message,omitempty"`
}
