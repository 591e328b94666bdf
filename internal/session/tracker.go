package session

// DefaultStabilityThreshold is the number of consecutive identical non-empty
// reads after the baseline read that mark a response as complete.
const DefaultStabilityThreshold = 3

// Tracker infers the end of a streamed response from repeated DOM reads.
//
// The first read of a given text becomes the baseline; each following read of
// the same non-empty text increments the counter. Any change, or an empty
// read, resets the counter and records the new baseline.
type Tracker struct {
	threshold int
	count     int
	last      string
}

// NewTracker returns a tracker settling after threshold matches.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultStabilityThreshold
	}
	return &Tracker{threshold: threshold}
}

// Observe feeds one read and reports whether the text has settled.
func (t *Tracker) Observe(text string) bool {
	if text != "" && text == t.last {
		t.count++
	} else {
		t.count = 0
		t.last = text
	}
	return t.Settled()
}

// Settled reports whether the threshold has been reached.
func (t *Tracker) Settled() bool {
	return t.count >= t.threshold
}

// Count returns the current number of consecutive matches.
func (t *Tracker) Count() int {
	return t.count
}

// Text returns the last recorded text.
func (t *Tracker) Text() string {
	return t.last
}
