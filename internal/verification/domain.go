package verification

import "time"

// Entry is the single live verification record for an email. Issuing again
// overwrites the code and resets IsUsed; consuming sets IsUsed exactly once.
type Entry struct {
	Email     string
	Code      string
	IsUsed    bool
	CreatedAt time.Time
}
