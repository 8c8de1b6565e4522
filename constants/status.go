package constants

// DocumentStatus is the canonical status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded  DocumentStatus = "uploaded"  // initial: stored, not yet processed
	StatusProcessed DocumentStatus = "processed" // terminal: artifacts written
	StatusFailed    DocumentStatus = "failed"    // terminal failure
)

// IsTerminal reports whether no further pipeline transition is expected.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessed, StatusFailed:
		return true
	}
	return false
}
