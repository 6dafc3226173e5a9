package integrity

// Status is the cached integrity outcome of a collection.
type Status int

const (
	// StatusUnchecked means no verification has completed yet.
	StatusUnchecked Status = iota
	// StatusValid means the stored rows matched the expected checksum.
	StatusValid
	// StatusInvalid means verification returned false or failed.
	StatusInvalid
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusUnchecked:
		return "unchecked"
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Checked reports whether a verification outcome is cached.
func (s Status) Checked() bool {
	return s == StatusValid || s == StatusInvalid
}
