package model

// SensorStatus is the result code reported by the fingerprint sensor for a
// single command.
type SensorStatus int

const (
	SensorOK SensorStatus = iota
	// SensorNoFinger means no finger is on the sensor yet; callers keep polling.
	SensorNoFinger
	SensorImageFail
	SensorFeatureFail
	// SensorMismatch means the two captures did not combine into a model.
	SensorMismatch
	// SensorOccupied means the requested template id already holds a template.
	SensorOccupied
	SensorStorageFault
	SensorCommFault
	// SensorNotFound means a search found no matching template.
	SensorNotFound
)

// String returns a short label for logs and display lines.
func (s SensorStatus) String() string {
	switch s {
	case SensorOK:
		return "ok"
	case SensorNoFinger:
		return "no_finger"
	case SensorImageFail:
		return "image_fail"
	case SensorFeatureFail:
		return "feature_fail"
	case SensorMismatch:
		return "mismatch"
	case SensorOccupied:
		return "occupied"
	case SensorStorageFault:
		return "storage_fault"
	case SensorCommFault:
		return "comm_fault"
	case SensorNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// SearchResult is the outcome of a fingerprint search: the candidate template
// id and whether the sensor considered it a match.
type SearchResult struct {
	ID      uint16
	Matched bool
}
