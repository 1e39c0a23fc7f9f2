package driven

import "github.com/ericfisherdev/gatekeeper/internal/domain/model"

// CardReader is the proximity card reader capability. PollPresent and
// ReadIdentifier are non-blocking; Halt puts the current card to sleep so the
// same presentation is not read twice.
type CardReader interface {
	PollPresent() bool
	ReadIdentifier() ([]byte, error)
	Halt()
}

// FingerprintSensor is the optical fingerprint module capability. Every call
// is a single command/response exchange with the module.
type FingerprintSensor interface {
	// VerifyLink reports whether the module answers its handshake.
	VerifyLink() bool
	// CaptureImage returns model.SensorNoFinger while the sensor is empty.
	CaptureImage() model.SensorStatus
	// ExtractFeatures converts the last image into feature buffer 1 or 2.
	ExtractFeatures(slot int) model.SensorStatus
	// BuildModel combines both feature buffers into a template.
	BuildModel() model.SensorStatus
	// StoreModel writes the template at id. Expected results are
	// model.SensorOK, SensorOccupied, SensorStorageFault or SensorCommFault.
	StoreModel(id uint16) model.SensorStatus
	// Search looks up feature buffer 1 in the template database.
	Search() (model.SearchResult, model.SensorStatus)
	EraseDatabase() model.SensorStatus
}

// Display is a two-line character display. Writes are fire-and-forget.
type Display interface {
	ShowTwoLines(line1, line2 string)
}

// Servo positions the lock actuator.
type Servo interface {
	SetPosition(angle int)
}

// LineSource yields complete operator input lines without blocking.
type LineSource interface {
	PollLine() (string, bool)
}
