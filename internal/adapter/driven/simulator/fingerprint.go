package simulator

import (
	"sync"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

var _ driven.FingerprintSensor = (*FingerprintSensor)(nil)

// DefaultCapacity matches the template library size of common optical
// modules.
const DefaultCapacity uint16 = 200

// FingerprintSensor is a simulated optical fingerprint module. A finger is
// identified by an arbitrary print label; each Touch yields one captured
// image, after which the finger counts as lifted.
type FingerprintSensor struct {
	mu        sync.Mutex
	online    bool
	capacity  uint16
	touches   []string
	image     string
	buffers   [2]string
	model     string
	templates map[uint16]string
}

// NewFingerprintSensor creates an online sensor with an empty library of
// the given capacity. A zero capacity selects DefaultCapacity.
func NewFingerprintSensor(capacity uint16) *FingerprintSensor {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &FingerprintSensor{
		online:    true,
		capacity:  capacity,
		templates: make(map[uint16]string),
	}
}

// Touch queues one finger placement with the given print.
func (s *FingerprintSensor) Touch(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches = append(s.touches, label)
}

// SetOnline simulates the module answering or not answering.
func (s *FingerprintSensor) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

// Templates returns a copy of the stored template library.
func (s *FingerprintSensor) Templates() map[uint16]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint16]string, len(s.templates))
	for id, label := range s.templates {
		out[id] = label
	}
	return out
}

// VerifyLink reports whether the module is online.
func (s *FingerprintSensor) VerifyLink() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// CaptureImage consumes the next queued touch.
func (s *FingerprintSensor) CaptureImage() model.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return model.SensorCommFault
	}
	if len(s.touches) == 0 {
		return model.SensorNoFinger
	}
	s.image = s.touches[0]
	s.touches = s.touches[1:]
	if s.image == "" {
		return model.SensorImageFail
	}
	return model.SensorOK
}

// ExtractFeatures copies the last image into buffer 1 or 2.
func (s *FingerprintSensor) ExtractFeatures(slot int) model.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return model.SensorCommFault
	}
	if slot < 1 || slot > 2 || s.image == "" {
		return model.SensorFeatureFail
	}
	s.buffers[slot-1] = s.image
	return model.SensorOK
}

// BuildModel succeeds when both buffers hold the same print.
func (s *FingerprintSensor) BuildModel() model.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return model.SensorCommFault
	}
	if s.buffers[0] == "" || s.buffers[0] != s.buffers[1] {
		s.model = ""
		return model.SensorMismatch
	}
	s.model = s.buffers[0]
	return model.SensorOK
}

// StoreModel writes the built model at id.
func (s *FingerprintSensor) StoreModel(id uint16) model.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.online:
		return model.SensorCommFault
	case id == 0 || id > s.capacity || s.model == "":
		return model.SensorStorageFault
	}
	if _, taken := s.templates[id]; taken {
		return model.SensorOccupied
	}
	s.templates[id] = s.model
	return model.SensorOK
}

// Search looks buffer 1 up in the library. The lowest matching id wins.
func (s *FingerprintSensor) Search() (model.SearchResult, model.SensorStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return model.SearchResult{}, model.SensorCommFault
	}

	var (
		best  uint16
		found bool
	)
	for id, label := range s.templates {
		if label == s.buffers[0] && (!found || id < best) {
			best, found = id, true
		}
	}
	if !found {
		return model.SearchResult{}, model.SensorNotFound
	}
	return model.SearchResult{ID: best, Matched: true}, model.SensorOK
}

// EraseDatabase empties the template library.
func (s *FingerprintSensor) EraseDatabase() model.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return model.SensorCommFault
	}
	clear(s.templates)
	return model.SensorOK
}
