package model

// Decision is the outcome of matching one physical credential presentation.
// Name is set only when Granted; Key always carries the normalized key that
// was looked up (empty when the sensor reported no match at all).
type Decision struct {
	Granted  bool
	Modality Modality
	Key      string
	Name     string
}

// Granted returns a granting decision for the named record.
func Granted(m Modality, key, name string) Decision {
	return Decision{Granted: true, Modality: m, Key: key, Name: name}
}

// Denied returns a denying decision for key.
func Denied(m Modality, key string) Decision {
	return Decision{Modality: m, Key: key}
}
