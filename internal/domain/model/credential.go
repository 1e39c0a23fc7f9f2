package model

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// InitialTemplateID is the first fingerprint template id proposed to the
// sensor after a factory reset or a full registry clear.
const InitialTemplateID uint16 = 1

// CredentialRecord is one entry in the access registry. Slot is assigned at
// append time from the current record count and is never reused until the
// registry is cleared. Key is the normalized match key for the modality.
type CredentialRecord struct {
	Slot     uint16
	Modality Modality
	Key      string
	Name     string
}

// CardKey normalizes a card identifier into its match key: two uppercase hex
// digits per byte with no separators.
func CardKey(uid []byte) string {
	return strings.ToUpper(hex.EncodeToString(uid))
}

// FingerprintKey returns the match key for a sensor template id.
func FingerprintKey(id uint16) string {
	return strconv.FormatUint(uint64(id), 10)
}

// DefaultName builds the placeholder name assigned to a record before an
// operator supplies one, e.g. "fingerprint_user_4".
func DefaultName(m Modality, id uint16) string {
	return fmt.Sprintf("%s_user_%d", m, id)
}
