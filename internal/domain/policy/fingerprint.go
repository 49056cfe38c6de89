package policy

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a 16-hex-digit digest of a rule body. It identifies
// identical rule revisions across history entries and in sync logs; it is
// not a security primitive.
func Fingerprint(rule string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(rule))
}
