package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// credentialRandomBytes is the amount of randomness behind each generated
// credential. 24 bytes keeps a comfortable margin above the 16-byte floor
// required for provisioned accounts.
const credentialRandomBytes = 24

// GenerateCredential produces the initial credential for a provisioned
// identity: cryptographically random bytes rendered as a printable
// URL-safe string. The credential is write-only after creation.
func GenerateCredential() (string, error) {
	raw := make([]byte, credentialRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read credential randomness: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
