package domain

import (
	"strings"
	"testing"
)

func TestGenerateCredentialLengthAndAlphabet(t *testing.T) {
	t.Parallel()

	credential, err := GenerateCredential()
	if err != nil {
		t.Fatalf("generate credential: %v", err)
	}
	// 24 random bytes in unpadded url-safe base64.
	if len(credential) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(credential))
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for _, r := range credential {
		if !strings.ContainsRune(alphabet, r) {
			t.Fatalf("unexpected character %q in credential", r)
		}
	}
}

func TestGenerateCredentialIsUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		credential, err := GenerateCredential()
		if err != nil {
			t.Fatalf("generate credential: %v", err)
		}
		if seen[credential] {
			t.Fatalf("credential repeated after %d generations", i)
		}
		seen[credential] = true
	}
}
