package ports

// CredentialHasher produces one-way hashes of issued credentials for the
// audit log.
type CredentialHasher interface {
	Hash(credential string) (string, error)
	Compare(hash, credential string) error
}

// ServiceTokenVerifier authenticates calls on the internal surface
// (login fallback, manual provision) made by the UI layer.
type ServiceTokenVerifier interface {
	// Verify returns the caller identity claim or an error for invalid,
	// expired, or mis-signed tokens.
	Verify(token string) (string, error)
}

// WebhookSignatureVerifier checks the storefront's HMAC signature over a
// raw webhook body.
type WebhookSignatureVerifier interface {
	// Verify reports whether signature matches body. Implementations with
	// no configured secret accept everything.
	Verify(body []byte, signature string) bool
}
