package secrets

import "context"

// Provider defines a generic secrets manager interface.
type Provider interface {
	// GetSecret retrieves a secret by id and returns its JSON object as a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)
}
