// Package secrets resolves named secret references. Secrets never live
// in the database; channel configs carry only a reference name.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Resolver looks up secrets by reference name, first in the statically
// configured map, then in the environment as SECRET_<REF> with the
// reference upper-cased and dashes folded to underscores.
type Resolver struct {
	static map[string]string
}

func NewResolver(static map[string]string) *Resolver {
	return &Resolver{static: static}
}

func (r *Resolver) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	if v, ok := r.static[ref]; ok {
		return v, nil
	}
	envKey := "SECRET_" + strings.ToUpper(strings.ReplaceAll(ref, "-", "_"))
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %q not found", ref)
}
