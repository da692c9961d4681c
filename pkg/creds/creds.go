// Package creds defines the credentials-provider collaborator interface
// (spec.md §6). Credentials loading is out of scope (§1: "credentials
// loading" is a collaborator concern); this package exposes only a
// lookup seam for upstream provider credentials. No engine component
// calls it.
package creds

import (
	"context"
	"fmt"
	"os"
)

// Provider resolves a named credential to its value.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// EnvProvider resolves credentials from the process environment, the
// simplest provider that needs no external service.
type EnvProvider struct{}

func (EnvProvider) Get(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("credential %q not set in environment", name)
	}
	return v, nil
}
