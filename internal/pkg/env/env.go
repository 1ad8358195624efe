// Package env provides utilities for working with environment variables and
// for resolving settings from an ordered list of sources.
package env

import (
	"os"
	"strings"
)

// Get returns the value of the environment variable or the default if not set.
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Source yields a candidate value for a setting. ok is false when the source
// has nothing to say.
type Source func() (value string, ok bool)

// Value is a source that holds an explicit value, typically a CLI flag.
// Blank strings count as unset.
func Value(v string) Source {
	return func() (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	}
}

// Var is a source backed by the named environment variable.
func Var(key string) Source {
	return func() (string, bool) {
		v := strings.TrimSpace(os.Getenv(key))
		return v, v != ""
	}
}

// Lookup is a source backed by a map, used for per-chain defaults.
func Lookup(m map[string]string, key string) Source {
	return func() (string, bool) {
		v, ok := m[key]
		return v, ok && v != ""
	}
}

// Resolve returns the first value offered by sources, in order, and the
// index of the source that answered. It returns ("", -1) when none answer.
//
// Callers list sources by precedence, highest first. The service uses
//
//	explicit flag > environment (including .env loaded at startup) > chain default
//
// so an operator override always wins and a missing setting falls through
// to the built-in value for the active chain.
func Resolve(sources ...Source) (string, int) {
	for i, src := range sources {
		if src == nil {
			continue
		}
		if v, ok := src(); ok {
			return v, i
		}
	}
	return "", -1
}

// ResolveOr is Resolve with a final literal fallback.
func ResolveOr(fallback string, sources ...Source) string {
	if v, idx := Resolve(sources...); idx >= 0 {
		return v
	}
	return fallback
}
