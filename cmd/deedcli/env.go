package main

import (
	"os"
)

// env returns the value of the environment variable when it is set, even to
// an empty string. Otherwise fallback is returned.
func env(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}
