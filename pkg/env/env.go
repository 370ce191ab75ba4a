package env

import "os"

// Prefix is prepended to every variable this module reads directly.
const Prefix = "PFMOBILE_"

// Get returns the value of the prefixed environment variable, falling back
// to the bare name and then to the given default.
func Get(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
