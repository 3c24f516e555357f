package env

import "os"

// First returns the value of the first set variable among keys, or fallback.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return fallback
}
