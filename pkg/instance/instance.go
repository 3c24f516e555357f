package instance

import "os"

// GetID identifies the running process in logs. SETTLEMENT_INSTANCE_ID wins,
// then the platform dyno name, then fallback.
func GetID(fallback string) string {
	for _, key := range []string{"SETTLEMENT_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return fallback
}
