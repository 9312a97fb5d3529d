package instance

import "os"

// GetID identifies the running process in lock values and logs.
func GetID() string {
	if id := os.Getenv("ENXOVAL_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
