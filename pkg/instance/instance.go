package instance

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GetID returns the worker instance identifier used as a lock owner.
// WORKER_ID wins; otherwise hostname plus a per-process suffix keeps
// replicas on one host distinct.
func GetID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, processSuffix)
}

var processSuffix = uuid.NewString()[:8]
