package feed

import (
	"time"

	"icpc-reveal-engine/internal/timeparse"
)

func parseDurationField(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return timeparse.ParseDuration(s)
}

func minutesToDuration(m int) time.Duration {
	return time.Duration(m) * time.Minute
}
