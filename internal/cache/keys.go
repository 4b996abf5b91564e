package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(requestID uuid.UUID) string {
	return fmt.Sprintf("video:status:%s", requestID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
