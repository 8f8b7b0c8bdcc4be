package settings

import (
	"time"
)

const (
	DEFAULT_CYCLE_TIME   = 0.001 // s
	DEFAULT_LOG_LEVEL    = "error"
	DEFAULT_LOAD_RETRIES = 3
	LOAD_RETRY_DELAY     = 1 * time.Second
	MIN_CYCLE_TIME       = 1e-6 // s
	MAX_CYCLE_TIME       = 1.0  // s
)
