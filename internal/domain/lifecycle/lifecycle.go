// Package lifecycle holds timing constants shared by start/stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds fx start and stop hooks (DB ping, HTTP shutdown).
const DefaultTimeout = 10 * time.Second
