package tracker

import "time"

const busyRetryDelay = 50 * time.Millisecond

// GlobalLimitWindowSize caps the logs indexed by one storage transaction.
const GlobalLimitWindowSize = 50
