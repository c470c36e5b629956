package service

import "time"

// Clock supplies the current instant to decision logic.  TTL and
// cancellation-window comparisons never read time.Now directly; they
// take a Clock so tests can inject fixed or advancing clocks and make
// expiry behaviour deterministic.
type Clock func() time.Time

// UTCNow is the production clock.
func UTCNow() time.Time { return time.Now().UTC() }
