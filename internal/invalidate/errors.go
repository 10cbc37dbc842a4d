package invalidate

import "strconv"

// PartialError reports how many families in one run failed.
type PartialError struct {
	Reason string
	Failed int
}

func (e *PartialError) Error() string {
	return "invalidate " + e.Reason + ": " + strconv.Itoa(e.Failed) + " families failed"
}
