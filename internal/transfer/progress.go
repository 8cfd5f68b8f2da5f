package transfer

// Progress tracks completed and total byte counts for one transfer.
// Completed never decreases within a transfer; a new transfer starts a
// fresh Progress.
type Progress struct {
	Completed  int64
	Total      int64
	TotalKnown bool
}

// FractionCompleted returns the completion fraction in [0, 1]. When the
// total is unknown it returns 0 (caller-visible as indeterminate).
func (p Progress) FractionCompleted() float64 {
	if !p.TotalKnown || p.Total <= 0 {
		return 0
	}
	f := float64(p.Completed) / float64(p.Total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
