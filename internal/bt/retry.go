package bt

// Retry ticks its child until it succeeds, allowing up to maxAttempts failed
// attempts.
//
// Each tick runs at most one attempt: a failed attempt below the limit makes
// Retry return Running, and the child is ticked again on the next tick, never
// within the same one.
type Retry struct {
	Decorator
	maxAttempts int
	attempts    int
}

// NewRetry creates a retry decorator. child may be nil and attached later
// with SetChild.
func NewRetry(name string, maxAttempts int, child Node) (*Retry, error) {
	if maxAttempts < 0 {
		return nil, constructionErrorf(name, ErrInvalidConfig, "max attempts %d is negative", maxAttempts)
	}
	d, err := newDecorator(name, KindDecorator, nil, nil)
	if err != nil {
		return nil, err
	}
	r := &Retry{Decorator: d, maxAttempts: maxAttempts}
	if child != nil {
		if err := r.SetChild(child); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MaxAttempts returns the configured limit.
func (r *Retry) MaxAttempts() int { return r.maxAttempts }

// Attempts returns the failed attempts of the current episode.
func (r *Retry) Attempts() int { return r.attempts }

func (r *Retry) Tick() Status {
	var status Status
	switch r.tickChild() {
	case Success:
		r.attempts = 0
		status = Success
	case Failure:
		r.attempts++
		if r.attempts < r.maxAttempts {
			status = Running
		} else {
			r.attempts = 0
			status = Failure
		}
	default:
		status = Running
	}
	r.SetStatus(status)
	return status
}

// Halt aborts the current attempt and forgets earlier ones, so an abandoned
// retry cannot leak its count into a later episode.
func (r *Retry) Halt() {
	r.haltChild()
	r.attempts = 0
	r.SetStatus(Idle)
}
