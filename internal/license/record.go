package license

import "time"

// Record is the per-holder lease state. It is a plain value: the table
// replaces a record wholesale through the transition methods below
// rather than mutating fields in place.
//
// Invariant: Leased implies Expiry was set in the future at the moment
// the lease was last issued. Leased flips back to false only through
// reclaim, or implicitly by a fresh issue overwriting the record.
type Record struct {
	Holder   string
	Validity time.Duration
	Expiry   time.Time
	Leased   bool
}

// issue returns the record checked out as of now.
func (r Record) issue(now time.Time) Record {
	r.Leased = true
	r.Expiry = now.Add(r.Validity)
	return r
}

// reclaim returns the record with the lease released. The stale expiry
// is kept for observability; a record with Leased == false is free
// regardless of its Expiry.
func (r Record) reclaim() Record {
	r.Leased = false
	return r
}

// expiredAt reports whether the record holds a lease whose window has
// passed.
func (r Record) expiredAt(now time.Time) bool {
	return r.Leased && !r.Expiry.IsZero() && now.After(r.Expiry)
}

// availableAt reports whether a new lease may be issued.
func (r Record) availableAt(now time.Time) bool {
	return !r.Leased || r.expiredAt(now)
}

// OutcomeKind classifies the result of a TryIssue call.
type OutcomeKind int

const (
	// OutcomeIssued means a fresh lease was checked out to the caller.
	OutcomeIssued OutcomeKind = iota
	// OutcomeAlreadyInUse means an unexpired lease exists; the existing
	// expiry is reported and the lease is not extended. This is a
	// success-shaped outcome, not an error.
	OutcomeAlreadyInUse
	// OutcomeNotFound means the holder is not in the roster.
	OutcomeNotFound
	// OutcomeInvalidKey means the supplied credential did not match.
	OutcomeInvalidKey
)

// Outcome is the result of a lease request against the table.
type Outcome struct {
	Kind   OutcomeKind
	Holder string
	// Expiry is set for OutcomeIssued (the new expiry) and
	// OutcomeAlreadyInUse (the existing one); zero otherwise.
	Expiry time.Time
}

// Valid reports whether the outcome represents a usable license window,
// either freshly issued or already held.
func (o Outcome) Valid() bool {
	return o.Kind == OutcomeIssued || o.Kind == OutcomeAlreadyInUse
}
