// Copyright 2025 Certen Protocol

package batch

// legalTransitions is the forward transition graph from spec. Any edge
// not present here is rejected by Advance. Failed is reachable from
// every non-terminal status; it is listed explicitly rather than
// special-cased so the table stays the single source of truth.
var legalTransitions = map[Status]map[Status]bool{
	Discovered: {Proving: true, Failed: true},
	Proving:    {Proved: true, Failed: true},
	Proved:     {Submitting: true, Failed: true},
	Submitting: {Submitted: true, Failed: true},
	Submitted:  {Confirmed: true, Failed: true},
}

// Advance moves the batch to the given status if the edge is legal,
// and validates the resulting field-presence invariants. It does not
// persist; callers are responsible for writing through the storage
// port after a successful Advance.
func (b *Batch) Advance(to Status) error {
	if b.Status.IsTerminal() {
		return ErrInvalidTransition
	}

	allowed, ok := legalTransitions[b.Status]
	if !ok || !allowed[to] {
		return ErrInvalidTransition
	}

	b.Status = to
	return b.Validate()
}

// Fail forces a terminal Failed transition, recording reason as the
// batch's last error. Used when attempts are exhausted or a domain
// error is unrecoverable; unlike Advance it is legal from any
// non-terminal status without consulting the transition table, since
// the "any non-terminal -> Failed" edge is unconditional per spec.
func (b *Batch) Fail(reason string) {
	if b.Status.IsTerminal() {
		return
	}
	b.Status = Failed
	b.LastError = reason
}
