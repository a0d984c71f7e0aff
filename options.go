package foundationdb

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Priority schedules a transaction's reads relative to other cluster work.
type Priority int

const (
	// PriorityDefault is the normal scheduling class.
	PriorityDefault Priority = iota

	// PriorityBatch yields to latency-sensitive traffic.
	PriorityBatch

	// PrioritySystemImmediate takes precedence over normal traffic.
	// Reserved for low-level tooling.
	PrioritySystemImmediate
)

// Wire option codes recognized by SetOption.
const (
	optionCodeCausalReadRisky         = 20
	optionCodeReadYourWritesDisable   = 51
	optionCodePriorityBatch           = 200
	optionCodePrioritySystemImmediate = 300
)

// txSettings is the mutable option state shared between a transaction and
// its snapshot view.
type txSettings struct {
	mu                    sync.Mutex
	priority              Priority
	causalReadRisky       bool
	readYourWritesDisable bool
}

// TransactionOptions configures a transaction. Views of the same
// transaction share one underlying settings object, so options set through
// either view apply to both.
type TransactionOptions struct {
	s *txSettings
}

// SetPriority sets the scheduling class of the transaction.
func (o TransactionOptions) SetPriority(p Priority) error {
	switch p {
	case PriorityDefault, PriorityBatch, PrioritySystemImmediate:
	default:
		return errors.Newf("unrecognized transaction priority %d", int(p))
	}
	o.s.mu.Lock()
	o.s.priority = p
	o.s.mu.Unlock()
	return nil
}

// Priority returns the transaction's scheduling class.
func (o TransactionOptions) Priority() Priority {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return o.s.priority
}

// SetCausalReadRisky allows the read version to be fetched without
// confirming that the version source is still the authority, trading
// causal consistency for latency.
func (o TransactionOptions) SetCausalReadRisky() {
	o.s.mu.Lock()
	o.s.causalReadRisky = true
	o.s.mu.Unlock()
}

// CausalReadRisky reports whether causal-read-risky is set.
func (o TransactionOptions) CausalReadRisky() bool {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return o.s.causalReadRisky
}

// SetReadYourWritesDisable disables read-your-writes caching of resolved
// keys for the transaction.
func (o TransactionOptions) SetReadYourWritesDisable() {
	o.s.mu.Lock()
	o.s.readYourWritesDisable = true
	o.s.mu.Unlock()
}

// ReadYourWritesDisable reports whether read-your-writes is disabled.
func (o TransactionOptions) ReadYourWritesDisable() bool {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return o.s.readYourWritesDisable
}

// SetOption applies an option by wire code. Unrecognized codes are
// rejected, never silently accepted.
func (o TransactionOptions) SetOption(code int) error {
	switch code {
	case optionCodeCausalReadRisky:
		o.SetCausalReadRisky()
	case optionCodeReadYourWritesDisable:
		o.SetReadYourWritesDisable()
	case optionCodePriorityBatch:
		return o.SetPriority(PriorityBatch)
	case optionCodePrioritySystemImmediate:
		return o.SetPriority(PrioritySystemImmediate)
	default:
		return errors.Newf("unrecognized transaction option code %d", code)
	}
	return nil
}
