package engine

import (
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
)

// Kind is the trichotomy of results from applying a change request.
type Kind int

const (
	// KindAccepted means the request was valid and the new state takes
	// effect now.
	KindAccepted Kind = iota
	// KindDeferred means the request was valid and recorded, but its effect
	// lies in the future; the current status is unchanged today.
	KindDeferred
	// KindRejected means a precondition failed. Nothing may be persisted.
	KindRejected
)

// Outcome is the result of Engine.Apply. Exactly one of the three kinds is
// produced per call; a rejection never carries state to persist.
type Outcome struct {
	Kind     Kind
	Deltaker deltaker.Deltaker

	// NyMengde is a participation-rate record to append, when the change
	// introduced one.
	NyMengde *deltaker.Deltakelsesmengde

	// NesteStatus is a derived future status for deferred transitions, for
	// example an accepted end date that has not been reached yet.
	NesteStatus *deltaker.DeltakerStatus

	// Reason explains a rejection, coded for transport mapping.
	Reason error
}

func accepted(d deltaker.Deltaker) Outcome {
	return Outcome{Kind: KindAccepted, Deltaker: d}
}

func deferred(d deltaker.Deltaker) Outcome {
	return Outcome{Kind: KindDeferred, Deltaker: d}
}

func rejected(reason error) Outcome {
	return Outcome{Kind: KindRejected, Reason: reason}
}
