// Package oracle asks an external chat-completions model to confirm a
// candidate decision. The oracle is advisory only: every failure maps to
// a typed FailureError callers treat as "no confirmation this tick".
package oracle

import (
	"context"
	"fmt"
)

type FailureKind string

const (
	KindTransport FailureKind = "transport"
	KindStatus    FailureKind = "status"
	KindParse     FailureKind = "parse"
)

// FailureError tags an oracle failure with its kind so callers can log
// and skip without inspecting error strings.
type FailureError struct {
	Kind FailureKind
	Err  error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("oracle %s failure: %v", e.Kind, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// Prompt carries the system framing and the decision to confirm.
type Prompt struct {
	System string
	User   string
}

// Confirmation is the oracle's verdict. Action echoes the model's call
// (confirm, reject, or a free-form alternative), Confidence is 0..1.
type Confirmation struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (Confirmation, error)
}
