package orchestrator

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultMaxIterations = 12
	DefaultMaxRows       = 100
)

// Class is the router's reading of one retrieval
type Class string

const (
	ClassUsable         Class = "usable"
	ClassEmpty          Class = "empty"
	ClassOversized      Class = "oversized"
	ClassExecutionError Class = "error"
)

// Outcome is a classified retrieval together with the message recorded in the history
type Outcome struct {
	Class   Class
	Message string
	Rows    []Row
}

// Decision is where the loop goes after a retrieval
type Decision struct {
	Next Stage
	// Failure and Apology are set only when the loop gives up
	Failure FailureKind
	Apology string
}

type Router struct {
	MaxIterations int
	MaxRows       int
}

func NewRouter(maxIterations, maxRows int) Router {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return Router{MaxIterations: maxIterations, MaxRows: maxRows}
}

// Classify turns raw execution output into an Outcome
func (r Router) Classify(rows []Row, execErr error) Outcome {
	switch {
	case execErr != nil:
		return Outcome{Class: ClassExecutionError, Message: SignalExecutionError(execErr)}
	case len(rows) == 0:
		return Outcome{Class: ClassEmpty, Message: SignalEmpty}
	case len(rows) > r.MaxRows:
		return Outcome{Class: ClassOversized, Message: SignalOversized}
	}

	encoded, err := json.Marshal(rows)
	if err != nil {
		return Outcome{Class: ClassExecutionError, Message: SignalExecutionError(fmt.Errorf("encode result: %w", err))}
	}
	return Outcome{Class: ClassUsable, Message: string(encoded), Rows: rows}
}

// Route picks the next stage. iteration is the number of generate passes run so far.
func (r Router) Route(iteration int, outcome Outcome) Decision {
	if kind, retry := FailureForSignal(outcome.Message); retry {
		if iteration > r.MaxIterations {
			return Decision{Next: StageEnd, Failure: kind, Apology: Apology(kind)}
		}
		return Decision{Next: StageGenerate}
	}

	if IsTabular(outcome.Rows) {
		return Decision{Next: StagePrioritize}
	}
	return Decision{Next: StagePlainAnswer}
}

// IsTabular is true for at least two rows whose first row has at least three columns
func IsTabular(rows []Row) bool {
	return len(rows) >= 2 && len(rows[0]) >= 3
}
