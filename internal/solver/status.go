package solver

import "gonum.org/v1/gonum/optimize"

// Status summarizes how a continuous solve terminated.
type Status int

const (
	// Converged means the minimizer met its convergence test.
	Converged Status = iota
	// IterationLimit means more than the allowed major iterations were used.
	IterationLimit
	// EvaluationLimit means more than the allowed objective evaluations were used.
	EvaluationLimit
	// Failed means the minimizer stopped for any other reason, or a point on
	// a lower bound beats the interior solution; the best interior point
	// reached is still returned.
	Failed
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration_limit"
	case EvaluationLimit:
		return "evaluation_limit"
	default:
		return "failed"
	}
}

// MarshalText renders the status name in json and yaml output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

func statusFrom(s optimize.Status) Status {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.StepConvergence, optimize.GradientThreshold, optimize.FunctionThreshold:
		return Converged
	case optimize.IterationLimit:
		return IterationLimit
	case optimize.FunctionEvaluationLimit:
		return EvaluationLimit
	default:
		return Failed
	}
}
