// Package ml normalizes heterogeneous model objects behind a uniform prediction
// interface. WrapModel inspects the shape of a model (estimator with or without
// probabilities, raw-output network, margin booster, plain row function) and
// returns a Model, or a Classifier when the task is classification.
//
// Model backends that live outside the process are reached through
// ProcessModel (an inference command speaking JSON on stdin/stdout) and
// RemoteModel (an HTTP scoring endpoint). ModelServer exposes a wrapped model
// behind HTTP together with the timestamp featurizer.
package ml

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Model is the uniform prediction interface. Predict returns one value per row
// of X: the class index for classifiers, the target for regressors.
type Model interface {
	Predict(X *mat.Dense) ([]float64, error)
}

// Classifier is a Model that also reports class probabilities, one row per
// sample and one column per class. Regression wrappers never implement it.
type Classifier interface {
	Model
	PredictProba(X *mat.Dense) (*mat.Dense, error)
}

// Estimator is a model with a predict method only.
type Estimator interface {
	Predict(X *mat.Dense) ([]float64, error)
}

// ProbaEstimator is an estimator that also reports class probabilities.
type ProbaEstimator interface {
	Estimator
	PredictProba(X *mat.Dense) (*mat.Dense, error)
}

// Network returns raw outputs, one row per sample. For classifiers the
// outputs are either probabilities or logits.
type Network interface {
	Forward(X *mat.Dense) (*mat.Dense, error)
}

// ContextNetwork is a Network whose forward pass can be cancelled through ctx.
// ProcessModel and RemoteModel implement it.
type ContextNetwork interface {
	Network
	ForwardContext(ctx context.Context, X *mat.Dense) (*mat.Dense, error)
}

// Booster returns one raw margin per sample.
type Booster interface {
	PredictMargin(X *mat.Dense) ([]float64, error)
}

// RowFunc scores a single row.
type RowFunc func(row []float64) float64

// Task selects how a model's outputs are interpreted.
type Task string

const (
	TaskAuto           Task = ""
	TaskClassification Task = "classification"
	TaskRegression     Task = "regression"
)

// ParseTask accepts "classification", "regression", "auto" or "".
func ParseTask(s string) (Task, error) {
	switch s {
	case "", "auto":
		return TaskAuto, nil
	case string(TaskClassification):
		return TaskClassification, nil
	case string(TaskRegression):
		return TaskRegression, nil
	default:
		return TaskAuto, fmt.Errorf("unknown model task %q", s)
	}
}

// TaskOf reports the task a wrapped model serves.
func TaskOf(m Model) Task {
	if _, ok := m.(Classifier); ok {
		return TaskClassification
	}
	return TaskRegression
}
