package ml

import (
	"context"
	"errors"
	"fmt"

	"ml-wrappers/internal/dataset"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNilModel         = errors.New("ml: model is nil")
	ErrUnsupportedModel = errors.New("ml: unsupported model type")
	ErrNoProbabilities  = errors.New("ml: model cannot produce class probabilities")
	ErrTaskRequired     = errors.New("ml: model task cannot be inferred")
	ErrBadOutput        = errors.New("ml: unexpected model output shape")
)

// probeRows bounds the number of example rows used to validate a wrapped model.
const probeRows = 5

// WrapModel returns model behind the uniform interface. With TaskAuto the task
// is inferred from the model's shape where possible. When examples is not nil
// the wrapped model is evaluated on its first rows and the output shapes are
// checked before returning.
func WrapModel(model any, examples dataset.Dataset, task Task) (Model, error) {
	wrapped, err := wrap(model, task)
	if err != nil {
		return nil, err
	}

	if examples != nil {
		if err := probe(wrapped, examples); err != nil {
			return nil, fmt.Errorf("validate wrapped %T: %w", model, err)
		}
	}

	log.Debug().
		Str("model_type", fmt.Sprintf("%T", model)).
		Str("task", string(TaskOf(wrapped))).
		Msg("Wrapped model")
	return wrapped, nil
}

func wrap(model any, task Task) (Model, error) {
	switch m := model.(type) {
	case nil:
		return nil, ErrNilModel
	case ProbaEstimator:
		if task == TaskRegression {
			return &regressor{predict: withoutContext(m.Predict)}, nil
		}
		return &classifier{predict: withoutContext(m.Predict), proba: withoutContext(m.PredictProba)}, nil
	case Estimator:
		if task == TaskClassification {
			return nil, fmt.Errorf("%w: %T has no PredictProba", ErrNoProbabilities, model)
		}
		return &regressor{predict: withoutContext(m.Predict)}, nil
	case Network:
		forward := withoutContext(m.Forward)
		if cn, ok := m.(ContextNetwork); ok {
			forward = cn.ForwardContext
		}
		switch task {
		case TaskClassification:
			return &classifier{proba: func(ctx context.Context, X *mat.Dense) (*mat.Dense, error) {
				out, err := forward(ctx, X)
				if err != nil {
					return nil, err
				}
				return probabilities(out)
			}}, nil
		case TaskRegression:
			return &regressor{predict: func(ctx context.Context, X *mat.Dense) ([]float64, error) {
				out, err := forward(ctx, X)
				if err != nil {
					return nil, err
				}
				return firstColumn(out)
			}}, nil
		default:
			return nil, fmt.Errorf("%w: %T returns raw outputs", ErrTaskRequired, model)
		}
	case Booster:
		return wrapScores(withoutContext(m.PredictMargin), task), nil
	case RowFunc:
		return wrapScores(rowScores(m), task), nil
	case func([]float64) float64:
		return wrapScores(rowScores(m), task), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedModel, model)
	}
}

func withoutContext[T any](f func(*mat.Dense) (T, error)) func(context.Context, *mat.Dense) (T, error) {
	return func(_ context.Context, X *mat.Dense) (T, error) { return f(X) }
}

// wrapScores treats one score per row as a regression target, or as the
// log-odds of the positive class of a binary classifier.
func wrapScores(scores func(context.Context, *mat.Dense) ([]float64, error), task Task) Model {
	if task != TaskClassification {
		return &regressor{predict: scores}
	}
	return &classifier{proba: func(ctx context.Context, X *mat.Dense) (*mat.Dense, error) {
		s, err := scores(ctx, X)
		if err != nil {
			return nil, err
		}
		if len(s) == 0 {
			return nil, fmt.Errorf("%w: no scores", ErrBadOutput)
		}
		out := mat.NewDense(len(s), 2, nil)
		for i, v := range s {
			p := sigmoid(v)
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
		}
		return out, nil
	}}
}

func rowScores(f func([]float64) float64) func(context.Context, *mat.Dense) ([]float64, error) {
	return func(_ context.Context, X *mat.Dense) ([]float64, error) {
		r, _ := X.Dims()
		out := make([]float64, r)
		for i := 0; i < r; i++ {
			out[i] = f(X.RawRowView(i))
		}
		return out, nil
	}
}

type regressor struct {
	predict func(context.Context, *mat.Dense) ([]float64, error)
}

func (r *regressor) Predict(X *mat.Dense) ([]float64, error) {
	return r.predict(context.Background(), X)
}

func (r *regressor) score(ctx context.Context, X *mat.Dense) ([]float64, *mat.Dense, error) {
	pred, err := r.predict(ctx, X)
	return pred, nil, err
}

type classifier struct {
	// predict is optional; without it the argmax of proba is used.
	predict func(context.Context, *mat.Dense) ([]float64, error)
	proba   func(context.Context, *mat.Dense) (*mat.Dense, error)
}

func (c *classifier) Predict(X *mat.Dense) ([]float64, error) {
	if c.predict != nil {
		return c.predict(context.Background(), X)
	}
	p, err := c.proba(context.Background(), X)
	if err != nil {
		return nil, err
	}
	return argmax(p), nil
}

func (c *classifier) PredictProba(X *mat.Dense) (*mat.Dense, error) {
	return c.proba(context.Background(), X)
}

func (c *classifier) score(ctx context.Context, X *mat.Dense) ([]float64, *mat.Dense, error) {
	p, err := c.proba(ctx, X)
	if err != nil {
		return nil, nil, err
	}
	if c.predict == nil {
		return argmax(p), p, nil
	}
	pred, err := c.predict(ctx, X)
	if err != nil {
		return nil, nil, err
	}
	return pred, p, nil
}

// scorer is implemented by the wrappers returned from WrapModel and Instrument.
type scorer interface {
	score(ctx context.Context, X *mat.Dense) ([]float64, *mat.Dense, error)
}

// Score returns the predictions for X and, for classifiers, the class
// probabilities. Backends that only produce probabilities are queried once and
// the predictions are their argmax. ctx reaches backends implementing
// ContextNetwork.
func Score(ctx context.Context, m Model, X *mat.Dense) ([]float64, *mat.Dense, error) {
	if s, ok := m.(scorer); ok {
		return s.score(ctx, X)
	}
	if c, ok := m.(Classifier); ok {
		p, err := c.PredictProba(X)
		if err != nil {
			return nil, nil, err
		}
		return argmax(p), p, nil
	}
	pred, err := m.Predict(X)
	return pred, nil, err
}

// probe checks that the wrapped model returns one prediction per row and, for
// classifiers, a probability row of at least two classes per sample.
func probe(m Model, examples dataset.Dataset) error {
	X, err := dataset.ToDense(examples)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows > probeRows {
		X = X.Slice(0, probeRows, 0, cols).(*mat.Dense)
		rows = probeRows
	}

	pred, err := m.Predict(X)
	if err != nil {
		return err
	}
	if len(pred) != rows {
		return fmt.Errorf("%w: %d predictions for %d rows", ErrBadOutput, len(pred), rows)
	}

	c, ok := m.(Classifier)
	if !ok {
		return nil
	}
	proba, err := c.PredictProba(X)
	if err != nil {
		return err
	}
	pr, pc := proba.Dims()
	if pr != rows || pc < 2 {
		return fmt.Errorf("%w: probabilities are %dx%d for %d rows", ErrBadOutput, pr, pc, rows)
	}
	return nil
}
