package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// ErrTimeout is returned when a model backend does not answer in time.
var ErrTimeout = errors.New("ml: model backend timed out")

// InferenceRequest is the payload sent to process and remote backends.
type InferenceRequest struct {
	Instances [][]float64 `json:"instances"`
}

// InferenceResponse is the payload expected back: one output row per instance.
type InferenceResponse struct {
	Outputs [][]float64 `json:"outputs"`
	Error   string      `json:"error,omitempty"`
}

// ProcessModel is a Network served by an external inference command. Each
// Forward call runs the command once, writes an InferenceRequest to its stdin
// and reads an InferenceResponse from its stdout.
type ProcessModel struct {
	command string
	args    []string
	timeout time.Duration
}

// NewProcessModel resolves command on PATH. A non-positive timeout defaults to 5s.
func NewProcessModel(command string, args []string, timeout time.Duration) (*ProcessModel, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("inference command %q not found: %w", command, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProcessModel{command: path, args: args, timeout: timeout}, nil
}

// Forward implements Network.
func (p *ProcessModel) Forward(X *mat.Dense) (*mat.Dense, error) {
	return p.ForwardContext(context.Background(), X)
}

// ForwardContext runs the inference command with the model timeout applied to ctx.
func (p *ProcessModel) ForwardContext(ctx context.Context, X *mat.Dense) (*mat.Dense, error) {
	req, err := newInferenceRequest(X)
	if err != nil {
		return nil, err
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(reqJSON)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("command", p.command).
			Strs("args", p.args).
			Str("stderr", stderr.String()).
			Int("rows", len(req.Instances)).
			Dur("timeout", p.timeout).
			Bool("context_cancelled", ctx.Err() != nil).
			Msg("Inference process failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, p.timeout)
		}
		if msg := responseError(stdout.Bytes()); msg != "" {
			return nil, fmt.Errorf("inference process error: %s", msg)
		}
		return nil, fmt.Errorf("inference process failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp InferenceResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		log.Error().
			Err(err).
			Str("stdout", stdout.String()).
			Str("stderr", stderr.String()).
			Msg("Failed to parse inference response")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.matrix(len(req.Instances))
}

func responseError(stdout []byte) string {
	var resp InferenceResponse
	if json.Unmarshal(stdout, &resp) != nil {
		return ""
	}
	return resp.Error
}

func newInferenceRequest(X *mat.Dense) (InferenceRequest, error) {
	r, c := X.Dims()
	instances := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return InferenceRequest{}, fmt.Errorf("row %d feature %d is not finite: %v", i, j, v)
			}
			row[j] = v
		}
		instances[i] = row
	}
	return InferenceRequest{Instances: instances}, nil
}

// matrix validates the response against the number of rows sent.
func (r InferenceResponse) matrix(rows int) (*mat.Dense, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("inference error: %s", r.Error)
	}
	if len(r.Outputs) != rows || rows == 0 {
		return nil, fmt.Errorf("%w: %d output rows for %d instances", ErrBadOutput, len(r.Outputs), rows)
	}
	width := len(r.Outputs[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: empty output row", ErrBadOutput)
	}
	data := make([]float64, 0, rows*width)
	for i, row := range r.Outputs {
		if len(row) != width {
			return nil, fmt.Errorf("%w: output row %d has %d values, expected %d", ErrBadOutput, i, len(row), width)
		}
		data = append(data, row...)
	}
	return mat.NewDense(rows, width, data), nil
}
