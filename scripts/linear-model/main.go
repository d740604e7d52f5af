// Command linear-model is a minimal inference process for the process model
// backend. It reads an InferenceRequest from stdin and writes one output row
// per instance: the weighted sum of the features, or the two-class softmax
// logits [0, score] with -classes 2.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ml-wrappers/internal/ml"
)

func main() {
	var (
		weights = flag.String("weights", "", "Comma-separated feature weights (default: all ones)")
		bias    = flag.Float64("bias", 0, "Intercept")
		classes = flag.Int("classes", 1, "1 for a single score, 2 for two-class logits")
	)
	flag.Parse()

	w, err := parseWeights(*weights)
	if err != nil {
		fail(err)
	}

	var req ml.InferenceRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fail(fmt.Errorf("invalid request: %w", err))
	}

	resp := ml.InferenceResponse{Outputs: make([][]float64, len(req.Instances))}
	for i, row := range req.Instances {
		if w != nil && len(w) != len(row) {
			fail(fmt.Errorf("instance %d has %d features, expected %d", i, len(row), len(w)))
		}
		score := *bias
		for j, v := range row {
			if w == nil {
				score += v
			} else {
				score += w[j] * v
			}
		}
		if *classes == 2 {
			resp.Outputs[i] = []float64{0, score}
		} else {
			resp.Outputs[i] = []float64{score}
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
		os.Exit(1)
	}
}

func parseWeights(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// fail reports err in the response format and exits non-zero.
func fail(err error) {
	_ = json.NewEncoder(os.Stdout).Encode(ml.InferenceResponse{Error: err.Error()})
	os.Exit(1)
}
