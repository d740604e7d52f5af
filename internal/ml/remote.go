package ml

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// RemoteModel is a Network served over HTTP. Forward POSTs an InferenceRequest
// to the scoring URL and expects an InferenceResponse.
type RemoteModel struct {
	client *resty.Client
	url    string
}

// NewRemoteModel creates a client for the scoring endpoint at url. Transport
// errors and 5xx answers are retried up to retries times.
func NewRemoteModel(url string, timeout time.Duration, retries int) *RemoteModel {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(retries)
	client.SetRetryWaitTime(100 * time.Millisecond)
	client.SetHeader("Content-Type", "application/json")
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return r != nil && r.StatusCode() >= http.StatusInternalServerError
	})

	return &RemoteModel{client: client, url: url}
}

// Forward implements Network.
func (m *RemoteModel) Forward(X *mat.Dense) (*mat.Dense, error) {
	return m.ForwardContext(context.Background(), X)
}

// ForwardContext is Forward bound to ctx.
func (m *RemoteModel) ForwardContext(ctx context.Context, X *mat.Dense) (*mat.Dense, error) {
	req, err := newInferenceRequest(X)
	if err != nil {
		return nil, err
	}

	var out InferenceResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(m.url)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, m.url)
		}
		return nil, fmt.Errorf("remote model request failed: %w", err)
	}
	if resp.IsError() {
		log.Error().
			Str("url", m.url).
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Msg("Remote model returned error status")
		if out.Error != "" {
			return nil, fmt.Errorf("remote model returned %s: %s", resp.Status(), out.Error)
		}
		return nil, fmt.Errorf("remote model returned %s", resp.Status())
	}

	return out.matrix(len(req.Instances))
}
