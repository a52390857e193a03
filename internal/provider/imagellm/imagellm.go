// Package imagellm is the image-generation operation of the provider layer:
// generate_image(prompt, options) -> PNG bytes. Retries transient failures
// with exponential backoff (3 attempts, total wait capped at 30s) and
// verifies the PNG magic bytes before returning.
package imagellm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// pngMagic is the fixed 8-byte PNG file signature.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ImageClient is the minimal surface needed from an OpenAI-compatible image
// backend, mirroring the Client interface pattern used for chat.
type ImageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// Options configures one image generation.
type Options struct {
	// Size is the provider size string, e.g. "1024x1024". Empty selects the
	// provider default.
	Size string
	// AspectRatio is advisory and folded into the prompt when the backend has
	// no native aspect parameter.
	AspectRatio string
	Timeout     time.Duration
}

// Provider implements the image-generate operation over an OpenAI-compatible
// images endpoint.
type Provider struct {
	Client ImageClient
	Model  string
	// Configured reports whether credentials were present at construction.
	Configured bool
}

func (p *Provider) Name() string { return "imagellm" }

func (p *Provider) IsConfigured() bool { return p.Configured && p.Client != nil }

// CostPerThousand is a reporting-only estimate, in USD per thousand calls.
func (p *Provider) CostPerThousand() float64 { return 40.0 }

// GenerateImage produces a single PNG byte stream. Transient failures (429,
// 503, timeouts) are retried up to 3 attempts with exponential backoff and a
// total wait budget of 30s; non-retryable errors surface immediately.
func (p *Provider) GenerateImage(ctx context.Context, prompt string, opts Options) ([]byte, error) {
	if !p.IsConfigured() {
		return nil, jobmodel.New(jobmodel.KindProviderUnavailable, "imagellm: not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, jobmodel.New(jobmodel.KindInputInvalid, "imagellm: empty prompt")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	if opts.AspectRatio != "" {
		prompt = prompt + " (aspect ratio " + opts.AspectRatio + ")"
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 15 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	bo.Reset()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				break
			}
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, jobmodel.Wrap(jobmodel.KindCancelled, "imagellm: cancelled", ctx.Err())
			case <-t.C:
			}
		}

		png, err := p.once(ctx, prompt, opts)
		if err == nil {
			return png, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("imagellm: retrying after transient error")
	}
	return nil, lastErr
}

func (p *Provider) once(ctx context.Context, prompt string, opts Options) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req := openai.ImageRequest{
		Model:          p.Model,
		Prompt:         prompt,
		N:              1,
		Size:           opts.Size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	resp, err := p.Client.CreateImage(callCtx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, jobmodel.New(jobmodel.KindInvalidOutput, "imagellm: response carried no image data")
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindInvalidOutput, "imagellm: image payload is not valid base64", err)
	}
	if !bytes.HasPrefix(raw, pngMagic) {
		return nil, jobmodel.New(jobmodel.KindInvalidOutput, "imagellm: payload is not a PNG stream")
	}
	return raw, nil
}

// classify maps image-endpoint errors into the pipeline taxonomy. 429 is
// quota; 5xx and timeouts are transient; auth and prompt rejections are not
// retryable.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return jobmodel.Wrap(jobmodel.KindQuotaExhausted, "imagellm: rate limited", err)
		case 500, 502, 503, 504:
			return jobmodel.Wrap(jobmodel.KindProviderUnavailable, "imagellm: upstream error", err)
		default:
			return jobmodel.Wrap(jobmodel.KindInputInvalid, "imagellm: request rejected", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return jobmodel.Wrap(jobmodel.KindTimeout, "imagellm: call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return jobmodel.Wrap(jobmodel.KindCancelled, "imagellm: cancelled", err)
	}
	return jobmodel.Wrap(jobmodel.KindProviderUnavailable, "imagellm: call failed", err)
}

// retryable reports whether the retry loop should try again.
func retryable(err error) bool {
	switch jobmodel.KindOf(err) {
	case jobmodel.KindQuotaExhausted, jobmodel.KindProviderUnavailable, jobmodel.KindTimeout:
		return true
	}
	return false
}
