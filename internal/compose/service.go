// Package compose implements the writing operations: each validates its input,
// renders a prompt, routes it through the gateway and shapes the reply.
// Operations with an offline equivalent answer from the fallback generator
// when the gateway fails or is latched into fallback mode.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/writify/writify/internal/ailink/prompt"
	"github.com/writify/writify/internal/fallback"
	"github.com/writify/writify/internal/gateway"
)

// Gateway is the slice of the AI gateway used by the operations.
type Gateway interface {
	Generate(ctx context.Context, prompt string, opts ...gateway.CallOption) (string, error)
	Submit(ctx context.Context, prompt string, opts ...gateway.CallOption) (string, error)
	ActivateFallback()
	FallbackActive() bool
}

// Recorder receives one event per operation call.
// Outcome is one of "ai", "fallback", "invalid" or "error".
type Recorder interface {
	Operation(name, outcome string, elapsed time.Duration)
}

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Field + " is required"
	}
	return e.Message
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field}
	}
	return nil
}

// Option configures a Service.
type Option func(*Service)

// WithLogger enables operation logging.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRecorder wires an operation recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service runs the writing operations against one gateway.
type Service struct {
	gateway  Gateway
	prompts  prompt.Registry
	offline  *fallback.Generator
	logger   *logging.Logger
	recorder Recorder
}

// New returns a Service. A nil generator gets a default one.
func New(gw Gateway, prompts prompt.Registry, offline *fallback.Generator, opts ...Option) *Service {
	if offline == nil {
		offline = fallback.New()
	}
	s := &Service{gateway: gw, prompts: prompts, offline: offline}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fallback returns the offline generator backing the service.
func (s *Service) Fallback() *fallback.Generator {
	return s.offline
}

func (s *Service) render(slug string, vars map[string]string) (string, error) {
	if s.prompts == nil {
		return "", errors.New("prompt registry not configured")
	}
	def, err := s.prompts.Get(slug)
	if err != nil {
		return "", err
	}
	text, err := prompt.Render(def, vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", slug, err)
	}
	return text, nil
}

type dispatchMode int

const (
	direct dispatchMode = iota
	queued
)

// call sends text through the gateway. The gateway's own offline responder is
// skipped: operations either answer from their fallback generator or surface
// the error.
func (s *Service) call(ctx context.Context, mode dispatchMode, text string) (string, error) {
	if s.gateway == nil {
		return "", errors.New("gateway not configured")
	}
	if mode == queued {
		return s.gateway.Submit(ctx, text, gateway.WithoutResponder())
	}
	return s.gateway.Generate(ctx, text, gateway.WithoutResponder())
}

// withFallback renders slug, sends it through the gateway and shapes the
// reply with parse. Any gateway failure sets the fallback latch and offline
// answers instead, including when another caller set the latch while this
// request was retrying. A set latch skips the gateway entirely. Cancellation
// by the caller is returned as is and leaves the latch alone.
func withFallback[T any](ctx context.Context, s *Service, op string, mode dispatchMode, slug string, vars map[string]string, parse func(string) T, offline func() T) (T, error) {
	var zero T
	start := time.Now()
	if s.gateway != nil && s.gateway.FallbackActive() {
		s.record(op, "fallback", start)
		return offline(), nil
	}

	text, err := s.render(slug, vars)
	if err != nil {
		s.record(op, "error", start)
		return zero, err
	}

	reply, err := s.call(ctx, mode, text)
	if err != nil {
		if ctx.Err() != nil {
			s.record(op, "error", start)
			return zero, ctx.Err()
		}
		s.warn("gateway failed, using offline generator", zap.String("operation", op), zap.Error(err))
		if s.gateway != nil {
			s.gateway.ActivateFallback()
		}
		s.record(op, "fallback", start)
		return offline(), nil
	}

	s.record(op, "ai", start)
	return parse(reply), nil
}

// generate renders slug and returns the gateway reply; errors surface.
func (s *Service) generate(ctx context.Context, op, slug string, vars map[string]string) (string, error) {
	start := time.Now()
	reply, err := s.ask(ctx, slug, vars)
	if err != nil {
		s.record(op, "error", start)
		return "", err
	}
	s.record(op, "ai", start)
	return reply, nil
}

// ask is generate without the operation event, for operations made of
// several prompts.
func (s *Service) ask(ctx context.Context, slug string, vars map[string]string) (string, error) {
	text, err := s.render(slug, vars)
	if err != nil {
		return "", err
	}
	reply, err := s.call(ctx, direct, text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (s *Service) invalid(op string, err error) error {
	if s.recorder != nil {
		s.recorder.Operation(op, "invalid", 0)
	}
	s.debug("rejected input", zap.String("operation", op), zap.Error(err))
	return err
}

func (s *Service) record(op, outcome string, start time.Time) {
	if s.recorder != nil {
		s.recorder.Operation(op, outcome, time.Since(start))
	}
}

func (s *Service) debug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

func (s *Service) warn(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}
