package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrAssertion is returned when generated text makes its own compliance
// determination.
var ErrAssertion = errors.New("narrative: generated text asserts compliance outcome")

// Request is one generation call.
type Request struct {
	Kind     Kind
	Brief    *Brief
	Audience string
	System   string
	Prompt   string
}

// Generator produces prose for a request. Implementations wrap a language
// model client; none ships in this module.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Guarded validates everything its generator returns.
type Guarded struct {
	gen     Generator
	lenient bool
	logger  *slog.Logger
}

// GuardOption configures a Guarded generator.
type GuardOption func(*Guarded)

// Lenient sanitizes offending text and only rejects what sanitizing cannot fix.
func Lenient() GuardOption { return func(g *Guarded) { g.lenient = true } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GuardOption { return func(g *Guarded) { g.logger = l } }

// Guard wraps gen so that its output is validated.
func Guard(gen Generator, opts ...GuardOption) *Guarded {
	g := &Guarded{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "narrative")
	return g
}

// Generate renders the prompts for req when they are unset, calls the
// wrapped generator and validates its output.
func (g *Guarded) Generate(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		if req.Brief == nil {
			return "", errors.New("narrative: request has neither prompt nor brief")
		}
		prompt, err := UserPrompt(req.Kind, req.Brief, req.Audience)
		if err != nil {
			return "", err
		}
		req.Prompt = prompt
	}
	if req.System == "" {
		req.System = SystemPrompt()
	}

	text, err := g.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("narrative: generate %s: %w", req.Kind, err)
	}

	violations := Validate(text)
	if len(violations) == 0 {
		return text, nil
	}
	if g.lenient {
		sanitized := Sanitize(text)
		if remaining := Validate(sanitized); len(remaining) > 0 {
			violations = remaining
		} else {
			g.logger.WarnContext(ctx, "sanitized generated text", "kind", req.Kind, "violations", len(violations))
			return sanitized, nil
		}
	}
	g.logger.WarnContext(ctx, "rejected generated text", "kind", req.Kind, "violations", violations)
	return "", fmt.Errorf("%w: %s", ErrAssertion, strings.Join(violations, "; "))
}
