package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	logx "github.com/docsmith-core/server/pkg/logger"
)

// Fallback invokes an ordered list of chat-model backends, advancing past
// recoverable failures (rate limit, unavailability, internal error, timeout)
// and aborting immediately on anything else, safety blocks included.
//
// It implements model.ToolCallingChatModel so it can stand in anywhere a
// single backend would. The backend list is configured once and is safe to
// share across concurrent requests.
type Fallback struct {
	names    []string
	backends []model.ToolCallingChatModel
}

var _ model.ToolCallingChatModel = (*Fallback)(nil)

// NewFallback builds an invoker over backends tried in order. names must be
// parallel to backends and non-empty.
func NewFallback(names []string, backends []model.ToolCallingChatModel) (*Fallback, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("fallback backend list is empty")
	}
	if len(names) != len(backends) {
		return nil, fmt.Errorf("fallback names/backends length mismatch: %d vs %d", len(names), len(backends))
	}
	return &Fallback{names: names, backends: backends}, nil
}

// WithTools binds the same tool schemas to every backend in the list, so a
// mid-fallback backend switch never changes the available tools. The receiver
// is unchanged; a new invoker is returned.
func (f *Fallback) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound := make([]model.ToolCallingChatModel, 0, len(f.backends))
	for i, backend := range f.backends {
		b, err := backend.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools to %s: %w", f.names[i], err)
		}
		bound = append(bound, b)
	}
	return &Fallback{names: f.names, backends: bound}, nil
}

// Generate tries each backend in order and returns the first successful
// response. A safety-blocked response or a non-recoverable error aborts the
// chain; if every backend fails recoverably, the last recoverable error is
// returned.
func (f *Fallback) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var lastErr error

	for i, backend := range f.backends {
		name := f.names[i]
		logx.Debug().Str("model", name).Int("attempt", i+1).Msg("Invoking LLM backend")

		out, err := backend.Generate(ctx, input, opts...)
		if err == nil {
			if safetyBlocked(out) {
				logx.Warn().Str("model", name).Msg("Response blocked by safety filters")
				return nil, ErrSafetyBlocked
			}
			logx.Debug().Str("model", name).Msg("LLM backend succeeded")
			return out, nil
		}

		if IsRecoverable(err) {
			logx.Warn().Str("model", name).Err(err).Msg("Recoverable LLM failure, trying next backend")
			lastErr = err
			continue
		}

		logx.Error().Str("model", name).Err(err).Msg("Non-recoverable LLM failure, aborting")
		return nil, err
	}

	return nil, fmt.Errorf("all fallback models failed %v: %w", f.names, lastErr)
}

// Stream tries each backend in order until one opens a stream. Errors that
// occur after a stream has been handed out are the caller's to observe.
func (f *Fallback) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var lastErr error

	for i, backend := range f.backends {
		name := f.names[i]
		logx.Debug().Str("model", name).Int("attempt", i+1).Msg("Opening LLM stream")

		sr, err := backend.Stream(ctx, input, opts...)
		if err == nil {
			return sr, nil
		}

		if IsRecoverable(err) {
			logx.Warn().Str("model", name).Err(err).Msg("Recoverable LLM stream failure, trying next backend")
			lastErr = err
			continue
		}

		logx.Error().Str("model", name).Err(err).Msg("Non-recoverable LLM stream failure, aborting")
		return nil, err
	}

	return nil, fmt.Errorf("all fallback models failed %v: %w", f.names, lastErr)
}
