package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jonathan/resume-topics/internal/prompts"
)

// DefaultTimeout bounds a single model call when no timeout is configured
const DefaultTimeout = 90 * time.Second

// Prompt is a template plus the variables substituted into it
type Prompt struct {
	Name     string
	Template string
	Vars     map[string]string
}

// Render substitutes the prompt variables into the template
func (p Prompt) Render() string {
	return prompts.Format(p.Template, p.Vars)
}

// Invoker runs prompts against a Client with a deadline and maps failures onto
// InvocationError and TimeoutError.
type Invoker struct {
	client  Client
	timeout time.Duration
}

// NewInvoker creates an invoker. A non-positive timeout uses DefaultTimeout.
func NewInvoker(client Client, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{client: client, timeout: timeout}
}

// Timeout returns the per-call deadline
func (i *Invoker) Timeout() time.Duration {
	return i.timeout
}

// Invoke renders the prompt, requests JSON, validates it against shape, and decodes it into out.
func (i *Invoker) Invoke(ctx context.Context, p Prompt, shape Shape, tier ModelTier, out any) error {
	raw, err := i.call(ctx, p, func(ctx context.Context, prompt string) (string, error) {
		return i.client.GenerateJSON(ctx, prompt, tier)
	})
	if err != nil {
		return err
	}

	raw = CleanJSONBlock(raw)
	if err := shape.Validate(raw); err != nil {
		return ShapeError(p.Name+" returned a non-conforming result", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return ShapeError(p.Name+" returned unparsable JSON", err)
	}
	return nil
}

// InvokeText renders the prompt and returns the trimmed plain-text answer.
func (i *Invoker) InvokeText(ctx context.Context, p Prompt, tier ModelTier) (string, error) {
	text, err := i.call(ctx, p, func(ctx context.Context, prompt string) (string, error) {
		return i.client.GenerateContent(ctx, prompt, tier)
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(stripCodeFence(strings.TrimSpace(text)))
	if text == "" {
		return "", ShapeError(p.Name+" returned an empty answer", nil)
	}
	return text, nil
}

type callResult struct {
	text string
	err  error
}

// call runs fn under the invoker deadline. The provider call runs on its own goroutine so a
// client that ignores context cancellation still cannot hold the stage past the deadline.
func (i *Invoker) call(ctx context.Context, p Prompt, fn func(context.Context, string) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	prompt := p.Render()
	done := make(chan callResult, 1)
	go func() {
		text, err := fn(callCtx, prompt)
		done <- callResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return "", &TimeoutError{Operation: p.Name, Timeout: i.timeout}
			}
			return "", &InvocationError{Kind: KindProvider, Message: p.Name + " failed", Cause: res.err}
		}
		return res.text, nil
	case <-callCtx.Done():
		if ctx.Err() == nil {
			return "", &TimeoutError{Operation: p.Name, Timeout: i.timeout}
		}
		return "", &InvocationError{Kind: KindProvider, Message: p.Name + " cancelled", Cause: ctx.Err()}
	}
}
