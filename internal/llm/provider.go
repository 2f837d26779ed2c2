package llm

import "context"

// Provider defines a generic LLM interface
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Availability mirrors the on-device capability states: a model is either
// ready now, needs to be pulled first, or cannot be used at all.
type Availability string

const (
	Readily       Availability = "readily"
	AfterDownload Availability = "after-download"
	Unavailable   Availability = "no"
)

// Prober is implemented by providers that can report availability before use.
type Prober interface {
	Availability(ctx context.Context) Availability
}

// Probe asks p for its availability; providers without a probe are assumed ready.
func Probe(ctx context.Context, p Provider) Availability {
	if p == nil {
		return Unavailable
	}
	if pr, ok := p.(Prober); ok {
		return pr.Availability(ctx)
	}
	return Readily
}
