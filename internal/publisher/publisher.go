package publisher

import (
	"context"
	"fmt"
)

// Outcome is the normalized result of one publishing attempt. Retryable
// tells the dispatcher whether a failure is worth re-attempting: transport
// and HTTP errors are, missing credentials and unsupported platforms are not
// until an operator intervenes.
type Outcome struct {
	Success      bool
	ExternalID   string
	ExternalURL  string
	RawResponse  string
	ErrorMessage string
	Retryable    bool
}

func Failure(retryable bool, format string, args ...any) Outcome {
	return Outcome{
		ErrorMessage: fmt.Sprintf(format, args...),
		Retryable:    retryable,
	}
}

type Publisher interface {
	Publish(ctx context.Context, content string) Outcome
}

// Registry maps platform identifiers to publishers. Supporting a new
// platform is a Register call, not a new switch branch.
type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry() *Registry {
	return &Registry{publishers: make(map[string]Publisher)}
}

func (r *Registry) Register(platform string, p Publisher) {
	r.publishers[platform] = p
}

func (r *Registry) Lookup(platform string) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

func (r *Registry) Platforms() []string {
	platforms := make([]string, 0, len(r.publishers))
	for platform := range r.publishers {
		platforms = append(platforms, platform)
	}
	return platforms
}
