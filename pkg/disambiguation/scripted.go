package disambiguation

import (
	"context"
	"sync"

	"ai-queryrefine-be/pkg/resolver"
)

// ScriptedPort answers prompts from a fixed list, then times out
type ScriptedPort struct {
	mu      sync.Mutex
	answers []resolver.Choice
	asked   []resolver.DisambiguationRequest
}

var _ resolver.Disambiguator = (*ScriptedPort)(nil)

func NewScriptedPort(answers ...resolver.Choice) *ScriptedPort {
	return &ScriptedPort{answers: answers}
}

// ScriptFromValues builds a port that selects each value in turn; "" answers none
func ScriptFromValues(values []string) *ScriptedPort {
	answers := make([]resolver.Choice, len(values))
	for i, v := range values {
		if v == "" {
			answers[i] = resolver.Choice{Kind: resolver.ChoiceNone}
		} else {
			answers[i] = resolver.Choice{Kind: resolver.ChoiceSelected, Value: v}
		}
	}
	return NewScriptedPort(answers...)
}

func (p *ScriptedPort) Ask(ctx context.Context, req resolver.DisambiguationRequest) (resolver.Choice, error) {
	if err := ctx.Err(); err != nil {
		return resolver.Choice{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.asked = append(p.asked, req)
	if len(p.answers) == 0 {
		return resolver.Choice{Kind: resolver.ChoiceTimeout}, nil
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	return next, nil
}

// Asked returns the prompts seen so far
func (p *ScriptedPort) Asked() []resolver.DisambiguationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]resolver.DisambiguationRequest, len(p.asked))
	copy(out, p.asked)
	return out
}
