// Package flow routes one guest message to the keyword rule it names, or to
// the catch-all when none matches.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"concierge/pkg/completion"
)

// CatchAllName is the flow name reported for unmatched messages.
const CatchAllName = "concierge"

// Message is one inbound guest message as the flows see it.
type Message struct {
	Text       string
	Normalized string
	Channel    string
	ChatID     string
	SenderID   string
}

// Reply is the text to send back. Completion is set when the reply came
// from the LLM, including fallbacks.
type Reply struct {
	Text       string
	Flow       string
	Completion *completion.Result
}

// Responder produces the reply for one matched message.
type Responder func(ctx context.Context, msg Message) (Reply, error)

// Rule binds a set of exact triggers to a responder.
type Rule struct {
	Name     string
	Triggers []string
	Respond  Responder
}

type compiledRule struct {
	rule     Rule
	triggers map[string]struct{}
}

// Dispatcher matches messages against rules in priority order. It holds no
// per-conversation state and is safe for concurrent use.
type Dispatcher struct {
	rules    []compiledRule
	catchAll Rule
}

// NewDispatcher validates and compiles rules. Triggers are normalized once
// here; a trigger may belong to only one rule.
func NewDispatcher(rules []Rule, catchAll Responder) (*Dispatcher, error) {
	if catchAll == nil {
		return nil, errors.New("catch-all responder is required")
	}

	owners := make(map[string]string)
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return nil, errors.New("rule name is required")
		}
		if name == CatchAllName {
			return nil, fmt.Errorf("rule name %q is reserved", name)
		}
		if rule.Respond == nil {
			return nil, fmt.Errorf("rule %q: responder is required", name)
		}

		triggers := lo.Compact(lo.Map(rule.Triggers, func(trigger string, _ int) string {
			return Normalize(trigger)
		}))
		if len(triggers) == 0 {
			return nil, fmt.Errorf("rule %q: at least one trigger is required", name)
		}
		for _, trigger := range triggers {
			if owner, ok := owners[trigger]; ok && owner != name {
				return nil, fmt.Errorf("trigger %q is used by rules %q and %q", trigger, owner, name)
			}
			owners[trigger] = name
		}

		rule.Name = name
		compiled = append(compiled, compiledRule{rule: rule, triggers: lo.Keyify(triggers)})
	}

	return &Dispatcher{
		rules:    compiled,
		catchAll: Rule{Name: CatchAllName, Respond: catchAll},
	}, nil
}

// Match returns the first rule with a trigger equal to the normalized text,
// or the catch-all. Matching is exact: "menu del dia" never selects "menu".
func (d *Dispatcher) Match(text string) Rule {
	return d.match(Normalize(text))
}

func (d *Dispatcher) match(normalized string) Rule {
	if normalized == "" {
		return d.catchAll
	}

	for _, compiled := range d.rules {
		if _, ok := compiled.triggers[normalized]; ok {
			return compiled.rule
		}
	}

	return d.catchAll
}

// Handle runs the matched rule for one message.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (Reply, error) {
	msg.Normalized = Normalize(msg.Text)
	rule := d.match(msg.Normalized)

	reply, err := rule.Respond(ctx, msg)
	if err != nil {
		return Reply{Flow: rule.Name}, fmt.Errorf("flow %s: %w", rule.Name, err)
	}
	if reply.Flow == "" {
		reply.Flow = rule.Name
	}

	return reply, nil
}

// Rules lists the keyword rules in priority order, without the catch-all.
func (d *Dispatcher) Rules() []Rule {
	return lo.Map(d.rules, func(compiled compiledRule, _ int) Rule {
		return compiled.rule
	})
}
