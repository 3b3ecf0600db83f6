package session

import (
	"github.com/roach88/rete/internal/ir"
	"github.com/roach88/rete/internal/rete"
)

// Fire fires activations until the agenda is exhausted or an action calls
// Halt, and returns the number of rules fired.
func (s *Session) Fire() (int, error) {
	return s.FireN(0)
}

// FireN fires at most limit activations. limit <= 0 means no limit.
func (s *Session) FireN(limit int) (int, error) {
	s.halted = false
	quota := newCycleQuota(s.maxCycles)
	fired := 0

	for !s.halted && (limit <= 0 || fired < limit) {
		// Only an activation that will actually fire counts as a cycle.
		ready, err := s.agenda.Ready()
		if err != nil {
			return fired, err
		}
		if !ready {
			break
		}
		if err := quota.check(s.id); err != nil {
			s.logger.Error("cycle limit exceeded", "fired", fired, "error", err)
			return fired, err
		}
		act, err := s.agenda.Pop()
		if err != nil {
			return fired, err
		}
		if act == nil {
			break
		}
		if err := s.fire(act); err != nil {
			return fired, err
		}
		fired++
	}

	s.logger.Info("fire completed", "fired", fired, "halted", s.halted, "pending", s.agenda.Len())
	return fired, nil
}

// Halt stops the current Fire call once the firing rule's actions finish.
// Queued activations stay on the agenda.
func (s *Session) Halt() {
	s.halted = true
}

func (s *Session) fire(act *rete.Activation) error {
	rule := act.Rule()
	def := rule.Definition()
	s.logger.Debug("rule firing", "rule", rule.Name(), "priority", act.Priority, "seq", act.Seq)
	s.events.Publish(&rete.Event{Kind: rete.EventRuleFiring, Activation: act})

	ctx := &actionContext{session: s, act: act}
	for _, action := range def.Actions {
		args, err := resolveArgs(act, action)
		if err == nil {
			err = action.Invoke(ctx, args)
		}
		if err == nil {
			continue
		}
		failure := &rete.ExpressionError{
			Kind:       rete.ExprAction,
			Expression: action.Text,
			Rule:       rule.Name(),
			Facts:      act.Objects(),
			Err:        err,
		}
		if raised := s.events.RaiseFailure(rete.EventActionFailed, act, failure); raised != nil {
			s.logger.Error("action failed", "rule", rule.Name(), "action", action.Text, "error", err)
			return raised
		}
	}

	s.events.Publish(&rete.Event{Kind: rete.EventRuleFired, Activation: act})
	return nil
}

// resolveArgs binds each action parameter to a fact of the activation:
// by declaration name, or by type when the parameter is unnamed.
func resolveArgs(act *rete.Activation, action ir.Action) ([]any, error) {
	if len(action.Params) == 0 {
		return nil, nil
	}
	args := make([]any, len(action.Params))
	for i, p := range action.Params {
		if p.Name != "" {
			v, ok := act.Get(p.Name)
			if !ok {
				return nil, &ActionArgumentError{Rule: act.Rule().Name(), Action: action.Text, Param: i, Name: p.Name, Type: p.Type}
			}
			args[i] = v
			continue
		}

		matches := 0
		for _, f := range act.Facts() {
			if f.Type().AssignableTo(p.Type) {
				args[i] = f.Object()
				matches++
			}
		}
		if matches != 1 {
			return nil, &ActionArgumentError{Rule: act.Rule().Name(), Action: action.Text, Param: i, Type: p.Type, Matches: matches}
		}
	}
	return args, nil
}

// actionContext is the ir.Context handed to the actions of one firing.
type actionContext struct {
	session *Session
	act     *rete.Activation
}

var _ ir.Context = (*actionContext)(nil)

func (c *actionContext) Insert(fact any) error  { return c.session.Insert(fact) }
func (c *actionContext) Update(fact any) error  { return c.session.Update(fact) }
func (c *actionContext) Retract(fact any) error { return c.session.Retract(fact) }
func (c *actionContext) Halt()                  { c.session.Halt() }

func (c *actionContext) Rule() *ir.Rule {
	return c.act.Rule().Definition()
}
