package session

import (
	"fmt"

	"github.com/roach88/rete/internal/rete"
)

// Insert adds obj to working memory and propagates it.
// Returns a duplicate-fact error if obj is already present.
func (s *Session) Insert(obj any) error {
	f, err := s.ctx.WM.NewFact(obj)
	if err != nil {
		return err
	}
	return s.insert(f)
}

// InsertAll inserts every object. All objects are checked first; if any is
// a duplicate, of working memory or within objs, nothing is inserted.
func (s *Session) InsertAll(objs ...any) error {
	facts := make([]*rete.Fact, len(objs))
	seen := make(map[any]struct{}, len(objs))
	for i, obj := range objs {
		f, err := s.ctx.WM.NewFact(obj)
		if err != nil {
			return err
		}
		id, _ := rete.IdentityOf(obj)
		if _, dup := seen[id]; dup {
			return rete.NewDuplicateFactError(obj)
		}
		seen[id] = struct{}{}
		facts[i] = f
	}
	for _, f := range facts {
		if err := s.insert(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) insert(f *rete.Fact) error {
	s.events.Publish(&rete.Event{Kind: rete.EventFactInserting, Fact: f, Object: f.Object()})
	if err := s.ctx.WM.AddFact(f); err != nil {
		return err
	}
	if err := s.net.PropagateAssert(s.ctx, f); err != nil {
		return fmt.Errorf("insert %s: %w", f, err)
	}
	s.logger.Debug("fact inserted", "fact", f.String())
	s.events.Publish(&rete.Event{Kind: rete.EventFactInserted, Fact: f, Object: f.Object()})
	return nil
}

// Update replaces the object with obj's identity and propagates the
// change. Returns an unknown-fact error if it is not present.
func (s *Session) Update(obj any) error {
	if !s.ctx.WM.Contains(obj) {
		return s.unknown(obj)
	}
	return s.update(obj)
}

// UpdateAll updates every object, failing before any update if one of
// them is unknown.
func (s *Session) UpdateAll(objs ...any) error {
	for _, obj := range objs {
		if !s.ctx.WM.Contains(obj) {
			return s.unknown(obj)
		}
	}
	for _, obj := range objs {
		if err := s.update(obj); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) update(obj any) error {
	s.events.Publish(&rete.Event{Kind: rete.EventFactUpdating, Object: obj})
	f, err := s.ctx.WM.UpdateFact(obj)
	if err != nil {
		return err
	}
	if err := s.net.PropagateUpdate(s.ctx, f); err != nil {
		return fmt.Errorf("update %s: %w", f, err)
	}
	s.logger.Debug("fact updated", "fact", f.String())
	s.events.Publish(&rete.Event{Kind: rete.EventFactUpdated, Fact: f, Object: obj})
	return nil
}

// Retract removes obj from working memory, retracting every tuple and
// activation built on it. Returns an unknown-fact error if it is not
// present.
func (s *Session) Retract(obj any) error {
	f, err := s.ctx.WM.GetFact(obj)
	if err != nil {
		return err
	}
	return s.retract(f)
}

// RetractAll retracts every object, failing before any retraction if one
// of them is unknown.
func (s *Session) RetractAll(objs ...any) error {
	facts := make([]*rete.Fact, len(objs))
	for i, obj := range objs {
		f, err := s.ctx.WM.GetFact(obj)
		if err != nil {
			return err
		}
		facts[i] = f
	}
	for _, f := range facts {
		if err := s.retract(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) retract(f *rete.Fact) error {
	s.events.Publish(&rete.Event{Kind: rete.EventFactRetracting, Fact: f, Object: f.Object()})
	if err := s.net.PropagateRetract(s.ctx, f); err != nil {
		return fmt.Errorf("retract %s: %w", f, err)
	}
	s.ctx.WM.RemoveFact(f)
	s.logger.Debug("fact retracted", "fact", f.String())
	s.events.Publish(&rete.Event{Kind: rete.EventFactRetracted, Fact: f, Object: f.Object()})
	return nil
}

// unknown returns the working-memory error for obj, which is an
// unsupported-fact error for objects that have no identity at all.
func (s *Session) unknown(obj any) error {
	if _, err := rete.IdentityOf(obj); err != nil {
		return err
	}
	return rete.NewUnknownFactError(obj)
}
