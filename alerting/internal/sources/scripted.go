package sources

import (
	"context"
	"sync"

	"weaponwatch/alerting/internal/models"
)

// ScriptStep is one scripted poll outcome.
type ScriptStep struct {
	Candidates []models.Candidate
	Err        error
}

// Scripted replays a fixed sequence of poll outcomes and then returns
// nothing. It makes loop behavior reproducible.
type Scripted struct {
	name string

	mu        sync.Mutex
	steps     []ScriptStep
	next      int
	committed []models.Candidate
}

func NewScripted(name string, steps ...ScriptStep) *Scripted {
	return &Scripted{name: name, steps: steps}
}

func (s *Scripted) Name() string {
	return s.name
}

func (s *Scripted) Poll(_ context.Context) ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.steps) {
		return nil, nil
	}
	step := s.steps[s.next]
	s.next++
	return step.Candidates, step.Err
}

func (s *Scripted) Commit(c models.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, c)
}

// Polls reports how many scripted steps have been consumed.
func (s *Scripted) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scripted) Committed() []models.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Candidate(nil), s.committed...)
}
