package orchestrator

import "sync"

// linkSet tracks external links already accepted during one run.
type linkSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newLinkSet() *linkSet {
	return &linkSet{seen: make(map[string]struct{})}
}

// Add returns true if the link was newly added. Empty links are always accepted.
func (s *linkSet) Add(link string) bool {
	if link == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seen[link]; exists {
		return false
	}
	s.seen[link] = struct{}{}
	return true
}
