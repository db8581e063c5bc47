package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/boristopalov/gymkit/pkg/core"
)

// TaskConstructor builds one task of a domain
type TaskConstructor func(task string, opts TaskOptions) (core.Env, error)

// MapSuite is a Suite backed by a map of per-domain constructors
type MapSuite struct {
	domains map[string]TaskConstructor
	mu      sync.RWMutex
}

// NewSuite creates an empty suite
func NewSuite() *MapSuite {
	return &MapSuite{
		domains: make(map[string]TaskConstructor),
	}
}

// Register adds a domain
func (s *MapSuite) Register(domain string, c TaskConstructor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.domains[domain]; exists {
		return fmt.Errorf("domain %s is already registered", domain)
	}
	s.domains[domain] = c
	return nil
}

// Domains returns the registered domains in sorted order
func (s *MapSuite) Domains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domains := make([]string, 0, len(s.domains))
	for d := range s.domains {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

func (s *MapSuite) Load(domain, task string, opts TaskOptions) (core.Env, error) {
	s.mu.RLock()
	c, ok := s.domains[domain]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("domain %s: %w", domain, core.ErrUnknownIdentifier)
	}
	return c(task, opts)
}
