package canvas

import "sync"

// UnloadGuard collects unsaved-change checks that must be consulted before
// the owning UI exits.
type UnloadGuard struct {
	mu     sync.Mutex
	next   int
	checks map[int]func() bool
}

// NewUnloadGuard returns an empty guard
func NewUnloadGuard() *UnloadGuard {
	return &UnloadGuard{checks: make(map[int]func() bool)}
}

// Install registers check and returns a function that removes it. Calling
// the remover more than once is harmless.
func (g *UnloadGuard) Install(check func() bool) (remove func()) {
	g.mu.Lock()
	id := g.next
	g.next++
	g.checks[id] = check
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.checks, id)
			g.mu.Unlock()
		})
	}
}

// ShouldPrompt reports whether any installed check currently sees unsaved
// changes.
func (g *UnloadGuard) ShouldPrompt() bool {
	g.mu.Lock()
	checks := make([]func() bool, 0, len(g.checks))
	for _, c := range g.checks {
		checks = append(checks, c)
	}
	g.mu.Unlock()

	for _, c := range checks {
		if c() {
			return true
		}
	}
	return false
}

// Installed returns the number of registered checks.
func (g *UnloadGuard) Installed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.checks)
}
