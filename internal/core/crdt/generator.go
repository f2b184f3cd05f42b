package crdt

import "sync"

// Generator hands out ids for one site. Counters strictly increase.
type Generator struct {
	mu      sync.Mutex
	site    string
	counter uint64
}

func NewGenerator(site string) *Generator {
	return &Generator{site: site}
}

// Site returns the site the generator was created for.
func (g *Generator) Site() string {
	return g.site
}

// Next returns a fresh id.
func (g *Generator) Next() OperationID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return OperationID{Seq: g.counter, Site: g.site}
}

// Observe raises the counter to at least id.Seq so the next local id sorts
// ahead of every id already seen.
func (g *Generator) Observe(id OperationID) {
	g.mu.Lock()
	if id.Seq > g.counter {
		g.counter = id.Seq
	}
	g.mu.Unlock()
}

// Counter returns the last counter handed out or observed.
func (g *Generator) Counter() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counter
}
