package agent

import "sort"

// Roster is the set of live agents keyed by persona name. It is built once at
// startup and read concurrently afterwards.
type Roster struct {
	byName map[string]*Agent
	names  []string
}

// NewRoster indexes the given agents. Names are unique; later duplicates win.
func NewRoster(agents []*Agent) *Roster {
	r := &Roster{byName: make(map[string]*Agent, len(agents))}
	for _, a := range agents {
		if _, seen := r.byName[a.Persona.Name]; !seen {
			r.names = append(r.names, a.Persona.Name)
		}
		r.byName[a.Persona.Name] = a
	}
	sort.Strings(r.names)
	return r
}

// Get returns the agent with the given persona name.
func (r *Roster) Get(name string) (*Agent, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Tier returns all agents of the given tier in name order.
func (r *Roster) Tier(tier int) []*Agent {
	var out []*Agent
	for _, name := range r.names {
		if a := r.byName[name]; a.Persona.Tier == tier {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the roster size.
func (r *Roster) Len() int { return len(r.byName) }

// All returns every agent in name order.
func (r *Roster) All() []*Agent {
	out := make([]*Agent, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}
