// Package fallback orders candidate providers for a request.
package fallback

import (
	"cmp"
	"log/slog"
	"slices"

	"verigate/internal/health"
	"verigate/internal/providers"
)

// Catalog lists providers for a capability in registration order.
type Catalog interface {
	ListProviders(c providers.Capability) ([]providers.Provider, error)
}

// HealthView reads provider health.
type HealthView interface {
	State(providerID string) (health.State, error)
}

// LoadView reads a provider's current in-flight load.
type LoadView interface {
	Load(providerID string) int64
}

// Request describes what the chain must serve.
type Request struct {
	Capability providers.Capability
	Units      int
	// Exclude drops providers already tried for this request.
	Exclude []string
}

// Candidate is one entry of a fallback chain.
type Candidate struct {
	Provider providers.Provider `json:"provider"`
	State    health.State       `json:"state"`
	Load     int64              `json:"load"`
}

// Chain is the ordered candidate list. An empty chain is the manual-queue
// outcome: a valid degraded result, not an error.
type Chain struct {
	Candidates []Candidate
	// Skipped counts capable providers dropped for health, size or exclusion.
	Skipped int
}

// ManualQueue reports whether nothing live can serve the request.
func (c Chain) ManualQueue() bool {
	return len(c.Candidates) == 0
}

// IDs returns the candidate provider IDs in order.
func (c Chain) IDs() []string {
	ids := make([]string, len(c.Candidates))
	for i, cand := range c.Candidates {
		ids[i] = cand.Provider.ID
	}
	return ids
}

// Resolver ranks candidates: Healthy before Degraded, lower load first within
// a state, registration order last. Unavailable providers never appear.
type Resolver struct {
	catalog Catalog
	health  HealthView
	load    LoadView
	logger  *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver builds a resolver. load may be nil, in which case ties fall
// straight through to registration order.
func NewResolver(catalog Catalog, hv HealthView, load LoadView, opts ...Option) *Resolver {
	r := &Resolver{catalog: catalog, health: hv, load: load}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve builds the chain for req. The only error is an unknown capability,
// which is a configuration problem and must not degrade into manual queue.
func (r *Resolver) Resolve(req Request) (Chain, error) {
	all, err := r.catalog.ListProviders(req.Capability)
	if err != nil {
		return Chain{}, err
	}

	var chain Chain
	for _, p := range all {
		if slices.Contains(req.Exclude, p.ID) || !p.Limits.Accepts(req.Units) {
			chain.Skipped++
			continue
		}
		state, err := r.health.State(p.ID)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("provider has no health record, skipping", "provider_id", p.ID, "error", err)
			}
			chain.Skipped++
			continue
		}
		if state == health.Unavailable {
			chain.Skipped++
			continue
		}
		cand := Candidate{Provider: p, State: state}
		if r.load != nil {
			cand.Load = r.load.Load(p.ID)
		}
		chain.Candidates = append(chain.Candidates, cand)
	}

	// Stable sort keeps registration order as the final tie-break.
	slices.SortStableFunc(chain.Candidates, func(a, b Candidate) int {
		if c := cmp.Compare(a.State, b.State); c != 0 {
			return c
		}
		return cmp.Compare(a.Load, b.Load)
	})
	return chain, nil
}
