package providers

import (
	"slices"
	"time"

	dErrors "verigate/pkg/domain-errors"
)

// Kind is informational only. Routing treats every provider the same way and
// leaves protocol differences to the dispatcher.
type Kind string

const (
	KindAIModel            Kind = "ai_model"
	KindGovernmentRegistry Kind = "government_registry"
)

// Capability tags the kind of request a provider can serve, e.g. "text" or
// "citizen_lookup".
type Capability string

// Limits are the throughput limits published for a provider.
type Limits struct {
	// MaxUnitsPerRequest caps request size. Zero means unlimited.
	MaxUnitsPerRequest int `yaml:"max_units_per_request" json:"max_units_per_request"`
	// RateLimitPerWindow caps admissions per Window. Zero means unlimited.
	RateLimitPerWindow int           `yaml:"rate_limit_per_window" json:"rate_limit_per_window"`
	Window             time.Duration `yaml:"window" json:"window"`
}

// Validate rejects malformed limits. Failures are configuration errors.
func (l Limits) Validate() error {
	if l.MaxUnitsPerRequest < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "max_units_per_request cannot be negative")
	}
	if l.RateLimitPerWindow < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "rate_limit_per_window cannot be negative")
	}
	if l.RateLimitPerWindow > 0 && l.Window <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "rate limited providers need a positive window")
	}
	return nil
}

// Accepts reports whether a request of the given size fits the limits.
func (l Limits) Accepts(units int) bool {
	return l.MaxUnitsPerRequest == 0 || units <= l.MaxUnitsPerRequest
}

// Provider is a capability endpoint. Health is tracked separately by the
// health monitor under the same ID.
type Provider struct {
	ID           string       `yaml:"id" json:"id"`
	Kind         Kind         `yaml:"kind" json:"kind"`
	Capabilities []Capability `yaml:"capabilities" json:"capabilities"`
	Limits       Limits       `yaml:"limits" json:"limits"`

	// Transport hints consumed by the bundled HTTP dispatcher only.
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`
	ProbeURL string `yaml:"probe_url" json:"probe_url,omitempty"`
}

// Supports reports whether the provider advertises capability c.
func (p Provider) Supports(c Capability) bool {
	return slices.Contains(p.Capabilities, c)
}

func (p Provider) clone() Provider {
	p.Capabilities = slices.Clone(p.Capabilities)
	return p
}

// Validate checks the provider's identity, capabilities and limits.
func (p Provider) Validate() error {
	if p.ID == "" {
		return dErrors.New(dErrors.CodeConfiguration, "provider id is required")
	}
	if len(p.Capabilities) == 0 {
		return dErrors.Newf(dErrors.CodeConfiguration, "provider %s advertises no capabilities", p.ID)
	}
	for _, c := range p.Capabilities {
		if c == "" {
			return dErrors.Newf(dErrors.CodeConfiguration, "provider %s has an empty capability tag", p.ID)
		}
	}
	if err := p.Limits.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "provider "+p.ID+" has invalid limits")
	}
	return nil
}
