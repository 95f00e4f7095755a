package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "verigate/pkg/domain-errors"
)

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = NewRegistry()
}

func provider(id string, caps ...Capability) Provider {
	return Provider{ID: id, Kind: KindAIModel, Capabilities: caps}
}

func (s *RegistrySuite) TestRegister() {
	s.Run("new provider is reported as new", func() {
		created, err := s.registry.Register(provider("a", "text"))
		s.Require().NoError(err)
		s.True(created)
	})

	s.Run("re-registering updates limits and keeps position", func() {
		_, err := s.registry.Register(provider("b", "text"))
		s.Require().NoError(err)

		updated := provider("a", "text")
		updated.Limits = Limits{RateLimitPerWindow: 5, Window: time.Minute}
		created, err := s.registry.Register(updated)
		s.Require().NoError(err)
		s.False(created)

		limits, err := s.registry.GetLimits("a")
		s.Require().NoError(err)
		s.Equal(5, limits.RateLimitPerWindow)
		all := s.registry.All()
		s.Require().Len(all, 2)
		s.Equal("a", all[0].ID, "re-registration keeps the original position")
		s.Equal("b", all[1].ID)
	})

	s.Run("capabilities are normalized", func() {
		_, err := s.registry.Register(provider("c", " TEXT ", "text", "ocr"))
		s.Require().NoError(err)
		p, ok := s.registry.Get("c")
		s.Require().True(ok)
		s.Equal([]Capability{"text", "ocr"}, p.Capabilities)
	})

	s.Run("missing id is a configuration error", func() {
		_, err := s.registry.Register(provider("", "text"))
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("no capabilities is a configuration error", func() {
		_, err := s.registry.Register(provider("d"))
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("malformed limits are a configuration error", func() {
		p := provider("e", "text")
		p.Limits = Limits{RateLimitPerWindow: 10}
		_, err := s.registry.Register(p)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
		s.False(s.registry.Exists("e"))
	})
}

func (s *RegistrySuite) TestListProviders() {
	for _, p := range []Provider{
		provider("gov-primary", "citizen_lookup"),
		provider("llm-a", "text"),
		provider("gov-secondary", "citizen_lookup", "sanctions"),
	} {
		_, err := s.registry.Register(p)
		s.Require().NoError(err)
	}

	s.Run("returns matching providers in registration order", func() {
		list, err := s.registry.ListProviders("citizen_lookup")
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal("gov-primary", list[0].ID)
		s.Equal("gov-secondary", list[1].ID)
	})

	s.Run("unknown capability is surfaced immediately", func() {
		_, err := s.registry.ListProviders("image")
		s.Require().Error(err)
		s.ErrorIs(err, ErrUnknownCapability)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("returned slices are copies", func() {
		list, err := s.registry.ListProviders("sanctions")
		s.Require().NoError(err)
		list[0].Capabilities[0] = "mutated"
		p, _ := s.registry.Get("gov-secondary")
		s.Equal(Capability("citizen_lookup"), p.Capabilities[0])
	})
}

func (s *RegistrySuite) TestGetLimits() {
	_, err := s.registry.GetLimits("missing")
	s.ErrorIs(err, ErrProviderNotFound)
}

func (s *RegistrySuite) TestParse() {
	s.Run("valid table", func() {
		table, err := Parse([]byte(`
providers:
  - id: citizen-gov
    kind: government_registry
    capabilities: [citizen_lookup]
    limits:
      rate_limit_per_window: 30
      window: 1m
    probe_url: http://citizen.local/health
  - id: llm-a
    kind: ai_model
    capabilities: [text]
    limits:
      max_units_per_request: 4096
`))
		s.Require().NoError(err)
		s.Require().Len(table.Providers, 2)
		s.Equal(time.Minute, table.Providers[0].Limits.Window)
		s.Equal(4096, table.Providers[1].Limits.MaxUnitsPerRequest)
	})

	s.Run("duplicate ids are rejected", func() {
		_, err := Parse([]byte(`
providers:
  - id: a
    capabilities: [text]
  - id: a
    capabilities: [text]
`))
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("unknown fields are rejected", func() {
		_, err := Parse([]byte(`
providers:
  - id: a
    capabilities: [text]
    weight: 3
`))
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("empty table is rejected", func() {
		_, err := Parse([]byte(`providers: []`))
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}
