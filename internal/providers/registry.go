package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/magicapi/ai-gateway/internal/sigv4"
)

// Registry holds the strategy for every supported provider.
type Registry struct {
	strategies map[ID]Strategy
}

// RegistryOptions tunes provider construction.
type RegistryOptions struct {
	// BedrockUseInvoke routes Bedrock to the legacy InvokeModel endpoints.
	BedrockUseInvoke bool
	// BaseURLOverrides redirects providers to alternate endpoints, for
	// private gateways and tests.
	BaseURLOverrides map[ID]string
}

type baseURLOverrider interface {
	overrideBaseURL(string)
}

// NewRegistry builds the full strategy set. The signer is shared by the
// Bedrock strategy; all other providers ignore it.
func NewRegistry(signer *sigv4.Signer, opts RegistryOptions) *Registry {
	strategies := []Strategy{
		newOpenAI(),
		newAnthropic(),
		newGROQ(),
		newFireworks(),
		newTogether(),
		newBedrock(signer, opts.BedrockUseInvoke),
	}

	r := &Registry{
		strategies: lo.SliceToMap(strategies, func(s Strategy) (ID, Strategy) {
			return s.Name(), s
		}),
	}
	for id, u := range opts.BaseURLOverrides {
		if s, ok := r.strategies[id].(baseURLOverrider); ok {
			s.overrideBaseURL(u)
		}
	}
	return r
}

// Lookup resolves an x-provider header value, case-insensitively.
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[ID(strings.ToLower(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return s, nil
}

// IDs returns the registered provider names in sorted order.
func (r *Registry) IDs() []ID {
	ids := lo.Keys(r.strategies)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
