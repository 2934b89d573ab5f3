package di

import (
	"github.com/samber/do/v2"

	"github.com/magicapi/ai-gateway/internal/providers"
)

// RegistryService wraps the provider strategy registry.
type RegistryService struct {
	Registry *providers.Registry
}

// NewRegistry creates the provider registry with all supported backends.
func NewRegistry(i do.Injector) (*RegistryService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	signerSvc := do.MustInvoke[*SignerService](i)

	registry := providers.NewRegistry(signerSvc.Signer, providers.RegistryOptions{
		BedrockUseInvoke: cfgSvc.Config.Providers.BedrockUseInvoke,
	})

	return &RegistryService{Registry: registry}, nil
}
