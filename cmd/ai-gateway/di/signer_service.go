package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/magicapi/ai-gateway/internal/sigv4"
)

// SignerService wraps the SigV4 request signer.
type SignerService struct {
	Signer *sigv4.Signer
}

// NewSigner creates the SigV4 signer. The ambient AWS credential chain is
// loaded once here; per-request header credentials override it at sign time.
func NewSigner(i do.Injector) (*SignerService, error) {
	ctx, err := do.InvokeNamed[context.Context](i, BootContextKey)
	if err != nil {
		ctx = context.Background()
	}

	return &SignerService{Signer: sigv4.NewSigner(ctx)}, nil
}
