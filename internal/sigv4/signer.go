// Package sigv4 signs outbound Bedrock requests with AWS Signature Version 4.
//
// Credentials are resolved per request: the x-aws-* request headers win,
// falling back to the process environment through the AWS SDK default chain.
package sigv4

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"
)

// Header names carrying per-request AWS credentials.
const (
	HeaderAccessKeyID     = "x-aws-access-key-id"
	HeaderSecretAccessKey = "x-aws-secret-access-key"
	HeaderSessionToken    = "x-aws-session-token"
	HeaderRegion          = "x-aws-region"
)

const (
	service       = "bedrock"
	defaultRegion = "us-east-1"
)

// ErrNoCredentials indicates that neither the request headers nor the
// environment supplied a usable access key and secret.
var ErrNoCredentials = errors.New("sigv4: no AWS credentials available")

// Signer resolves credentials and signs HTTP requests for the Bedrock service.
type Signer struct {
	signer      *v4.Signer
	envProvider aws.CredentialsProvider
	envRegion   string
}

// NewSigner creates a Signer backed by the AWS SDK default credential chain.
// The chain is loaded once; header-supplied credentials bypass it entirely.
func NewSigner(ctx context.Context) *Signer {
	s := &Signer{signer: v4.NewSigner()}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		// Header-supplied credentials still work without an environment chain.
		zerolog.Ctx(ctx).Debug().Err(err).Msg("sigv4: no default AWS config")
		return s
	}
	s.envProvider = awsCfg.Credentials
	s.envRegion = awsCfg.Region

	return s
}

// NewSignerWithCredentials creates a Signer with a fixed environment fallback.
// Useful for tests and non-default credential providers.
func NewSignerWithCredentials(provider aws.CredentialsProvider, region string) *Signer {
	return &Signer{
		signer:      v4.NewSigner(),
		envProvider: provider,
		envRegion:   region,
	}
}

// Region returns the region for a request: the x-aws-region header when
// present, the environment region otherwise, us-east-1 as a last resort.
func (s *Signer) Region(h http.Header) string {
	if region := h.Get(HeaderRegion); region != "" {
		return region
	}
	if s.envRegion != "" {
		return s.envRegion
	}
	return defaultRegion
}

// Resolve returns the credentials for a request. Request headers take
// priority; the environment chain is the fallback. Returns ErrNoCredentials
// when neither yields an access key and secret.
func (s *Signer) Resolve(ctx context.Context, h http.Header) (aws.Credentials, error) {
	accessKey := h.Get(HeaderAccessKeyID)
	secretKey := h.Get(HeaderSecretAccessKey)

	if accessKey != "" && secretKey != "" {
		return aws.Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			SessionToken:    h.Get(HeaderSessionToken),
			Source:          "request-headers",
		}, nil
	}
	if accessKey != "" || secretKey != "" {
		// Half a credential pair is a caller mistake, not a fallback case.
		return aws.Credentials{}, ErrNoCredentials
	}

	if s.envProvider == nil {
		return aws.Credentials{}, ErrNoCredentials
	}
	creds, err := s.envProvider.Retrieve(ctx)
	if err != nil || creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, ErrNoCredentials
	}

	return creds, nil
}

// Sign computes the SigV4 authorization for req using the given credentials
// and region. The payload hash is the hex SHA-256 of body; host and
// x-amz-date (and x-amz-security-token for session credentials) are added by
// the SDK signer before the canonical request is built.
func (s *Signer) Sign(ctx context.Context, req *http.Request, body []byte, creds aws.Credentials, region string) error {
	hash := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(hash[:])

	err := s.signer.SignHTTP(ctx, creds, req, payloadHash, service, region, time.Now(),
		func(options *v4.SignerOptions) {
			options.DisableURIPathEscaping = true
		})
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().
		Str("region", region).
		Str("credential_source", creds.Source).
		Msg("signed Bedrock request")

	return nil
}
