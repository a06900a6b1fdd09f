package crypto

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// ErrAliasUnconfigured is returned when no KMS key alias is configured.
var ErrAliasUnconfigured = errors.New("missing KMS key alias")

// KMSKeyGenerator produces data keys from AWS KMS under a configured alias.
type KMSKeyGenerator struct {
	client *kms.Client
	alias  string
}

// NewKMSKeyGenerator builds a generator for the given key alias using the
// default AWS credential chain.
func NewKMSKeyGenerator(ctx context.Context, alias string) (*KMSKeyGenerator, error) {
	if alias == "" {
		return nil, ErrAliasUnconfigured
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &KMSKeyGenerator{
		client: kms.NewFromConfig(cfg),
		alias:  alias,
	}, nil
}

// GenerateDataKey requests fresh plaintext key material from KMS.
func (g *KMSKeyGenerator) GenerateDataKey(ctx context.Context, keySpec string) ([]byte, error) {
	out, err := g.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String("alias/" + g.alias),
		KeySpec: types.DataKeySpec(keySpec),
	})
	if err != nil {
		return nil, fmt.Errorf("kms generate data key: %w", err)
	}
	return out.Plaintext, nil
}
