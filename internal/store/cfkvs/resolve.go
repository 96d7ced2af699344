package cfkvs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	"github.com/rs/zerolog"
)

// ARNResolver abstracts the CloudFront call listing key value stores.
type ARNResolver interface {
	ListKeyValueStores(ctx context.Context, params *cloudfront.ListKeyValueStoresInput, optFns ...func(*cloudfront.Options)) (*cloudfront.ListKeyValueStoresOutput, error)
}

// ResolveARN finds the ARN of the key value store called name.
func ResolveARN(ctx context.Context, client ARNResolver, name string) (string, error) {
	var marker *string
	for {
		resp, err := client.ListKeyValueStores(ctx, &cloudfront.ListKeyValueStoresInput{
			Marker: marker,
		})
		if err != nil {
			return "", fmt.Errorf("listing key value stores: %w", err)
		}
		if resp.KeyValueStoreList == nil {
			break
		}
		for _, item := range resp.KeyValueStoreList.Items {
			if aws.ToString(item.Name) == name && item.ARN != nil {
				return *item.ARN, nil
			}
		}
		marker = resp.KeyValueStoreList.NextMarker
		if marker == nil {
			break
		}
	}
	return "", fmt.Errorf("key value store not found: %s", name)
}

// Options addresses a key value store. ARN wins over Name when both are set.
type Options struct {
	Name   string
	ARN    string
	Region string
}

// Open loads the default AWS configuration and returns a Store for the
// addressed key value store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var awsOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(opts.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	arn := opts.ARN
	if arn == "" {
		zerolog.Ctx(ctx).Info().Str("name", opts.Name).Msg("Resolving KVS ARN")
		arn, err = ResolveARN(ctx, cloudfront.NewFromConfig(awsCfg), opts.Name)
		if err != nil {
			return nil, err
		}
	}
	zerolog.Ctx(ctx).Info().Str("arn", arn).Msg("Using CloudFront key value store")

	return New(cloudfrontkeyvaluestore.NewFromConfig(awsCfg), arn), nil
}
