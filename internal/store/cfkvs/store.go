// Package cfkvs implements kvs.Store over an AWS CloudFront KeyValueStore.
//
// CloudFront KVS has flat string keys only. A labelled setting is stored
// under "<label>|<key>"; unlabelled settings are stored under their key,
// which may then not contain "|". Tags and content types have no
// representation and are dropped.
package cfkvs

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	"github.com/rs/zerolog"
)

const labelSep = "|"

// Limits are the CloudFront KVS service quotas, measured on the stored key.
var Limits = kvs.Limits{
	MaxKeyBytes:   512,
	MaxEntryBytes: 1024,
	MaxTotalBytes: 5242880, // 5 MB
	Sizer:         sizer{},
}

// sizer counts the encoded key and the value. Tags and content type are
// not stored.
type sizer struct{}

func (sizer) Size(e kvs.Entry) (int, int) {
	n := len(e.Key)
	if name, ok := e.Label.Name(); ok {
		n += len(name) + len(labelSep)
	}
	return n, n + len(e.Value)
}

// KVSClient abstracts the CloudFront KeyValueStore API.
type KVSClient interface {
	DescribeKeyValueStore(ctx context.Context, params *cloudfrontkeyvaluestore.DescribeKeyValueStoreInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.DescribeKeyValueStoreOutput, error)
	ListKeys(ctx context.Context, params *cloudfrontkeyvaluestore.ListKeysInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.ListKeysOutput, error)
	PutKey(ctx context.Context, params *cloudfrontkeyvaluestore.PutKeyInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.PutKeyOutput, error)
	DeleteKey(ctx context.Context, params *cloudfrontkeyvaluestore.DeleteKeyInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.DeleteKeyOutput, error)
}

// Store is a kvs.Store backed by one key value store. Every mutation is
// conditional on the store's current ETag, which each response refreshes.
type Store struct {
	client KVSClient
	arn    string

	mu   sync.Mutex
	etag string
}

// New returns a Store for the key value store with the given ARN.
func New(client KVSClient, kvsARN string) *Store {
	return &Store{client: client, arn: kvsARN}
}

// EncodeKey maps a setting identity to the stored key.
func EncodeKey(key string, label kvs.Label) (string, error) {
	name, ok := label.Name()
	if !ok {
		if strings.Contains(key, labelSep) {
			return "", fmt.Errorf("unlabelled key %q must not contain %q", key, labelSep)
		}
		return key, nil
	}
	if strings.Contains(name, labelSep) {
		return "", fmt.Errorf("label %q must not contain %q", name, labelSep)
	}
	return name + labelSep + key, nil
}

// DecodeKey splits a stored key into the setting key and label. A key
// with an empty label segment, such as "|k", is an unlabelled key
// containing the separator.
func DecodeKey(stored string) (string, kvs.Label) {
	name, key, ok := strings.Cut(stored, labelSep)
	if !ok || name == "" {
		return stored, kvs.NoLabel
	}
	return key, kvs.LabelOf(name)
}

// refreshETag reads the store's current ETag.
func (s *Store) refreshETag(ctx context.Context) (string, error) {
	desc, err := s.client.DescribeKeyValueStore(ctx, &cloudfrontkeyvaluestore.DescribeKeyValueStoreInput{
		KvsARN: aws.String(s.arn),
	})
	if err != nil {
		return "", fmt.Errorf("describing KVS: %w", err)
	}
	etag := aws.ToString(desc.ETag)
	s.mu.Lock()
	s.etag = etag
	s.mu.Unlock()
	return etag, nil
}

func (s *Store) currentETag(ctx context.Context) (string, error) {
	s.mu.Lock()
	etag := s.etag
	s.mu.Unlock()
	if etag != "" {
		return etag, nil
	}
	return s.refreshETag(ctx)
}

func (s *Store) setETag(etag *string) {
	if etag == nil {
		return
	}
	s.mu.Lock()
	s.etag = *etag
	s.mu.Unlock()
}

// dropETag forgets the cached ETag after a failed mutation so the next
// one describes the store again.
func (s *Store) dropETag() {
	s.mu.Lock()
	s.etag = ""
	s.mu.Unlock()
}

// List pages through every key and yields those passing filter.
func (s *Store) List(ctx context.Context, filter kvs.Filter) iter.Seq2[kvs.RemoteEntry, error] {
	return func(yield func(kvs.RemoteEntry, error) bool) {
		etag, err := s.refreshETag(ctx)
		if err != nil {
			yield(kvs.RemoteEntry{}, err)
			return
		}

		var nextToken *string
		for {
			resp, err := s.client.ListKeys(ctx, &cloudfrontkeyvaluestore.ListKeysInput{
				KvsARN:    aws.String(s.arn),
				NextToken: nextToken,
			})
			if err != nil {
				yield(kvs.RemoteEntry{}, fmt.Errorf("listing KVS keys: %w", err))
				return
			}
			for _, item := range resp.Items {
				stored := aws.ToString(item.Key)
				key, label := DecodeKey(stored)
				if !filter.Matches(key, label) {
					continue
				}
				e := kvs.RemoteEntry{
					Key:       key,
					Value:     aws.ToString(item.Value),
					Label:     label,
					ETag:      etag,
					StoredKey: stored,
				}
				if !yield(e, nil) {
					return
				}
			}
			nextToken = resp.NextToken
			if nextToken == nil {
				return
			}
		}
	}
}

// Upsert writes the entry's value.
func (s *Store) Upsert(ctx context.Context, e kvs.Entry) error {
	stored, err := EncodeKey(e.Key, e.Label)
	if err != nil {
		return &kvs.StatusError{StatusCode: 400, Err: err}
	}
	if len(e.Tags) > 0 || e.ContentType != "" {
		zerolog.Ctx(ctx).Debug().Str("key", e.Key).Msg("CloudFront KVS ignores tags and content type")
	}

	etag, err := s.currentETag(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.PutKey(ctx, &cloudfrontkeyvaluestore.PutKeyInput{
		KvsARN:  aws.String(s.arn),
		IfMatch: aws.String(etag),
		Key:     aws.String(stored),
		Value:   aws.String(e.Value),
	})
	if err != nil {
		s.dropETag()
		return fmt.Errorf("putting key %s: %w", stored, err)
	}
	s.setETag(resp.ETag)
	return nil
}

// Delete removes the listed entry under the key the listing returned.
func (s *Store) Delete(ctx context.Context, e kvs.RemoteEntry) error {
	stored := e.StoredKey
	if stored == "" {
		var err error
		if stored, err = EncodeKey(e.Key, e.Label); err != nil {
			return &kvs.StatusError{StatusCode: 400, Err: err}
		}
	}

	etag, err := s.currentETag(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.DeleteKey(ctx, &cloudfrontkeyvaluestore.DeleteKeyInput{
		KvsARN:  aws.String(s.arn),
		IfMatch: aws.String(etag),
		Key:     aws.String(stored),
	})
	if err != nil {
		s.dropETag()
		return fmt.Errorf("deleting key %s: %w", stored, err)
	}
	s.setETag(resp.ETag)
	return nil
}
