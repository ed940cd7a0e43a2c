// Package s3store reads transcripts stored as JSON objects under an S3
// prefix, one "<clip>.json" object per clip.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/forPelevin/linecut/internal/transcripts"
	"github.com/forPelevin/linecut/internal/types"
)

// API is the subset of the S3 client the store uses.
type API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Store struct {
	client API
	bucket string
	prefix string

	mu  sync.RWMutex
	ids []string
	ok  bool
}

func New(client API, bucket, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Open builds a store for an s3://bucket/prefix URL using the default AWS
// credential chain. region may be empty.
func Open(ctx context.Context, rawURL, region string) (*Store, error) {
	bucket, prefix, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

// ParseURL splits s3://bucket/prefix.
func ParseURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/prefix", raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	ids, ok := s.ids, s.ok
	s.mu.RUnlock()
	if ok {
		return append([]string(nil), ids...), nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.ids...), nil
}

// Refresh re-lists the prefix.
func (s *Store) Refresh(ctx context.Context) error {
	var ids []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, s.prefix)
			if strings.Contains(rel, "/") || path.Ext(rel) != ".json" {
				continue
			}
			ids = append(ids, strings.TrimSuffix(rel, ".json"))
		}
	}
	sort.Strings(ids)

	s.mu.Lock()
	s.ids, s.ok = ids, true
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, clipID string) (types.Transcript, error) {
	if clipID == "" || strings.Contains(clipID, "/") {
		return types.Transcript{}, &types.ClipNotFoundError{ClipID: clipID}
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(clipID)),
	})
	if err != nil {
		if isNotFound(err) {
			return types.Transcript{}, &types.ClipNotFoundError{ClipID: clipID, Err: err}
		}
		return types.Transcript{}, fmt.Errorf("get s3 transcript %s: %w", clipID, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read s3 transcript %s: %w", clipID, err)
	}
	return transcripts.Decode(b, clipID)
}

func (s *Store) Put(ctx context.Context, tr types.Transcript) error {
	if tr.ClipID == "" {
		return errors.New("put transcript: clip id required")
	}
	b, err := transcripts.Encode(tr)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(tr.ClipID)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3 transcript %s: %w", tr.ClipID, err)
	}
	s.mu.Lock()
	if s.ok {
		i := sort.SearchStrings(s.ids, tr.ClipID)
		if i == len(s.ids) || s.ids[i] != tr.ClipID {
			s.ids = append(s.ids[:i], append([]string{tr.ClipID}, s.ids[i:]...)...)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) key(clipID string) string {
	return s.prefix + clipID + ".json"
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
