package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/forPelevin/linecut/internal/types"
)

type fakeS3 struct {
	objects map[string][]byte
	getErr  error
	lists   int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.lists++
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func TestStore_ListAndGet(t *testing.T) {
	ctx := context.Background()
	api := &fakeS3{objects: map[string][]byte{
		"takes/b.mp4.json":        []byte(`{"segments":[{"start":0,"end":1,"text":"b"}]}`),
		"takes/a.mp4.json":        []byte(`{"segments":[{"start":0,"end":2,"text":"a"}]}`),
		"takes/nested/c.mp4.json": []byte(`{}`),
		"takes/readme.txt":        []byte(`x`),
		"other/d.mp4.json":        []byte(`{}`),
	}}
	s := New(api, "bucket", "/takes/")

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"a.mp4", "b.mp4"}) {
		t.Fatalf("List = %v", ids)
	}
	if _, err := s.List(ctx); err != nil || api.lists != 1 {
		t.Fatalf("List must be cached until Refresh, lists=%d", api.lists)
	}

	tr, err := s.Get(ctx, "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if tr.ClipID != "a.mp4" || tr.Segments[0].Text != "a" {
		t.Fatalf("unexpected transcript: %+v", tr)
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, getErr := range map[string]error{
		"no such key":   nil,
		"generic 404":   &smithy.GenericAPIError{Code: "NotFound"},
		"wrapped error": &smithy.OperationError{ServiceID: "S3", OperationName: "GetObject", Err: &s3types.NoSuchKey{}},
	} {
		t.Run(name, func(t *testing.T) {
			s := New(&fakeS3{objects: map[string][]byte{}, getErr: getErr}, "bucket", "")
			if _, err := s.Get(ctx, "missing.mp4"); !errors.Is(err, types.ErrClipNotFound) {
				t.Fatalf("expected ErrClipNotFound, got %v", err)
			}
		})
	}
}

func TestStore_OtherErrorsPropagate(t *testing.T) {
	s := New(&fakeS3{getErr: &smithy.GenericAPIError{Code: "AccessDenied"}}, "bucket", "")
	_, err := s.Get(context.Background(), "a.mp4")
	if err == nil || errors.Is(err, types.ErrClipNotFound) {
		t.Fatalf("expected a non-not-found error, got %v", err)
	}
}

func TestStore_PutUpdatesListing(t *testing.T) {
	ctx := context.Background()
	api := &fakeS3{objects: map[string][]byte{}}
	s := New(api, "bucket", "p")
	if _, err := s.List(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, types.Transcript{ClipID: "z.mp4", Segments: []types.Segment{{End: 1, Text: "z"}}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.objects["p/z.mp4.json"]; !ok {
		t.Fatalf("object not written: %v", api.objects)
	}
	ids, _ := s.List(ctx)
	if !reflect.DeepEqual(ids, []string{"z.mp4"}) {
		t.Fatalf("List after put = %v", ids)
	}
}

func TestParseURL(t *testing.T) {
	b, p, err := ParseURL("s3://media-bucket/projects/ep1/")
	if err != nil || b != "media-bucket" || p != "projects/ep1" {
		t.Fatalf("ParseURL = %q, %q, %v", b, p, err)
	}
	for _, bad := range []string{"http://x/y", "s3:///nobucket", "takes"} {
		if _, _, err := ParseURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
