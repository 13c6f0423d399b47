package s3blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.input, f.body = in, string(b)
	return &manager.UploadOutput{}, nil
}

func TestWriterPut(t *testing.T) {
	t.Parallel()

	up := &fakeUploader{}
	w := &Writer{up: up, bucket: "manifests"}
	if err := w.Put(context.Background(), "deployments/1/abc.json", strings.NewReader(`{"id":"abc"}`), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if aws.ToString(up.input.Bucket) != "manifests" || aws.ToString(up.input.Key) != "deployments/1/abc.json" {
		t.Fatalf("unexpected target %s/%s", aws.ToString(up.input.Bucket), aws.ToString(up.input.Key))
	}
	if aws.ToString(up.input.ContentType) != "application/json" || up.body != `{"id":"abc"}` {
		t.Fatalf("unexpected upload %+v %q", up.input, up.body)
	}
}

func TestWriterPutError(t *testing.T) {
	t.Parallel()

	w := &Writer{up: &fakeUploader{err: errors.New("access denied")}, bucket: "manifests"}
	err := w.Put(context.Background(), "k", strings.NewReader("x"), "")
	if err == nil || !strings.Contains(err.Error(), "manifests/k") {
		t.Fatalf("expected wrapped upload error, got %v", err)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		ssl    bool
		expect string
	}{
		{"https://minio.local:9000", false, "https://minio.local:9000"},
		{"minio.local:9000", false, "http://minio.local:9000"},
		{"r2.example.com", true, "https://r2.example.com"},
	}
	for _, tc := range cases {
		if got := normaliseEndpoint(tc.in, tc.ssl); got != tc.expect {
			t.Fatalf("normaliseEndpoint(%q, %v): expected %s, got %s", tc.in, tc.ssl, tc.expect, got)
		}
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), ClientConfig{Region: "us-east-1"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := New(context.Background(), ClientConfig{Bucket: "b"}); err == nil {
		t.Fatalf("expected missing region error")
	}
}
