package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/ticketdeploy/internal/domain"
)

const partSize int64 = 5 * 1024 * 1024

// uploader is the subset of manager.Uploader used by Writer.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Writer implements domain.BlobWriter on top of the S3 upload manager, so
// readers of unknown length are streamed without buffering.
type Writer struct {
	up     uploader
	bucket string
}

func NewWriter(c *Client) *Writer {
	return &Writer{
		up:     manager.NewUploader(c.s3, func(u *manager.Uploader) { u.PartSize = partSize }),
		bucket: c.bucket,
	}
}

// Put stores data under key.
func (w *Writer) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := w.up.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: upload %s/%s: %w", w.bucket, key, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
