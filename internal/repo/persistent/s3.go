package persistent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/pkg/s3client"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type BlobRepo struct {
	*s3client.S3Client
}

func NewBlobRepo(s3c *s3client.S3Client) *BlobRepo {
	return &BlobRepo{s3c}
}

func (r *BlobRepo) Head(ctx context.Context, ref entity.BlobRef) (entity.BlobInfo, error) {
	out, err := r.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return entity.BlobInfo{}, fmt.Errorf("BlobRepo - Head - r.Client.HeadObject: %w", notFound(err))
	}

	return entity.BlobInfo{
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: out.LastModified,
	}, nil
}

func (r *BlobRepo) Exists(ctx context.Context, ref entity.BlobRef) (bool, error) {
	_, err := r.Head(ctx, ref)
	if err != nil {
		if errors.Is(err, errs.ErrBlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("BlobRepo - Exists: %w", err)
	}

	return true, nil
}

func (r *BlobRepo) Upload(ctx context.Context, ref entity.BlobRef, data io.Reader, contentType string, size int64) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(ref.Bucket),
		Key:           aws.String(ref.Key),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("BlobRepo - Upload - r.Client.PutObject: %w", err)
	}

	return nil
}

func (r *BlobRepo) DownloadBytes(ctx context.Context, ref entity.BlobRef) ([]byte, error) {
	result, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("BlobRepo - DownloadBytes - r.Client.GetObject: %w", notFound(err))
	}
	defer result.Body.Close()

	b, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("BlobRepo - DownloadBytes - io.ReadAll: %w", err)
	}

	return b, nil
}

func (r *BlobRepo) Delete(ctx context.Context, ref entity.BlobRef) error {
	_, err := r.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return fmt.Errorf("BlobRepo - Delete - r.Client.DeleteObject: %w", err)
	}

	return nil
}

// notFound maps the not-found shapes of AWS and S3-compatible stores onto
// errs.ErrBlobNotFound.
func notFound(err error) error {
	var (
		nf  *types.NotFound
		nsk *types.NoSuchKey
		api smithy.APIError
	)

	switch {
	case errors.As(err, &nf), errors.As(err, &nsk):
		return errs.ErrBlobNotFound
	case errors.As(err, &api) && (api.ErrorCode() == "NotFound" || api.ErrorCode() == "NoSuchKey"):
		return errs.ErrBlobNotFound
	default:
		return err
	}
}
