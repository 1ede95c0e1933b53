package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Object is a stored attachment body.
type Object struct {
	Key string
	URL string
}

// S3Store keeps attachment bodies in a bucket. Public buckets hand out
// permanent URLs; private ones hand out presigned GET URLs.
type S3Store struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	uploader   *manager.Uploader
	bucket     string
	region     string
	publicRead bool
	urlTTL     time.Duration
}

func NewS3Store(ctx context.Context, region, bucket string, publicRead bool, urlTTL time.Duration) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)
	if urlTTL <= 0 {
		urlTTL = 24 * time.Hour
	}
	return &S3Store{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		region:     region,
		publicRead: publicRead,
		urlTTL:     urlTTL,
	}, nil
}

// ObjectKey namespaces uploads by owner and keeps the original extension.
func ObjectKey(ownerID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("attachments/%s/%s%s", ownerID, uuid.NewString(), ext)
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (*Object, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	u, err := s.URL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Object{Key: key, URL: u}, nil
}

func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	if s.publicRead {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, url.PathEscape(key)), nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
