// Package services implements the reveal server's photo operations on top
// of the metadata repository and an S3-compatible object store.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/darkroomapp/darkroom/internal/server/config"
	"github.com/darkroomapp/darkroom/internal/server/models"
	"github.com/darkroomapp/darkroom/internal/server/repositories/photos"
)

// Presign plumbing is held in package vars so tests can stub the AWS SDK
// without a live object store.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// BeginUploadResult carries what a client needs to push one photo.
type BeginUploadResult struct {
	PhotoID    string
	StorageKey string
	UploadURL  string
}

type PhotoService struct {
	repo   photos.Repository
	config *sc.Config
}

func NewPhotoService(repo photos.Repository, config *sc.Config) *PhotoService {
	return &PhotoService{repo: repo, config: config}
}

// randomStorageKey spreads objects by event and date; the uuid keeps every
// upload attempt writing to a fresh key.
func randomStorageKey(eventID string) string {
	d := time.Now()
	return fmt.Sprintf("events/%s/%d/%d/%d/%v", eventID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *PhotoService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// BeginUpload creates an unconfirmed metadata row and presigns a PUT URL
// for its fresh storage key.
func (s *PhotoService) BeginUpload(ctx context.Context, eventID, ownerLabel string, capturedAt time.Time) (*BeginUploadResult, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return nil, fmt.Errorf("presign client: %w", err)
	}

	bucket := s.config.S3Bucket
	key := randomStorageKey(eventID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.PresignTTL))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	p := &models.Photo{
		ID:         uuid.NewString(),
		EventID:    eventID,
		OwnerLabel: ownerLabel,
		StorageKey: key,
		CapturedAt: capturedAt,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create photo row: %w", err)
	}

	return &BeginUploadResult{PhotoID: p.ID, StorageKey: key, UploadURL: req.URL}, nil
}

// CommitUpload makes the photo visible in listings.
func (s *PhotoService) CommitUpload(ctx context.Context, photoID string) error {
	if err := s.repo.Confirm(ctx, photoID); err != nil {
		return fmt.Errorf("confirm photo: %w", err)
	}
	return nil
}

// List returns confirmed photos in capture order.
func (s *PhotoService) List(ctx context.Context, eventID string, offset, limit int) ([]*models.Photo, error) {
	rows, err := s.repo.ListByEvent(ctx, eventID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return rows, nil
}

// IssueURL presigns a GET for the storage key, valid for at least ttl.
func (s *PhotoService) IssueURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.config.PresignTTL
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", fmt.Errorf("presign client: %w", err)
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &storageKey,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
