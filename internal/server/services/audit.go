package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/offpay/chainsync/internal/server/config"
	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/repositories/repomanager"
)

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

// AuditService exports conflict reviews to the object store and hands out
// short-lived presigned URLs for the audit tooling.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config) *AuditService {
	return &AuditService{db: db, repomanager: m, config: config}
}

// ReportStorageKey builds a date-partitioned object key for one user's
// conflict report.
func ReportStorageKey(userID string) string {
	d := time.Now()
	return fmt.Sprintf("reports/%d/%d/%d/%s/%v", d.Year(), d.Month(), d.Day(), userID, uuid.New())
}

func (s *AuditService) getPresignClient() (*s3.PresignClient, error) {
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
	})

	return newS3PresignClient(client), nil
}

// ConflictReport is the exported shape: metadata plus every conflict of the
// user at export time.
type ConflictReport struct {
	UserID      string                 `json:"user_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Conflicts   []*models.SyncConflict `json:"conflicts"`
}

// BuildReport collects the user's full conflict history for export.
func (s *AuditService) BuildReport(ctx context.Context, userID string) (*ConflictReport, error) {
	all, err := s.repomanager.Conflicts(s.db).SelectByUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return &ConflictReport{
		UserID:      userID,
		GeneratedAt: time.Now().UTC(),
		Conflicts:   all,
	}, nil
}

// GetPresignedPutUrl returns a fresh storage key and a presigned PUT URL the
// audit tooling uploads the serialized report to.
func (s *AuditService) GetPresignedPutUrl(ctx context.Context, userID string) (string, string, error) {

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := ReportStorageKey(userID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))

	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// GetPresignedGetUrl returns a presigned GET URL for a previously exported
// report.
func (s *AuditService) GetPresignedGetUrl(ctx context.Context, key string) (string, error) {

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
