package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sc "github.com/offpay/chainsync/internal/server/config"
	"github.com/offpay/chainsync/internal/server/models"
)

func newAuditSvc(t *testing.T) (*AuditService, *fakeRM) {
	t.Helper()
	rm := newFakeRM()
	cfg := &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "audit",
		SecretKey:      "k",
	}
	return NewAuditService(newSvcDB(t), rm, cfg), rm
}

func TestReportStorageKey(t *testing.T) {
	key := ReportStorageKey("u1")
	if !strings.HasPrefix(key, "reports/") {
		t.Fatalf("unexpected key prefix: %q", key)
	}
	if !strings.Contains(key, "/u1/") {
		t.Fatalf("key misses user segment: %q", key)
	}
}

func TestBuildReport(t *testing.T) {
	svc, rm := newAuditSvc(t)
	ctx := context.Background()

	for _, res := range []models.ResolutionStatus{models.ResolutionPendingUser, models.ResolutionRejected} {
		require.NoError(t, rm.conf.Create(ctx, &models.SyncConflict{
			ID:            uuid.NewString(),
			TransactionID: uuid.NewString(),
			UserID:        "u1",
			Type:          models.ConflictNonceReused,
			Resolution:    res,
			Priority:      models.PrioritySecurity,
			DetectedAt:    time.Now().UTC(),
		}))
	}

	report, err := svc.BuildReport(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", report.UserID)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.Len(t, report.Conflicts, 2, "resolved conflicts belong in the report too")
}

func Test_getPresignClient_SuccessAndError(t *testing.T) {
	svc, _ := newAuditSvc(t)

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		if len(optFns) == 0 {
			t.Fatalf("expected config options")
		}
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}

	var capturedBaseEndpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil {
			t.Fatalf("BaseEndpoint not set")
		}
		capturedBaseEndpoint = *opts.BaseEndpoint
		return &s3.Client{}
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		if c == nil {
			t.Fatalf("nil client passed to presign")
		}
		return &s3.PresignClient{}
	}

	pc, err := svc.getPresignClient()
	if err != nil {
		t.Fatalf("getPresignClient err: %v", err)
	}
	if pc == nil {
		t.Fatalf("nil presign client")
	}
	if capturedBaseEndpoint != "http://127.0.0.1:9000" {
		t.Fatalf("BaseEndpoint mismatch: %q", capturedBaseEndpoint)
	}

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	pc, err = svc.getPresignClient()
	if err == nil || err.Error() != "load-fail" {
		t.Fatalf("expected load-fail, got %v (pc=%v)", err, pc)
	}
}

func stubPresignInfra(t *testing.T) {
	t.Helper()

	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet := presignPutObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			_ = fn(&lo)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client { return &s3.Client{} }
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
}

func TestGetPresignedPutUrl(t *testing.T) {
	svc, _ := newAuditSvc(t)
	stubPresignInfra(t)

	var capturedBucket, capturedKey string
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		capturedBucket = *in.Bucket
		capturedKey = *in.Key
		return &v4.PresignedHTTPRequest{URL: "http://signed-put"}, nil
	}

	key, url, err := svc.GetPresignedPutUrl(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetPresignedPutUrl err: %v", err)
	}
	if url != "http://signed-put" {
		t.Fatalf("unexpected url %q", url)
	}
	if capturedBucket != "audit" {
		t.Fatalf("unexpected bucket %q", capturedBucket)
	}
	if key != capturedKey || !strings.Contains(key, "/u1/") {
		t.Fatalf("key mismatch: returned %q, presigned %q", key, capturedKey)
	}
}

func TestGetPresignedPutUrl_ErrorFromPresign(t *testing.T) {
	svc, _ := newAuditSvc(t)
	stubPresignInfra(t)

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-put-fail")
	}

	_, _, err := svc.GetPresignedPutUrl(context.Background(), "u1")
	if err == nil || err.Error() != "presign-put-fail" {
		t.Fatalf("want presign-put-fail, got %v", err)
	}
}

func TestGetPresignedGetUrl(t *testing.T) {
	svc, _ := newAuditSvc(t)
	stubPresignInfra(t)

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if *in.Key != "reports/2026/1/1/u1/x" {
			t.Fatalf("unexpected key %q", *in.Key)
		}
		return &v4.PresignedHTTPRequest{URL: "http://signed-get"}, nil
	}

	url, err := svc.GetPresignedGetUrl(context.Background(), "reports/2026/1/1/u1/x")
	if err != nil {
		t.Fatalf("GetPresignedGetUrl err: %v", err)
	}
	if url != "http://signed-get" {
		t.Fatalf("unexpected url %q", url)
	}
}
