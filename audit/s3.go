package audit

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"briefbot/config"
)

// Uploader writes audit reports to S3. It is optional: when S3_BUCKET is
// not configured the pipeline simply keeps reports local.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewUploaderFromEnv builds an Uploader when S3_BUCKET is set, or returns
// nil (uploads disabled) when it is not.
// Optional: S3_REGION, S3_PROFILE, S3_PREFIX, S3_USE_PATH_STYLE=true.
func NewUploaderFromEnv(ctx context.Context) (*Uploader, error) {
	bucket := strings.TrimSpace(config.GetEnvOrDefault("S3_BUCKET", ""))
	if bucket == "" {
		return nil, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := config.GetEnvOrDefault("S3_REGION", ""); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if profile := config.GetEnvOrDefault("S3_PROFILE", ""); profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	usePathStyle := strings.EqualFold(config.GetEnvOrDefault("S3_USE_PATH_STYLE", ""), "true")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})

	prefix := strings.Trim(config.GetEnvOrDefault("S3_PREFIX", ""), "/")
	if prefix != "" {
		prefix += "/"
	}

	return &Uploader{client: client, bucket: bucket, prefix: prefix}, nil
}

// Upload writes the report JSON to audit/<issue>/<run>.json under the
// configured prefix.
func (u *Uploader) Upload(ctx context.Context, report Report) error {
	body, err := report.JSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	key := fmt.Sprintf("%saudit/%s/%s.json", u.prefix, report.IssueID, report.RunID)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put audit report: %w", err)
	}

	log.Printf("audit: uploaded report for issue %s to s3://%s/%s", report.IssueID, u.bucket, key)
	return nil
}
