package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Archiver keeps private copies of print-grade transform outputs in S3. The
// transform provider hosts results on an expiring CDN; the archive is what the
// storefront push later reads from.
type Archiver struct {
	s3Client   *s3.Client
	bucket     string
	httpClient *http.Client
}

// NewArchiver creates an S3-backed asset archiver.
func NewArchiver(bucketName string) *Archiver {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &Archiver{
		s3Client:   s3.NewFromConfig(cfg),
		bucket:     bucketName,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// ArchiverFromEnv returns an archiver when ASSET_ARCHIVE_BUCKET is set, nil
// otherwise. A nil archiver disables archiving.
func ArchiverFromEnv() *Archiver {
	bucket := os.Getenv("ASSET_ARCHIVE_BUCKET")
	if bucket == "" {
		logrus.Info("ASSET_ARCHIVE_BUCKET not set, transform results will not be archived")
		return nil
	}
	logrus.WithField("bucket", bucket).Info("Archiving transform results to S3")
	return NewArchiver(bucket)
}

// Archive downloads the asset behind assetURL and stores it under the user's
// prefix. The object key keeps the source extension so the archived file stays
// openable by name.
func (a *Archiver) Archive(ctx context.Context, userID, assetURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch asset %s: %w", assetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch asset %s: %s", assetURL, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read asset data: %w", err)
	}

	if userID == "" {
		userID = "anonymous"
	}
	key := path.Join("archive", userID, ulid.Make().String()+path.Ext(assetURL))

	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(resp.Header.Get("Content-Type")),
	})
	if err != nil {
		return fmt.Errorf("failed to upload asset copy: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"key":    key,
		"bytes":  len(data),
	}).Info("Archived transform result")
	return nil
}
