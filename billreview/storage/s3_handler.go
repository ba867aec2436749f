package storage

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chrscato/cdx-billreview/billreview/constants"
	"github.com/chrscato/cdx-billreview/billreview/models"
)

// S3PayloadHandler manages payloads in an S3 bucket.
type S3PayloadHandler struct {
	Logger         logrus.FieldLogger
	Bucket         string
	FailsPrefix    string
	ResolvedPrefix string

	// Endpoint overrides the S3 endpoint for localstack testing.
	Endpoint      string
	AssumeRoleArn string
}

var _ PayloadHandler = &S3PayloadHandler{}

func (handler *S3PayloadHandler) ListPayloads(ctx context.Context) ([]string, error) {
	sess, err := handler.createSession()
	if err != nil {
		handler.Logger.Errorf("Failed to create S3 session: %s", err)
		return nil, err
	}
	svc := s3.New(sess)

	prefix := handler.failsPrefix()
	handler.Logger.Infof("Listing objects in bucket %s, prefix %s", handler.Bucket, prefix)

	var filenames []string
	err = svc.ListObjectsPagesWithContext(ctx, &s3.ListObjectsInput{
		Bucket: aws.String(handler.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsOutput, lastPage bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(*obj.Key, prefix)
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			filenames = append(filenames, name)
		}
		return true
	})
	if err != nil {
		handler.Logger.Errorf("Failed to list objects in S3 bucket %s, prefix %s: %s", handler.Bucket, prefix, err)
		return nil, err
	}

	return filenames, nil
}

func (handler *S3PayloadHandler) FetchPayload(ctx context.Context, filename string) ([]byte, error) {
	sess, err := handler.createSession()
	if err != nil {
		return nil, err
	}

	key := handler.failsPrefix() + filename
	downloader := s3manager.NewDownloader(sess)
	buff := &aws.WriteAtBuffer{}
	numBytes, err := downloader.DownloadWithContext(ctx, buff, &s3.GetObjectInput{
		Bucket: aws.String(handler.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		handler.Logger.Errorf("Failed to download bucket %s, key %s", handler.Bucket, key)
		return nil, err
	}

	handler.Logger.Infof("payload downloaded: key=%s size=%d", key, numBytes)
	return buff.Bytes(), nil
}

func (handler *S3PayloadHandler) PutPayload(ctx context.Context, filename string, data []byte) error {
	sess, err := handler.createSession()
	if err != nil {
		return err
	}

	key := handler.failsPrefix() + filename
	uploader := s3manager.NewUploader(sess)
	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(handler.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (handler *S3PayloadHandler) ResolvePayload(ctx context.Context, filename string, result *models.AssignmentResult) error {
	data, err := handler.FetchPayload(ctx, filename)
	if err != nil {
		return err
	}

	stamped, err := stampPayload(data, result)
	if err != nil {
		return err
	}

	sess, err := handler.createSession()
	if err != nil {
		return err
	}

	resolvedKey := handler.resolvedPrefix() + filename
	uploader := s3manager.NewUploader(sess)
	if _, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(handler.Bucket),
		Key:    aws.String(resolvedKey),
		Body:   bytes.NewReader(stamped),
	}); err != nil {
		return errors.Wrapf(err, "could not write resolved payload %s", resolvedKey)
	}

	// Delete last: a failure here leaves a duplicate, never a lost payload.
	failsKey := handler.failsPrefix() + filename
	svc := s3.New(sess)
	if _, err = svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(handler.Bucket),
		Key:    aws.String(failsKey),
	}); err != nil {
		return errors.Wrapf(err, "could not remove payload %s after resolution", failsKey)
	}

	handler.Logger.Infof("payload %s resolved to %s", failsKey, resolvedKey)
	return nil
}

func (handler *S3PayloadHandler) failsPrefix() string {
	return normalizePrefix(handler.FailsPrefix, constants.DefaultFailsPrefix)
}

func (handler *S3PayloadHandler) resolvedPrefix() string {
	return normalizePrefix(handler.ResolvedPrefix, constants.DefaultResolvedPrefix)
}

func normalizePrefix(prefix, fallback string) string {
	if prefix == "" {
		prefix = fallback
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return path.Clean(prefix) + "/"
}

func (handler *S3PayloadHandler) createSession() (*session.Session, error) {
	sess := session.Must(session.NewSession())

	config := aws.Config{
		Region: aws.String("us-east-1"),
	}

	if handler.Endpoint != "" {
		config.S3ForcePathStyle = aws.Bool(true)
		config.Endpoint = &handler.Endpoint
	}

	if handler.AssumeRoleArn != "" {
		config.Credentials = stscreds.NewCredentials(
			sess,
			handler.AssumeRoleArn,
		)
	}

	return session.NewSessionWithOptions(session.Options{
		Config: config,
	})
}
