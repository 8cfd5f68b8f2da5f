package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Backend implements Backend for S3-compatible storage.
type S3Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

// S3Config contains S3 connection configuration.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // For S3-compatible services (MinIO, Backblaze B2)
	AccessKey string
	SecretKey string
	Prefix    string // Optional key prefix
}

// NewS3Backend creates a new S3-compatible backend.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and similar
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
	}, nil
}

// Ref returns a Reference for the given remote path.
func (s *S3Backend) Ref(path string) Reference {
	return &s3Ref{backend: s, path: path}
}

// Close releases backend resources.
func (s *S3Backend) Close() error {
	return nil
}

// prefixKey adds the configured prefix to a key.
func (s *S3Backend) prefixKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

type s3Ref struct {
	backend *S3Backend
	path    string
}

func (r *s3Ref) Name() string { return baseName(r.path) }
func (r *s3Ref) Path() string { return r.path }

// Put starts an upload of raw bytes to S3.
func (r *s3Ref) Put(data []byte) Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &s3Task{taskState: newTaskState(r), ctx: ctx}
	t.onCancel = cancel
	go t.runPut(r, data)
	return t
}

// WriteToFile starts a download of the object to the given local path.
func (r *s3Ref) WriteToFile(path string) Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &s3Task{taskState: newTaskState(r), ctx: ctx}
	t.onCancel = cancel
	go t.runWriteToFile(r, path)
	return t
}

// Delete removes the object. S3 deletes of missing keys succeed silently, so
// the object's existence is checked first to surface CodeObjectNotFound.
func (r *s3Ref) Delete(fn func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		key := r.backend.prefixKey(r.path)
		if _, err := r.backend.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(r.backend.bucket),
			Key:    aws.String(key),
		}); err != nil {
			code := classifyS3Error(err)
			if code == CodeObjectNotFound {
				fn(NewError(code, fmt.Sprintf("no object at %s", r.path), err))
				return
			}
			fn(NewError(code, "delete failed", err))
			return
		}

		if _, err := r.backend.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(r.backend.bucket),
			Key:    aws.String(key),
		}); err != nil {
			fn(NewError(classifyS3Error(err), "delete failed", err))
			return
		}
		fn(nil)
	}()
}

// DownloadURL resolves a presigned GET URL valid for 15 minutes.
func (r *s3Ref) DownloadURL(fn func(string, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := r.backend.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.backend.bucket),
			Key:    aws.String(r.backend.prefixKey(r.path)),
		}, s3.WithPresignExpires(15*time.Minute))
		if err != nil {
			fn("", NewError(classifyS3Error(err), "presign failed", err))
			return
		}
		fn(req.URL, nil)
	}()
}

type s3Task struct {
	*taskState
	ctx context.Context
}

func (t *s3Task) runPut(r *s3Ref, data []byte) {
	t.setTotal(int64(len(data)))

	body := &meteredReader{inner: bytes.NewReader(data), task: t.taskState}
	_, err := r.backend.client.PutObject(t.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.backend.bucket),
		Key:           aws.String(r.backend.prefixKey(r.path)),
		Body:          body,
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		if t.ctx.Err() != nil {
			t.fail(CodeCancelled, "upload cancelled", err)
			return
		}
		t.fail(classifyS3Error(err), "upload failed", err)
		return
	}
	t.succeed()
}

func (t *s3Task) runWriteToFile(r *s3Ref, path string) {
	resp, err := r.backend.client.GetObject(t.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.backend.bucket),
		Key:    aws.String(r.backend.prefixKey(r.path)),
	})
	if err != nil {
		if t.ctx.Err() != nil {
			t.fail(CodeCancelled, "download cancelled", err)
			return
		}
		t.fail(classifyS3Error(err), "download failed", err)
		return
	}
	defer resp.Body.Close()

	if resp.ContentLength != nil {
		t.setTotal(*resp.ContentLength)
	}

	out, err := os.Create(path)
	if err != nil {
		t.fail(CodeUnknown, "failed to create local file", err)
		return
	}

	var written int64
	buf := make([]byte, 64*1024)
	for {
		if t.gate() {
			out.Close()
			os.Remove(path)
			t.fail(CodeCancelled, "download cancelled", nil)
			return
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(path)
				t.fail(CodeUnknown, "failed to write local file", werr)
				return
			}
			written += int64(n)
			t.advanceTo(written)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(path)
			if t.ctx.Err() != nil {
				t.fail(CodeCancelled, "download cancelled", rerr)
				return
			}
			t.fail(classifyS3Error(rerr), "download failed", rerr)
			return
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		t.fail(CodeUnknown, "failed to finish local file", err)
		return
	}
	t.succeed()
}

// meteredReader reports upload progress from the reader position. The SDK may
// rewind the body for request signing; advanceTo ignores positions behind the
// high-water mark.
type meteredReader struct {
	inner *bytes.Reader
	task  *taskState
	pos   int64
}

func (m *meteredReader) Read(p []byte) (int, error) {
	if m.task.gate() {
		return 0, context.Canceled
	}
	n, err := m.inner.Read(p)
	m.pos += int64(n)
	m.task.advanceTo(m.pos)
	return n, err
}

func (m *meteredReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := m.inner.Seek(offset, whence)
	if err == nil {
		m.pos = pos
	}
	return pos, err
}

// classifyS3Error maps an S3 API failure into the backend code vocabulary.
// The mapping is total: anything unrecognized comes back as CodeUnknown.
func classifyS3Error(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return CodeObjectNotFound
		case "NoSuchBucket":
			return CodeBucketNotFound
		case "AccessDenied":
			return CodeUnauthorized
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
			return CodeUnauthenticated
		case "QuotaExceeded", "SlowDown", "TooManyRequests", "ServiceUnavailable":
			return CodeQuotaExceeded
		case "InvalidArgument", "InvalidRequest":
			return CodeInvalidArgument
		case "BadDigest", "InvalidDigest", "XAmzContentSHA256Mismatch":
			return CodeNonMatchingChecksum
		case "EntityTooLarge", "MaxMessageLengthExceeded":
			return CodeDownloadSizeExceeded
		}
	}

	if isNotFound(err) {
		return CodeObjectNotFound
	}
	if isNetworkError(err) {
		return CodeRetryLimitExceeded
	}
	return CodeUnknown
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}

// isNetworkError checks if an error is transport-related.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection",
		"timeout",
		"network",
		"eof",
		"broken pipe",
		"tls handshake",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
