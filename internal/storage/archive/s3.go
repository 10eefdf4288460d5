// internal/storage/archive/s3.go
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/newthinker/archivist/internal/core"
	"go.uber.org/zap"
)

// defaultStorageClass is what S3 means when HeadObject omits the storage class header
const defaultStorageClass = "STANDARD"

// StorageClassPolicy maps the two tiers onto storage class names
type StorageClassPolicy struct {
	Active  string
	Archive string
}

// S3Config holds S3 connection configuration
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	KeyPrefix string
	Policy    StorageClassPolicy

	// MaxAttempts bounds SDK-level attempts per call; 1 disables retries.
	MaxAttempts int
	Timeout     time.Duration
}

// ObjectAPI is the part of *s3.Client the driver uses
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// ObjectStoreDriver implements Driver by rewriting an object's storage class in place
type ObjectStoreDriver struct {
	api    ObjectAPI
	bucket string
	prefix string
	policy StorageClassPolicy
	logger *zap.Logger
}

// NewObjectStore creates a new S3 driver
func NewObjectStore(cfg S3Config, logger *zap.Logger) (*ObjectStoreDriver, error) {
	for name, v := range map[string]string{
		"bucket":                   cfg.Bucket,
		"endpoint":                 cfg.Endpoint,
		"region":                   cfg.Region,
		"access key":               cfg.AccessKey,
		"secret key":               cfg.SecretKey,
		"archived storage class":   cfg.Policy.Archive,
		"unarchived storage class": cfg.Policy.Active,
	} {
		if v == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 %s is required", name))
		}
	}

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	opts := s3.Options{
		Region:           cfg.Region,
		Credentials:      credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		BaseEndpoint:     aws.String(cfg.Endpoint),
		UsePathStyle:     true, // Required for MinIO and most S3-compatible services
		RetryMaxAttempts: attempts,
		HTTPClient:       &http.Client{Timeout: timeout},
	}

	return NewObjectStoreWithClient(s3.New(opts), cfg, logger), nil
}

// NewObjectStoreWithClient creates a driver on an existing client.
func NewObjectStoreWithClient(api ObjectAPI, cfg S3Config, logger *zap.Logger) *ObjectStoreDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectStoreDriver{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.TrimPrefix(cfg.KeyPrefix, "/"),
		policy: cfg.Policy,
		logger: logger.With(zap.String("backend", BackendS3), zap.String("bucket", cfg.Bucket)),
	}
}

func (s *ObjectStoreDriver) Name() string { return BackendS3 }

// Locate uses the stored object key as-is; it must fall under the configured key prefix.
func (s *ObjectStoreDriver) Locate(obj core.ManagedObject, op core.Operation) (Locator, error) {
	key := obj.Location.ObjectKey
	switch {
	case key == "":
		return nil, core.WrapError(core.ErrLocatorDerivationFailed,
			fmt.Errorf("object %s has no object key", obj.ID))
	case strings.HasPrefix(key, "/"):
		return nil, core.WrapError(core.ErrLocatorDerivationFailed,
			fmt.Errorf("object key %q must not start with /", key))
	case s.prefix != "" && !strings.HasPrefix(key, s.prefix):
		return nil, core.WrapError(core.ErrLocatorDerivationFailed,
			fmt.Errorf("object key %q is outside prefix %q", key, s.prefix))
	}
	return ObjectStoreLocator{Bucket: s.bucket, Key: key}, nil
}

func (s *ObjectStoreDriver) MoveToArchive(ctx context.Context, loc Locator) error {
	return s.setClass(ctx, loc, s.policy.Archive)
}

func (s *ObjectStoreDriver) MoveToActive(ctx context.Context, loc Locator) error {
	return s.setClass(ctx, loc, s.policy.Active)
}

func (s *ObjectStoreDriver) Inspect(ctx context.Context, loc Locator) (core.Status, error) {
	l, err := s.locator(loc)
	if err != nil {
		return "", err
	}
	class, err := s.storageClass(ctx, l)
	if err != nil {
		return "", err
	}

	switch class {
	case s.policy.Archive:
		return core.StatusArchived, nil
	case s.policy.Active:
		return core.StatusProcessed, nil
	}
	return "", core.WrapError(core.ErrInspectFailed,
		fmt.Errorf("%s has storage class %s, expected %s or %s", l, class, s.policy.Active, s.policy.Archive))
}

// setClass copies the object onto itself with a new storage class and unchanged metadata.
func (s *ObjectStoreDriver) setClass(ctx context.Context, loc Locator, class string) error {
	l, err := s.locator(loc)
	if err != nil {
		return err
	}

	current, err := s.storageClass(ctx, l)
	if err != nil {
		if errors.Is(err, core.ErrObjectNotFound) {
			return err
		}
		return core.WrapError(core.ErrStorageClassChangeFailed, err)
	}
	if current == class {
		// A copy-in-place without changes is rejected by S3.
		s.logger.Warn("object already has target storage class",
			zap.String("key", l.Key), zap.String("storage_class", class))
		return nil
	}

	_, err = s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(l.Bucket),
		Key:               aws.String(l.Key),
		CopySource:        aws.String(copySource(l)),
		StorageClass:      types.StorageClass(class),
		MetadataDirective: types.MetadataDirectiveCopy,
	})
	if err != nil {
		if isNotFound(err) {
			return core.WrapError(core.ErrObjectNotFound, fmt.Errorf("%s: %w", l, err))
		}
		return core.WrapError(core.ErrStorageClassChangeFailed, fmt.Errorf("copy %s to %s: %w", l, class, err))
	}

	s.logger.Info("storage class changed",
		zap.String("key", l.Key),
		zap.String("from", current),
		zap.String("to", class),
	)
	return nil
}

func (s *ObjectStoreDriver) storageClass(ctx context.Context, l ObjectStoreLocator) (string, error) {
	head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.Bucket),
		Key:    aws.String(l.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", core.WrapError(core.ErrObjectNotFound, fmt.Errorf("%s: %w", l, err))
		}
		return "", core.WrapError(core.ErrInspectFailed, fmt.Errorf("head %s: %w", l, err))
	}
	if head.StorageClass == "" {
		return defaultStorageClass, nil
	}
	return string(head.StorageClass), nil
}

func (s *ObjectStoreDriver) locator(loc Locator) (ObjectStoreLocator, error) {
	l, ok := loc.(ObjectStoreLocator)
	if !ok {
		return l, core.WrapError(core.ErrStorageClassChangeFailed, fmt.Errorf("unexpected locator %T", loc))
	}
	if l.Bucket != s.bucket {
		return l, core.WrapError(core.ErrStorageClassChangeFailed,
			fmt.Errorf("locator bucket %q does not match %q", l.Bucket, s.bucket))
	}
	return l, nil
}

func copySource(l ObjectStoreLocator) string {
	return l.Bucket + "/" + url.PathEscape(l.Key)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
