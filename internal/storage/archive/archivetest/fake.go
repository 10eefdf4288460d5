// Package archivetest provides an in-memory S3 API for driver tests.
package archivetest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// FakeS3 keeps object storage classes in memory. An empty class means STANDARD,
// matching what S3 returns from HeadObject.
type FakeS3 struct {
	mu      sync.Mutex
	classes map[string]string
	copies  []s3.CopyObjectInput

	// HeadErr and CopyErr, when set, are returned by every call.
	HeadErr error
	CopyErr error
}

// NewFakeS3 creates an empty fake
func NewFakeS3() *FakeS3 {
	return &FakeS3{classes: make(map[string]string)}
}

// Put stores key with the given storage class
func (f *FakeS3) Put(key, class string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classes[key] = normalize(class)
}

// Class returns the stored class of key and whether it exists
func (f *FakeS3) Class(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.classes[key]
	if ok && c == "" {
		c = "STANDARD"
	}
	return c, ok
}

// Copies returns the CopyObject requests seen so far
func (f *FakeS3) Copies() []s3.CopyObjectInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]s3.CopyObjectInput(nil), f.copies...)
}

func (f *FakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HeadErr != nil {
		return nil, f.HeadErr
	}
	c, ok := f.classes[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{StorageClass: types.StorageClass(c)}, nil
}

func (f *FakeS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, *in)
	if f.CopyErr != nil {
		return nil, f.CopyErr
	}
	if _, ok := f.classes[*in.Key]; !ok {
		return nil, &types.NoSuchKey{}
	}
	f.classes[*in.Key] = normalize(string(in.StorageClass))
	return &s3.CopyObjectOutput{}, nil
}

func normalize(class string) string {
	if class == "STANDARD" {
		return ""
	}
	return class
}
