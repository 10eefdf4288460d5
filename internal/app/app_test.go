package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/newthinker/archivist/internal/config"
	"github.com/newthinker/archivist/internal/core"
	"github.com/newthinker/archivist/internal/tracker"
)

func filesystemConfig(t *testing.T) (*config.Config, string, string) {
	t.Helper()
	base := t.TempDir()
	active := filepath.Join(base, "active")
	archived := filepath.Join(base, "archive")
	os.MkdirAll(active, 0755)
	os.MkdirAll(archived, 0755)

	cfg := config.Defaults()
	cfg.Backend.Filesystem = config.FilesystemConfig{ActiveRoot: active, ArchiveRoot: archived}
	cfg.Tracker = config.TrackerConfig{Type: config.TrackerMemory}
	return cfg, active, archived
}

func TestNew_Filesystem(t *testing.T) {
	cfg, active, archived := filesystemConfig(t)
	cfg.Lease.Backend = config.LeaseMemory

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	defer a.Close()

	if a.Coordinator().Backend() != "filesystem" {
		t.Errorf("expected filesystem backend, got %s", a.Coordinator().Backend())
	}
	if a.Metrics() == nil {
		t.Error("expected metrics to be enabled by default")
	}

	mem, ok := a.Tracker().(*tracker.MemoryTracker)
	if !ok {
		t.Fatalf("expected memory tracker, got %T", a.Tracker())
	}
	path := filepath.Join(active, "doc.txt")
	os.WriteFile(path, []byte("x"), 0644)
	mem.Put(core.ManagedObject{ID: "obj-1", Status: core.StatusProcessed, Location: core.Location{FilePath: path}})

	res, err := a.Submit(context.Background(), core.OperationRequest{
		ObjectID:     "obj-1",
		ResourceKind: core.ResourceKindFile,
		Operation:    core.OperationArchive,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Outcome != core.OutcomeTransitioned {
		t.Errorf("expected transitioned, got %s", res.Outcome)
	}
	if _, err := os.Stat(filepath.Join(archived, "doc.txt")); err != nil {
		t.Errorf("expected archived file: %v", err)
	}
	if a.Journal().Len() != 1 {
		t.Errorf("expected 1 journal record, got %d", a.Journal().Len())
	}
}

func TestNew_S3(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backend.Type = config.BackendS3
	cfg.Backend.S3.Endpoint = "http://127.0.0.1:9000"
	cfg.Backend.S3.Bucket = "bucket"
	cfg.Backend.S3.AccessKey = "ak"
	cfg.Backend.S3.SecretKey = "sk"
	cfg.Tracker = config.TrackerConfig{Type: config.TrackerHTTP, BaseURL: "http://tracker.local"}
	cfg.Metrics.Enabled = false

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	defer a.Close()

	if a.Coordinator().Backend() != "s3" {
		t.Errorf("expected s3 backend, got %s", a.Coordinator().Backend())
	}
	if a.Metrics() != nil {
		t.Error("expected metrics to be disabled")
	}
}

func TestNew_RedisLease(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg, _, _ := filesystemConfig(t)
	cfg.Lease.Backend = config.LeaseRedis
	cfg.Lease.Redis.Addr = mr.Addr()

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestNew_FailureClosesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg, _, _ := filesystemConfig(t)
	cfg.Lease.Backend = config.LeaseRedis
	cfg.Lease.Redis.Addr = mr.Addr()
	cfg.Alerts.Webhook.URL = "ftp://hooks.example.com"

	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error for a non-http webhook")
	}

	deadline := time.Now().Add(2 * time.Second)
	for mr.CurrentConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected redis connections to be closed, %d open", mr.CurrentConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew_MemoryTrackerSeed(t *testing.T) {
	cfg, active, archived := filesystemConfig(t)
	path := filepath.Join(active, "reports", "q1.pdf")
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("x"), 0644)
	cfg.Tracker.Objects = []config.TrackedObject{
		{ID: "obj-1", Status: "processed", FilePath: path},
		{ID: "obj-2", Status: "ARCHIVED", FilePath: filepath.Join(active, "old.txt")},
	}

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	defer a.Close()

	res, err := a.Submit(context.Background(), core.OperationRequest{
		ObjectID:     "obj-1",
		ResourceKind: core.ResourceKindFile,
		Operation:    core.OperationArchive,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Outcome != core.OutcomeTransitioned || res.Status != core.StatusArchived {
		t.Errorf("expected transitioned to ARCHIVED, got %s %s", res.Outcome, res.Status)
	}
	if _, err := os.Stat(filepath.Join(archived, "reports", "q1.pdf")); err != nil {
		t.Errorf("expected archived file: %v", err)
	}

	res, err = a.Submit(context.Background(), core.OperationRequest{
		ObjectID:     "obj-2",
		ResourceKind: core.ResourceKindFile,
		Operation:    core.OperationArchive,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Outcome != core.OutcomeAlreadyInTargetState {
		t.Errorf("expected seeded ARCHIVED object to be a no-op, got %s", res.Outcome)
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg, _, _ := filesystemConfig(t)
	cfg.Lease.Backend = config.LeaseRedis
	cfg.Lease.Redis.Addr = "127.0.0.1:1"

	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestNew_InvalidBackend(t *testing.T) {
	cfg, _, _ := filesystemConfig(t)
	cfg.Backend.Type = "tape"

	_, err := New(cfg, nil)
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestNew_OverlappingRoots(t *testing.T) {
	cfg, active, _ := filesystemConfig(t)
	cfg.Backend.Filesystem.ArchiveRoot = filepath.Join(active, "archive")

	_, err := New(cfg, nil)
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestSubmit_IgnoredAction(t *testing.T) {
	cfg, _, _ := filesystemConfig(t)

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	res, err := a.Submit(context.Background(), core.OperationRequest{
		ObjectID:     "obj-1",
		ResourceKind: core.ResourceKindFile,
		Operation:    core.OperationArchive,
		Action:       "scheduled-scan",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != core.OutcomeIgnored {
		t.Errorf("expected ignored, got %s", res.Outcome)
	}
}

func TestNew_AlertWebhook(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg, active, _ := filesystemConfig(t)
	cfg.Alerts.Webhook.URL = hook.URL

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	mem := a.Tracker().(*tracker.MemoryTracker)
	path := filepath.Join(active, "doc.txt")
	os.WriteFile(path, []byte("x"), 0644)
	mem.Put(core.ManagedObject{ID: "obj-1", Status: core.StatusProcessed, Location: core.Location{FilePath: path}})
	mem.SetErr = errors.New("tracker down")

	_, err = a.Coordinator().Archive(context.Background(), "obj-1")
	if !errors.Is(err, core.ErrStatusReportFailed) {
		t.Fatalf("expected STATUS_REPORT_FAILED, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 alert, got %d", hits.Load())
	}
}
