package blob

import (
	"context"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	fs, err := Open(ctx, Options{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fs.Driver() != DriverFilesystem {
		t.Fatalf("default driver = %s", fs.Driver())
	}
	mem, err := Open(ctx, Options{Driver: "memory"})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("open memory: %v %v", mem, err)
	}
	s3, err := Open(ctx, Options{Driver: "s3", S3: S3Config{Bucket: "reports", Region: "us-east-1"}})
	if err != nil || s3.Driver() != DriverS3 {
		t.Fatalf("open s3: %v", err)
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Options{Driver: "fs"}); err == nil {
		t.Fatalf("expected missing root error")
	}
	if _, err := Open(ctx, Options{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
