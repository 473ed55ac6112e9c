package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/adbshell/types"
)

func testMeta() *types.InvocationMeta {
	return &types.InvocationMeta{
		InvocationID: "0b6f2f5e-7f43-4a8e-9a53-2b2f0c1d9e11",
		Serial:       "emulator-5554",
		Command:      "getprop",
		StartedAt:    time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("PST", -8*3600)),
	}
}

func TestKey(t *testing.T) {
	key, err := Key(testMeta())
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	// StartedAt is normalized to UTC before partitioning by day.
	want := "serial=emulator-5554/day=2026-03-10/invocation_id=0b6f2f5e-7f43-4a8e-9a53-2b2f0c1d9e11/output.bin"
	if key != want {
		t.Errorf("Key = %q, want %q", key, want)
	}
}

func TestKey_NoSerial(t *testing.T) {
	meta := testMeta()
	meta.Serial = ""
	key, err := Key(meta)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if !strings.HasPrefix(key, "serial=_/") {
		t.Errorf("Key = %q, want serial=_ partition", key)
	}
}

func TestKey_InvalidMeta(t *testing.T) {
	meta := testMeta()
	meta.Serial = "../etc"
	if _, err := Key(meta); err == nil {
		t.Fatal("expected error for serial with path separator")
	}
	if _, err := Key(nil); err == nil {
		t.Fatal("expected error for nil meta")
	}
}

func TestFileSink_Put(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	loc, err := Store(context.Background(), sink, testMeta(), []byte("line1\nline2"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !strings.HasPrefix(loc, root) {
		t.Errorf("location %q not under root %q", loc, root)
	}
	if filepath.Base(loc) != ObjectName {
		t.Errorf("location base = %q, want %q", filepath.Base(loc), ObjectName)
	}

	got, err := os.ReadFile(loc)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "line1\nline2" {
		t.Errorf("content = %q", got)
	}

	// Overwrite in place.
	if _, err := sink.Put(context.Background(), "a/b/output.bin", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := sink.Put(context.Background(), "a/b/output.bin", []byte("y")); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	got, _ = os.ReadFile(filepath.Join(root, "a", "b", "output.bin"))
	if string(got) != "y" {
		t.Errorf("content after overwrite = %q, want %q", got, "y")
	}

	entries, _ := os.ReadDir(filepath.Join(root, "a", "b"))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestFileSink_CanceledContext(t *testing.T) {
	sink, _ := NewFileSink(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sink.Put(ctx, "k", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFileSink_RootIsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink, _ := NewFileSink(root)
	_, err := sink.Put(context.Background(), "a/output.bin", []byte("x"))
	if err == nil {
		t.Fatal("expected error writing beneath a regular file")
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if se.Op != "put" {
		t.Errorf("Op = %q, want put", se.Op)
	}
}

func TestNewFileSink_Empty(t *testing.T) {
	if _, err := NewFileSink(""); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestStore_NilSink(t *testing.T) {
	if _, err := Store(context.Background(), nil, testMeta(), nil); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/a/b/", "bucket", "a/b"},
		{"s3://bucket/out", "bucket", "out"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, prefix := ParseS3Path(tt.in)
			if bucket != tt.bucket || prefix != tt.prefix {
				t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.in, bucket, prefix, tt.bucket, tt.prefix)
			}
		})
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("expected error for empty bucket")
	}
	if err := (&S3Config{Bucket: "a/b"}).Validate(); err == nil {
		t.Error("expected error for bucket with slash")
	}
	if err := (&S3Config{Bucket: "captures"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	buf := make([]byte, *in.ContentLength)
	n, _ := in.Body.Read(buf)
	f.body = buf[:n]
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Put(t *testing.T) {
	fake := &fakePutter{}
	sink := newS3Sink(fake, S3Config{Bucket: "captures", Prefix: "/adb/"})

	loc, err := sink.Put(context.Background(), "serial=x/output.bin", []byte("abc"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if loc != "s3://captures/adb/serial=x/output.bin" {
		t.Errorf("location = %q", loc)
	}
	if *fake.input.Bucket != "captures" || *fake.input.Key != "adb/serial=x/output.bin" {
		t.Errorf("input = %s/%s", *fake.input.Bucket, *fake.input.Key)
	}
	if string(fake.body) != "abc" {
		t.Errorf("body = %q", fake.body)
	}
}

func TestS3Sink_PutClassifiesError(t *testing.T) {
	fake := &fakePutter{err: errors.New("api error AccessDenied: Access Denied")}
	sink := newS3Sink(fake, S3Config{Bucket: "captures"})

	_, err := sink.Put(context.Background(), "k", []byte("x"))
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"deadline", "context deadline exceeded", ErrTimeout},
		{"forbidden", "received status 403", ErrAccessDenied},
		{"permission", "open /data/out: permission denied", ErrPermissionDenied},
		{"no such bucket", "NoSuchBucket: bucket does not exist", ErrNotFound},
		{"disk full", "write /data: no space left on device", ErrDiskFull},
		{"throttled", "SlowDown: reduce your request rate", ErrThrottled},
		{"credentials", "NoCredentialProviders: no valid providers", ErrAuth},
		{"network", "dial tcp 10.0.0.1:443: connection refused", ErrNetwork},
		{"other", "something odd", ErrUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if got != tt.wantKind {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("boom")
	err := wrapError(cause, "put", "/tmp/x")
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if !errors.Is(err, ErrUnclassified) {
		t.Error("expected ErrUnclassified kind")
	}
	if got := err.Error(); got != "put /tmp/x: storage error: boom" {
		t.Errorf("Error() = %q", got)
	}
	if wrapError(nil, "put", "") != nil {
		t.Error("wrapError(nil) should be nil")
	}
}
