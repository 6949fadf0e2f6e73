package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

func TestClassify(t *testing.T) {
	base := errors.New("provider said no")
	tests := []struct {
		code string
		want error
	}{
		{"InvalidAccessKeyId", ErrCredentials},
		{"SignatureDoesNotMatch", ErrCredentials},
		{"AccessDenied", ErrCredentials},
		{"NoSuchKey", ErrObjectNotFound},
		{"NoSuchBucket", ErrObjectNotFound},
		{"SlowDown", ErrTransport},
		{"", ErrTransport},
	}
	for _, tt := range tests {
		err := classify(tt.code, base)
		if !errors.Is(err, tt.want) {
			t.Fatalf("code %q: expected %v, got %v", tt.code, tt.want, err)
		}
		if !errors.Is(err, base) {
			t.Fatalf("code %q: expected original error to stay in the chain", tt.code)
		}
	}
}

func TestClassifyProviderErrors(t *testing.T) {
	s3Err := &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	if err := classifyS3(s3Err); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected not found for S3 NoSuchKey, got %v", err)
	}

	minioErr := minio.ErrorResponse{Code: "AccessDenied", Message: "denied"}
	if err := classifyMinio(minioErr); !errors.Is(err, ErrCredentials) {
		t.Fatalf("expected credentials error for MinIO AccessDenied, got %v", err)
	}

	if err := classifyMinio(errors.New("dial tcp: connection refused")); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error for network failure, got %v", err)
	}
}

func TestResolveLocalPath(t *testing.T) {
	root := t.TempDir()

	got, err := ResolveLocalPath(root, "audio/music.mp3")
	if err != nil {
		t.Fatalf("resolve relative path: %v", err)
	}
	if got != filepath.Join(root, "audio", "music.mp3") {
		t.Fatalf("unexpected resolved path: %s", got)
	}

	abs := filepath.Join(root, "photo.JPG")
	if got, err := ResolveLocalPath(root, abs); err != nil || got != abs {
		t.Fatalf("expected absolute path inside root to resolve, got %q err=%v", got, err)
	}

	for _, bad := range []string{"", "../etc/passwd", "a/../../outside", "/etc/passwd", "."} {
		if _, err := ResolveLocalPath(root, bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("path %q: expected ErrInvalidPath, got %v", bad, err)
		}
	}
}

func TestResolveLocalPathSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "secret.txt")); err != nil {
		t.Fatalf("symlink file: %v", err)
	}

	for _, bad := range []string{"link/secret", "link/new.txt", "link/deeper/new.txt", "secret.txt"} {
		if _, err := ResolveLocalPath(root, bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("path %q: expected ErrInvalidPath, got %v", bad, err)
		}
	}

	if err := os.Mkdir(filepath.Join(root, "audio"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "audio"), filepath.Join(root, "music")); err != nil {
		t.Fatalf("symlink inside root: %v", err)
	}
	if _, err := ResolveLocalPath(root, "music/track.mp3"); err != nil {
		t.Fatalf("expected link that stays inside root to resolve, got %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	if got := publicURL("", "lovabledog", "audio_test.mp3"); got != "https://lovabledog.s3.amazonaws.com/audio_test.mp3" {
		t.Fatalf("unexpected AWS url: %s", got)
	}
	if got := publicURL("http://localhost:9000/", "media", "a b/c.jpg"); got != "http://localhost:9000/media/a%20b/c.jpg" {
		t.Fatalf("unexpected endpoint url: %s", got)
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("photo.JPG"); got != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", got)
	}
	if got := contentType("blob"); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream fallback, got %s", got)
	}
}

// fakeS3 serves the few S3 calls the stores make, with path-style addressing
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	denyAll bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.denyAll {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>InvalidAccessKeyId</Code><Message>bad key</Message></Error>`)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`)
	case r.Method == http.MethodGet && path == "":
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<ListAllMyBucketsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`+
			`<Owner><ID>owner</ID></Owner><Buckets>`+
			`<Bucket><Name>lovabledog</Name><CreationDate>2024-01-01T00:00:00.000Z</CreationDate></Bucket>`+
			`</Buckets></ListAllMyBucketsResult>`)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
			body = decodeChunked(body)
		}
		f.objects[path] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		body, ok := f.objects[path]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
		if r.Method == http.MethodGet {
			w.Write(body)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeChunked strips aws-chunked framing: "<hex size>;chunk-signature=...\r\n<data>\r\n"
// repeated until a zero-sized chunk
func decodeChunked(body []byte) []byte {
	var out bytes.Buffer
	rd := bufio.NewReader(bytes.NewReader(body))
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return out.Bytes()
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size == 0 {
			return out.Bytes()
		}
		if _, err := io.CopyN(&out, rd, size); err != nil {
			return out.Bytes()
		}
		rd.ReadString('\n')
	}
}

func newFakeS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewS3Store(context.Background(), S3Options{
		Region:    "us-east-1",
		AccessKey: "AKIDTEST",
		SecretKey: "secret",
		Endpoint:  server.URL,
	})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	return store
}

func TestS3StoreRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	store := newFakeS3Store(t, fake)
	ctx := context.Background()
	dir := t.TempDir()

	buckets, err := store.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(buckets) != 1 || buckets[0] != "lovabledog" {
		t.Fatalf("unexpected buckets: %v", buckets)
	}

	src := filepath.Join(dir, "requirements.txt")
	if err := os.WriteFile(src, []byte("fastapi\n"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	url, err := store.Upload(ctx, src, "lovabledog", "text_test.txt")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasSuffix(url, "/lovabledog/text_test.txt") {
		t.Fatalf("unexpected url: %s", url)
	}
	if string(fake.objects["lovabledog/text_test.txt"]) != "fastapi\n" {
		t.Fatalf("fake server did not receive the file body: %q", fake.objects["lovabledog/text_test.txt"])
	}

	dst := filepath.Join(dir, "copy.txt")
	if err := store.Download(ctx, "lovabledog", "text_test.txt", dst); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "fastapi\n" {
		t.Fatalf("unexpected downloaded content %q err=%v", data, err)
	}
}

func TestS3StoreTypedErrors(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	store := newFakeS3Store(t, fake)
	ctx := context.Background()
	dir := t.TempDir()

	err := store.Download(ctx, "lovabledog", "test.mp3", filepath.Join(dir, "music.mp3"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "music.mp3")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no local file after failed download")
	}

	if _, err := store.Upload(ctx, filepath.Join(dir, "absent.mp4"), "lovabledog", "video_test.mp4"); !errors.Is(err, ErrLocalFile) {
		t.Fatalf("expected ErrLocalFile, got %v", err)
	}

	fake.mu.Lock()
	fake.denyAll = true
	fake.mu.Unlock()
	if _, err := store.Check(ctx); !errors.Is(err, ErrCredentials) {
		t.Fatalf("expected ErrCredentials, got %v", err)
	}
}

func newFakeMinioStore(t *testing.T, fake *fakeS3) *MinioStore {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewMinioStore(MinioOptions{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	if err != nil {
		t.Fatalf("new minio store: %v", err)
	}
	return store
}

func TestMinioStoreRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	store := newFakeMinioStore(t, fake)
	ctx := context.Background()
	dir := t.TempDir()

	buckets, err := store.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(buckets) != 1 || buckets[0] != "lovabledog" {
		t.Fatalf("unexpected buckets: %v", buckets)
	}

	src := filepath.Join(dir, "requirements.txt")
	if err := os.WriteFile(src, []byte("fastapi\n"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	url, err := store.Upload(ctx, src, "lovabledog", "text_test.txt")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "http://") || !strings.HasSuffix(url, "/lovabledog/text_test.txt") {
		t.Fatalf("unexpected url: %s", url)
	}
	fake.mu.Lock()
	stored := string(fake.objects["lovabledog/text_test.txt"])
	fake.mu.Unlock()
	if stored != "fastapi\n" {
		t.Fatalf("fake server did not receive the file body: %q", stored)
	}

	dst := filepath.Join(dir, "copy.txt")
	if err := store.Download(ctx, "lovabledog", "text_test.txt", dst); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "fastapi\n" {
		t.Fatalf("unexpected downloaded content %q err=%v", data, err)
	}
}

func TestMinioStoreTypedErrors(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	store := newFakeMinioStore(t, fake)
	ctx := context.Background()
	dir := t.TempDir()

	if err := store.Download(ctx, "lovabledog", "test.mp3", filepath.Join(dir, "music.mp3")); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, err := store.Upload(ctx, filepath.Join(dir, "absent.mp4"), "lovabledog", "video_test.mp4"); !errors.Is(err, ErrLocalFile) {
		t.Fatalf("expected ErrLocalFile, got %v", err)
	}

	fake.mu.Lock()
	fake.denyAll = true
	fake.mu.Unlock()
	if _, err := store.Check(ctx); !errors.Is(err, ErrCredentials) {
		t.Fatalf("expected ErrCredentials, got %v", err)
	}
}
