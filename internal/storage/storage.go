// Package storage uploads and downloads media files against an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrCredentials means the provider rejected the configured credentials
	ErrCredentials = errors.New("object storage credentials rejected")
	// ErrObjectNotFound means the bucket or key does not exist
	ErrObjectNotFound = errors.New("object not found")
	// ErrTransport covers every other provider or network failure
	ErrTransport = errors.New("object storage request failed")
	// ErrInvalidPath means a local path escapes the media directory
	ErrInvalidPath = errors.New("path outside media directory")
	// ErrLocalFile means the local file cannot be read
	ErrLocalFile = errors.New("local file unavailable")
)

// ObjectStore is the narrow contract the HTTP layer relies on
type ObjectStore interface {
	// Check lists bucket names to prove the provider is reachable
	Check(ctx context.Context) ([]string, error)
	// Upload copies a local file to bucket/key and returns its public URL
	Upload(ctx context.Context, localPath, bucket, key string) (string, error)
	// Download copies bucket/key into a local file
	Download(ctx context.Context, bucket, key, localPath string) error
}

var (
	credentialCodes = map[string]bool{
		"InvalidAccessKeyId":    true,
		"SignatureDoesNotMatch": true,
		"AccessDenied":          true,
		"ExpiredToken":          true,
		"InvalidToken":          true,
		"InvalidClientTokenId":  true,
	}
	notFoundCodes = map[string]bool{
		"NoSuchKey":    true,
		"NoSuchBucket": true,
		"NotFound":     true,
	}
)

// classify maps a provider error code onto the package's error kinds
func classify(code string, err error) error {
	switch {
	case credentialCodes[code]:
		return fmt.Errorf("%w: %w", ErrCredentials, err)
	case notFoundCodes[code]:
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// ResolveLocalPath resolves p against root and rejects anything outside root
func ResolveLocalPath(root, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media directory: %w", err)
	}

	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	if !within(absRoot, candidate) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}

	// Symlinks are followed on the existing part of the path, so a link
	// inside root cannot point the request at a file outside it.
	realRoot, err := evalExisting(absRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media directory: %w", err)
	}
	realCandidate, err := evalExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	if !within(realRoot, realCandidate) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return candidate, nil
}

// within reports whether path lies strictly below root
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// evalExisting resolves symlinks on the longest existing prefix of path and
// appends the rest unchanged
func evalExisting(path string) (string, error) {
	existing, rest := path, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolved, rest), nil
}

// statLocal checks that path names a readable regular file
func statLocal(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalFile, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrLocalFile, path)
	}
	return info, nil
}

func contentType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// publicURL builds a path-style URL for a custom endpoint, or the virtual-hosted
// AWS form when endpoint is empty
func publicURL(endpoint, bucket, key string) string {
	if endpoint == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, escapeKey(key))
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(endpoint, "/"), bucket, escapeKey(key))
}
