package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultHubURL is the Hugging Face hub base URL.
const DefaultHubURL = "https://huggingface.co"

// LockFileName is written into the output directory after a fetch.
const LockFileName = "download-manifest.lock.json"

// FetchOptions configures Fetch.
type FetchOptions struct {
	Repo    string
	OutDir  string
	HFToken string
	// BaseURL overrides DefaultHubURL.
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// ErrAccessDenied is returned when the hub rejects the request credentials.
type ErrAccessDenied struct {
	Repo string
	Msg  string
}

func (e *ErrAccessDenied) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("access denied for %s", e.Repo)
}

type lockManifest struct {
	Repo      string                `json:"repo"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

type fetcher struct {
	client  *http.Client
	baseURL string
	token   string
	repo    string
	logger  *slog.Logger
}

// Fetch downloads the pinned files of a repository into OutDir, verifying
// each against its pinned or hub-reported SHA-256. Files already present
// with the expected checksum are skipped.
func Fetch(ctx context.Context, opts FetchOptions) error {
	if opts.Repo == "" {
		return errors.New("repo is required")
	}
	if opts.OutDir == "" {
		return errors.New("out dir is required")
	}

	manifest, err := PinnedManifest(opts.Repo)
	if err != nil {
		return err
	}

	f := fetcher{
		client:  opts.Client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.HFToken,
		repo:    manifest.Repo,
		logger:  opts.Logger,
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	if f.baseURL == "" {
		f.baseURL = DefaultHubURL
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, LockFileName)
	lock := readLockManifest(lockPath)
	lock.Repo = opts.Repo
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	for _, file := range manifest.Files {
		expected, err := f.expectedChecksum(ctx, file, lock)
		if err != nil {
			return err
		}

		localPath := filepath.Join(opts.OutDir, filepath.FromSlash(file.Filename))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return fmt.Errorf("create local subdir: %w", err)
		}

		ok, err := existingMatches(localPath, expected)
		if err != nil {
			return err
		}
		if ok {
			f.logger.Info("model file up to date", "file", file.Filename, "sha256", expected)
			lock.Files[file.Filename] = lockRecord{Revision: file.Revision, SHA256: expected}
			continue
		}

		f.logger.Info("downloading model file", "repo", f.repo, "file", file.Filename, "revision", file.Revision, "path", localPath)
		actual, err := f.download(ctx, file, localPath)
		if err != nil {
			return err
		}
		if actual != expected {
			_ = os.Remove(localPath)
			return fmt.Errorf("checksum mismatch for %s: expected %s got %s", file.Filename, expected, actual)
		}

		f.logger.Info("verified model file", "file", file.Filename, "sha256", actual)
		lock.Files[file.Filename] = lockRecord{Revision: file.Revision, SHA256: expected}
	}

	if err := writeLockManifest(lockPath, lock); err != nil {
		return err
	}
	f.logger.Debug("wrote lock manifest", "path", lockPath)

	return nil
}

func (f fetcher) expectedChecksum(ctx context.Context, file ModelFile, lock lockManifest) (string, error) {
	if file.SHA256 != "" {
		return strings.ToLower(file.SHA256), nil
	}
	if rec, ok := lock.Files[file.Filename]; ok && rec.Revision == file.Revision && isSHA256Hex(rec.SHA256) {
		return strings.ToLower(rec.SHA256), nil
	}

	return f.resolveChecksum(ctx, file)
}

func (f fetcher) newRequest(ctx context.Context, method string, file ModelFile) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, resolveURL(f.baseURL, f.repo, file), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	return req, nil
}

func (f fetcher) checkStatus(resp *http.Response, file ModelFile) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ErrAccessDenied{
			Repo: f.repo,
			Msg:  fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", f.repo),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 399:
		return fmt.Errorf("request for %s failed: %s", file.Filename, resp.Status)
	}

	return nil
}

// resolveChecksum reads the LFS SHA-256 from the hub's response headers.
func (f fetcher) resolveChecksum(ctx context.Context, file ModelFile) (string, error) {
	req, err := f.newRequest(ctx, http.MethodHead, file)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata request failed for %s: %w", file.Filename, err)
	}
	defer resp.Body.Close()

	if err := f.checkStatus(resp, file); err != nil {
		return "", err
	}

	for _, key := range []string{"X-Linked-Etag", "X-Repo-Commit", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); isSHA256Hex(v) {
			return strings.ToLower(v), nil
		}
	}

	return "", fmt.Errorf("unable to resolve sha256 metadata for %s; pin a checksum", file.Filename)
}

// download streams file into outPath through a temporary file and returns
// the SHA-256 of the bytes written.
func (f fetcher) download(ctx context.Context, file ModelFile, outPath string) (string, error) {
	req, err := f.newRequest(ctx, http.MethodGet, file)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := f.checkStatus(resp, file); err != nil {
		return "", err
	}

	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(fh, h), resp.Body)
	closeErr := fh.Close()

	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", file.Filename, err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	f.logger.Debug("downloaded model file", "file", file.Filename, "bytes", written)

	return hex.EncodeToString(h.Sum(nil)), nil
}

func resolveURL(baseURL, repo string, file ModelFile) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", baseURL, repo, file.Revision, file.Filename)
}

func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}

	actual, err := FileSHA256(path)
	if err != nil {
		return false, err
	}

	return actual == expected, nil
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, "\"")
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

// FileSHA256 returns the hex SHA-256 of a file.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(path string) lockManifest {
	out := lockManifest{Files: map[string]lockRecord{}}

	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}

	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}

	return nil
}
