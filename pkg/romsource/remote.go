package romsource

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// remoteTempDir is the process-scoped temporary directory used to stage
// fetched RemoteBlob content, acquired on first fetch and released via
// ReleaseRemoteBlobs when the command ends (the "remote fetch cache"
// design note).
var (
	remoteTempDirOnce sync.Once
	remoteTempDir     string
	remoteTempDirErr  error

	remoteBlobCacheMu sync.Mutex
	remoteBlobCache   = map[string]string{}

	// remoteHTTPClient is shared across fetches so retry/backoff state
	// and connection pooling are reused between blobs.
	remoteHTTPClient = retryablehttp.NewClient()
)

func init() {
	// The teacher's logging conventions favor silence by default; retryablehttp
	// logs retries to its own logger, which we don't want interleaved with
	// emuman's own structured warnings.
	remoteHTTPClient.Logger = nil
}

func ensureRemoteTempDir() (string, error) {
	remoteTempDirOnce.Do(func() {
		dir, err := os.MkdirTemp("", "emuman-remote-")
		remoteTempDir = dir
		remoteTempDirErr = err
	})
	return remoteTempDir, remoteTempDirErr
}

// ReleaseRemoteBlobs removes every temporary file created while fetching
// RemoteBlob parts during this command invocation.
func ReleaseRemoteBlobs() {
	remoteBlobCacheMu.Lock()
	defer remoteBlobCacheMu.Unlock()
	if remoteTempDir != "" {
		os.RemoveAll(remoteTempDir)
	}
	remoteBlobCache = map[string]string{}
}

// fetchRemoteBlob downloads url to a process-scoped temporary file on
// first access and returns its local path on every subsequent call,
// per spec §4.3: "Remote blobs are fetched to a process-scoped
// temporary file on first access, then treated as LooseFile for
// subsequent reads."
func fetchRemoteBlob(url string) (string, error) {
	remoteBlobCacheMu.Lock()
	if path, ok := remoteBlobCache[url]; ok {
		remoteBlobCacheMu.Unlock()
		return path, nil
	}
	remoteBlobCacheMu.Unlock()

	dir, err := ensureRemoteTempDir()
	if err != nil {
		return "", fmt.Errorf("unable to create remote blob cache directory: %w", err)
	}

	resp, err := remoteHTTPClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("unable to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unable to fetch %s: server returned %s", url, resp.Status)
	}

	localPath := filepath.Join(dir, uuid.NewString())
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("unable to create temporary file for %s: %w", url, err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("unable to save fetched content for %s: %w", url, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("unable to finalize fetched content for %s: %w", url, err)
	}

	remoteBlobCacheMu.Lock()
	remoteBlobCache[url] = localPath
	remoteBlobCacheMu.Unlock()

	return localPath, nil
}
