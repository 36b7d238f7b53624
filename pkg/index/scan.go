package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tuffy/emuman/pkg/logging"
	"github.com/tuffy/emuman/pkg/romsource"
	"github.com/tuffy/emuman/pkg/workerpool"
	"github.com/tuffy/emuman/pkg/xattrcache"
)

// Stats summarizes one Scan invocation and is returned to Scan's caller.
type Stats struct {
	FilesScanned    int64
	ArchivesScanned int64
	ArchiveEntries  int64
	CacheHits       int64
	CacheMisses     int64
	BytesDigested   int64
	PartsFailed     int64
}

func (s *Stats) addCacheHit()  { atomic.AddInt64(&s.CacheHits, 1) }
func (s *Stats) addCacheMiss() { atomic.AddInt64(&s.CacheMisses, 1) }

// Scan walks every root (a directory, a loose file, an archive file, or
// a URL) and populates idx with (digest -> Ref) entries for everything
// it finds, per spec §4.4. Directory roots are walked recursively;
// every regular file underneath is classified by extension as either a
// standalone LooseFile or an archive whose entries are each indexed as
// an ArchiveEntry. A root recognized as a URL (http:// or https://
// prefix) is indexed as a single RemoteBlob.
//
// Loose files consult cache before hashing and write through to it on a
// miss (spec §4.2); archive entries, remote blobs, and byte slices skip
// the cache, since the attribute is only meaningful for a stable path on
// a local filesystem.
//
// Scan dispatches digesting work across pool, but root discovery
// (directory walking, archive entry listing) happens synchronously on
// the calling goroutine since it is metadata-only and order-sensitive
// for error reporting. Per spec §7, a NetworkError or IoError digesting
// one part (an unreachable URL, a corrupt archive entry, an unreadable
// loose file) is fatal only to that part: it is logged and counted in
// Stats.PartsFailed, its bytes simply never enter idx, and every other
// task keeps running. Scan's returned error is reserved for conditions
// that make the scan itself meaningless to continue — a root that
// cannot be stat'd, a directory walk that cannot proceed, or an archive
// whose entry list cannot be read.
func Scan(roots []string, idx *Index, cache *xattrcache.Cache, pool *workerpool.Pool, logger *logging.Logger) (Stats, error) {
	var stats Stats

	for _, root := range roots {
		if isRemoteURL(root) {
			scanRemoteBlob(root, idx, pool, logger, &stats)
			continue
		}

		info, err := os.Stat(root)
		if err != nil {
			return stats, fmt.Errorf("unable to stat scan root %s: %w", root, err)
		}

		if info.IsDir() {
			if err := scanDirectory(root, idx, cache, pool, logger, &stats); err != nil {
				return stats, err
			}
			continue
		}

		if err := scanFile(root, info, idx, cache, pool, logger, &stats); err != nil {
			return stats, err
		}
	}

	if err := pool.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func isRemoteURL(root string) bool {
	return strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://")
}

func scanDirectory(root string, idx *Index, cache *xattrcache.Cache, pool *workerpool.Pool, logger *logging.Logger, stats *Stats) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("unable to walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("unable to stat %s: %w", path, err)
		}
		return scanFile(path, info, idx, cache, pool, logger, stats)
	})
}

// scanFile classifies a single regular file: a recognized archive
// extension fans out one task per entry, everything else is a single
// LooseFile task.
func scanFile(path string, info fs.FileInfo, idx *Index, cache *xattrcache.Cache, pool *workerpool.Pool, logger *logging.Logger, stats *Stats) error {
	switch archiveKindForExtension(path) {
	case archiveKindZip:
		return scanArchive(path, romsource.NewZipEntry, romsource.ListZipEntries, idx, pool, logger, stats)
	case archiveKindSevenZip:
		return scanArchive(path, romsource.NewSevenZipEntry, romsource.ListSevenZipEntries, idx, pool, logger, stats)
	default:
		atomic.AddInt64(&stats.FilesScanned, 1)
		ref := romsource.NewLooseFile(path, info.Size())
		scanLooseFileTask(ref, path, info, idx, cache, pool, logger, stats)
		return nil
	}
}

type archiveKind int

const (
	archiveKindNone archiveKind = iota
	archiveKindZip
	archiveKindSevenZip
)

func archiveKindForExtension(path string) archiveKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return archiveKindZip
	case ".7z":
		return archiveKindSevenZip
	default:
		return archiveKindNone
	}
}

func scanArchive(
	path string,
	newEntry func(archivePath, entryName string, size int64) romsource.Ref,
	listEntries func(path string) ([]romsource.EntryInfo, error),
	idx *Index,
	pool *workerpool.Pool,
	logger *logging.Logger,
	stats *Stats,
) error {
	entries, err := listEntries(path)
	if err != nil {
		return fmt.Errorf("unable to list archive %s: %w", path, err)
	}
	atomic.AddInt64(&stats.ArchivesScanned, 1)

	for _, entry := range entries {
		entry := entry
		atomic.AddInt64(&stats.ArchiveEntries, 1)
		ref := newEntry(path, entry.Name, int64(entry.Size))
		pool.Go(func() error {
			d, n, err := ref.Digest()
			if err != nil {
				logger.Error(fmt.Errorf("unable to digest %s: %w", ref, err))
				atomic.AddInt64(&stats.PartsFailed, 1)
				return nil
			}
			atomic.AddInt64(&stats.BytesDigested, int64(n))
			idx.Insert(d, ref)
			return nil
		})
	}
	return nil
}

func scanLooseFileTask(ref romsource.Ref, path string, info fs.FileInfo, idx *Index, cache *xattrcache.Cache, pool *workerpool.Pool, logger *logging.Logger, stats *Stats) {
	pool.Go(func() error {
		if cache != nil {
			if d, ok := cache.Lookup(path, info); ok {
				stats.addCacheHit()
				idx.Insert(d, ref)
				return nil
			}
		}
		stats.addCacheMiss()

		d, n, err := ref.Digest()
		if err != nil {
			logger.Error(fmt.Errorf("unable to digest %s: %w", path, err))
			atomic.AddInt64(&stats.PartsFailed, 1)
			return nil
		}
		atomic.AddInt64(&stats.BytesDigested, int64(n))

		if cache != nil {
			cache.Store(path, info, d)
		}
		idx.Insert(d, ref)
		return nil
	})
}

func scanRemoteBlob(url string, idx *Index, pool *workerpool.Pool, logger *logging.Logger, stats *Stats) {
	ref := romsource.NewRemoteBlob(url)
	pool.Go(func() error {
		d, n, err := ref.Digest()
		if err != nil {
			logger.Error(fmt.Errorf("unable to fetch/digest %s: %w", url, err))
			atomic.AddInt64(&stats.PartsFailed, 1)
			return nil
		}
		atomic.AddInt64(&stats.BytesDigested, int64(n))
		idx.Insert(d, ref)
		return nil
	})
}

