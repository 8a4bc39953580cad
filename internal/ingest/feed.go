package ingest

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
)

// FeedPattern matches price feed files inside a data directory.
const FeedPattern = "*.jsonl.gz"

const maxLineSize = 1 << 20

// DiscoverFeeds returns the feed files in dir in lexical order. Later files
// take precedence over earlier ones.
func DiscoverFeeds(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, FeedPattern))
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", dir)
	}
	slices.Sort(files)
	return files, nil
}

// streamFeed decompresses path and calls fn for every non-empty line. The
// line slice is only valid during the call.
func streamFeed(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
