package configfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// Options controls how configuration files are found and flattened.
type Options struct {
	Root      string // directory patterns are resolved against
	Pattern   string // glob; supports ** and {a,b}
	Format    Format
	Separator string
	Depth     int // 0 means no limit
}

// Discover returns the absolute paths of files under root matching
// pattern, sorted.
func Discover(root, pattern string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var matches []string
	if filepath.IsAbs(pattern) {
		matches, err = doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	} else {
		matches, err = doublestar.Glob(os.DirFS(root), filepath.ToSlash(pattern), doublestar.WithFilesOnly())
		for i, m := range matches {
			matches[i] = filepath.Join(root, filepath.FromSlash(m))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("matching %q: %w", pattern, err)
	}

	for i, m := range matches {
		if abs, err := filepath.Abs(m); err == nil {
			matches[i] = abs
		}
	}
	slices.Sort(matches)
	return matches, nil
}

// Load finds, parses, merges and flattens the configuration files.
// Later files override earlier ones.
func Load(ctx context.Context, opts Options) ([]kvs.KeyValue, error) {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Loading configuration files")

	files, err := Discover(opts.Root, opts.Pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &ArgumentError{Message: "No configuration files found"}
	}

	docs := make([]any, 0, len(files))
	for _, f := range files {
		log.Info().Str("format", opts.Format.String()).Str("file", f).Msg("Parsing configuration file")
		doc, err := ParseFile(f, opts.Format)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	log.Info().Msg("Merging loaded configuration")
	merged := Merge(docs...)

	log.Info().Msg("Flattening loaded configuration")
	return Flatten(merged, opts.Separator, opts.Depth)
}
