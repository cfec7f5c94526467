package main

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	deduper "github.com/FloGa/crazy-deduper"
	"github.com/FloGa/crazy-deduper/catalog"
	"github.com/FloGa/crazy-deduper/catalogcodec"
	"github.com/FloGa/crazy-deduper/chunk"
	"github.com/FloGa/crazy-deduper/chunkstore"
	"github.com/FloGa/crazy-deduper/hydrator"
	"github.com/FloGa/crazy-deduper/scanner"
)

type flags struct {
	cacheFiles       []string
	hashingAlgorithm string
	sameFileSystem   bool
	declutterLevels  int
	hydrate          bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "deduper <source> <target>",
		Short: "Content-addressed directory deduplication and hydration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], args[1], f)
		},
	}

	cmd.Flags().StringArrayVar(&f.cacheFiles, "cache-file", nil,
		"catalog file, most accurate first (repeatable)")
	cmd.Flags().StringVar(&f.hashingAlgorithm, "hashing-algorithm", string(deduper.SHA1),
		"one of md5, sha1, sha256, sha512")
	cmd.Flags().BoolVar(&f.sameFileSystem, "same-file-system", false,
		"do not descend into mount points other than the source's own")
	cmd.Flags().IntVar(&f.declutterLevels, "declutter-levels", 0,
		"number of single-character directory levels to prefix chunk files with")
	cmd.Flags().BoolVarP(&f.hydrate, "hydrate", "d", false,
		"reconstruct files from a chunk store instead of deduplicating into one")
	cmd.Flags().BoolVar(&f.hydrate, "decode", false, "alias for --hydrate")
	cmd.Flags().Lookup("decode").Hidden = true

	return cmd
}

func run(ctx context.Context, source, target string, f *flags) error {
	algorithm, err := deduper.ParseHashingAlgorithm(f.hashingAlgorithm)
	if err != nil {
		return err
	}

	if f.hydrate {
		return runHydrate(source, target, f, algorithm)
	}
	return runDedup(ctx, source, target, f, algorithm)
}

// runDedup implements the default mode: scan <source>, write chunks
// under <target>/data/, write the first --cache-file atomically.
func runDedup(ctx context.Context, source, target string, f *flags, algorithm deduper.HashingAlgorithm) error {
	res, err := scanner.Scan(scanner.Options{
		Source:         source,
		CacheFiles:     f.cacheFiles,
		Algorithm:      string(algorithm),
		SameFileSystem: f.sameFileSystem,
	})
	if err != nil {
		return errors.Wrap(err, "scan")
	}

	store := chunkstore.New(target, f.declutterLevels)
	chunker := chunk.Chunker{Algorithm: algorithm}

	compute := func(r *catalog.FileRecord) ([]chunk.Ref, error) {
		base := r.Base
		if base == "" {
			base = source
		}
		full := filepath.Join(base, filepath.FromSlash(r.Path))
		return chunker.Chunk(ctx, full, int64(r.Size))
	}

	for ev, err := range res.Catalog.StreamChunks(compute) {
		if err != nil {
			return errors.Wrap(err, "chunk")
		}
		if err := store.SaveFrom(ev.Ref.Hash, ev.Ref.SourcePath, int64(ev.Ref.Start), int64(ev.Ref.Size)); err != nil {
			return errors.Wrap(err, "materialize chunk")
		}
	}

	if res.WritePath != "" {
		if err := catalogcodec.Save(res.WritePath, res.Catalog); err != nil {
			return errors.Wrap(err, "write catalog")
		}
	}

	logrus.WithFields(logrus.Fields{
		"source": source,
		"target": target,
		"files":  res.Catalog.Len(),
	}).Info("deduplication complete")
	return nil
}

// runHydrate implements the -d mode: read catalogs, reconstruct files
// from <source>/data/ into <target>.
func runHydrate(source, target string, f *flags, algorithm deduper.HashingAlgorithm) error {
	c := catalog.New(string(algorithm))
	for i := len(f.cacheFiles) - 1; i >= 0; i-- {
		loaded := catalogcodec.Load(f.cacheFiles[i])
		for _, r := range loaded.Values() {
			c.Insert(r)
		}
	}

	store := chunkstore.New(source, f.declutterLevels)
	h := hydrator.New(store, target)

	if err := h.Hydrate(c); err != nil {
		return errors.Wrap(err, "hydrate")
	}

	logrus.WithFields(logrus.Fields{
		"source": source,
		"target": target,
		"files":  c.Len(),
	}).Info("hydration complete")
	return nil
}
