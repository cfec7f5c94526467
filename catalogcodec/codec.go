// Package catalogcodec implements the catalog's on-disk format: a
// versioned JSON envelope (legacy flat v0, current trie v1), optional
// Zstandard wrapping keyed off a ".zst" extension, and atomic
// tmp-then-rename writes.
package catalogcodec

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/FloGa/crazy-deduper/catalog"
)

// hasZstdExt reports whether path should be treated as Zstandard-wrapped.
// Detection is by extension only; magic bytes are never inspected.
func hasZstdExt(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zst")
}

// Load reads the catalog at path, migrating a legacy v0 payload to v1
// in memory if necessary. Any failure to open, decompress, or parse the
// file yields an empty catalog rather than an error, so that a first
// run or a rotated-away catalog file never aborts the scan.
func Load(path string) *catalog.Catalog {
	data, err := readAll(path)
	if err != nil {
		logrus.WithField("path", path).WithError(err).Debug("catalog unreadable, starting empty")
		return catalog.New("")
	}

	records, algorithm, err := decode(data)
	if err != nil {
		logrus.WithField("path", path).WithError(err).Debug("catalog malformed, starting empty")
		return catalog.New("")
	}

	c := catalog.New(algorithm)
	for _, r := range records {
		c.Insert(r)
	}
	return c
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if hasZstdExt(path) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "zstd decoder")
		}
		defer dec.Close()
		r = dec
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// decode attempts the tagged v1 envelope first, falling back to the
// untagged legacy v0 array.
func decode(data []byte) ([]*catalog.FileRecord, string, error) {
	var tagged struct {
		V string `json:"v"`
	}
	if err := json.Unmarshal(data, &tagged); err == nil && tagged.V != "" {
		var env envelopeV1
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, "", errors.Wrap(err, "decode v1 envelope")
		}
		records, err := env.C.flatten()
		if err != nil {
			return nil, "", err
		}
		return records, env.C.H, nil
	}

	var legacy []fileRecordV0
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, "", errors.Wrap(err, "decode as v0 or v1")
	}
	return migrateV0(legacy)
}

// Save serializes catalog c as v1, compressing if path ends in ".zst",
// and installs it atomically via a sibling tmp file plus rename. A path
// with no file-name component is a no-op: the caller passed a
// placeholder rather than a real destination.
func Save(path string, c *catalog.Catalog) error {
	if path == "" || strings.HasSuffix(path, string(filepath.Separator)) {
		// No file-name component: the caller passed a placeholder.
		return nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create parent dir for %s", path)
		}
	}

	body, err := encodeV1(c)
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}

	tmpPath := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.tmp.%d%s",
		strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		time.Now().UnixMilli(),
		filepath.Ext(path)))

	if err := writeAll(tmpPath, body, hasZstdExt(path)); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "rename %s to %s", tmpPath, path)
	}
	return nil
}

func writeAll(path string, body []byte, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	var w io.Writer = f
	var enc *zstd.Encoder
	if compress {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			return errors.Wrap(err, "zstd encoder")
		}
		w = enc
	}

	if _, err := w.Write(body); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return errors.Wrap(err, "close zstd encoder")
		}
	}
	return f.Sync()
}

func encodeV1(c *catalog.Catalog) ([]byte, error) {
	env := envelopeV1{
		V: "1",
		C: payloadV1{
			H: c.Algorithm,
			F: buildTrie(c.Values()),
		},
	}
	return json.Marshal(env)
}
