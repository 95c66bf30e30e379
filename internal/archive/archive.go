// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package archive reads the payload formats handled without an external installer
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	iu "github.com/choria-io/pkgstore/internal/util"
)

// Compression is a supported tar compression
type Compression string

const (
	CompressionNone  Compression = "none"
	CompressionGzip  Compression = "gzip"
	CompressionXz    Compression = "xz"
	CompressionZstd  Compression = "zstd"
	CompressionBzip2 Compression = "bzip2"
)

var (
	ErrUnsupportedEntry = errors.New("unsupported archive entry")
	ErrUnsafePath       = errors.New("archive entry escapes destination")

	gzipMagic  = []byte{0x1f, 0x8b}
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	bzip2Magic = []byte{'B', 'Z', 'h'}
)

// DetectCompression inspects the leading bytes of a stream, falling back to the file name
func DetectCompression(head []byte, name string) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, xzMagic):
		return CompressionXz
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, bzip2Magic):
		return CompressionBzip2
	}

	switch {
	case hasSuffix(name, ".gz", ".tgz"):
		return CompressionGzip
	case hasSuffix(name, ".xz", ".txz"):
		return CompressionXz
	case hasSuffix(name, ".zst", ".tzst"):
		return CompressionZstd
	case hasSuffix(name, ".bz2", ".tbz2"):
		return CompressionBzip2
	}

	return CompressionNone
}

func hasSuffix(name string, suffixes ...string) bool {
	name = strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}

	return false
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	if r.close == nil {
		return nil
	}

	return r.close()
}

// Decompress wraps r in the decompressor matching its content, name is a hint for streams too short to sniff
func Decompress(r io.Reader, name string) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(6)

	c := DetectCompression(head, name)

	switch c {
	case CompressionGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("gzip: %w", err)
		}
		return gr, c, nil

	case CompressionXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("xz: %w", err)
		}
		return readCloser{Reader: xr}, c, nil

	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("zstd: %w", err)
		}
		return readCloser{Reader: zr, close: func() error { zr.Close(); return nil }}, c, nil

	case CompressionBzip2:
		return readCloser{Reader: bzip2.NewReader(br)}, c, nil

	default:
		return readCloser{Reader: br}, c, nil
	}
}

// ExtractTarFile extracts a possibly compressed tar file into dest and returns the paths created relative to dest
func ExtractTarFile(ctx context.Context, path string, dest string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dr, _, err := Decompress(f, path)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	return ExtractTar(ctx, dr, dest)
}

// ExtractTar extracts a tar stream into dest, no entry may resolve outside dest
func ExtractTar(ctx context.Context, r io.Reader, dest string) ([]string, error) {
	var files []string

	err := os.MkdirAll(dest, 0755)
	if err != nil {
		return nil, err
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, fmt.Errorf("reading tar entry: %w", err)
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if name == "" || name == "." {
			continue
		}

		target, err := iu.SafeJoin(dest, name)
		if err != nil {
			return files, fmt.Errorf("%w: %w", ErrUnsafePath, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, dirMode(hdr))
			if err != nil {
				return files, err
			}

		case tar.TypeReg:
			err = writeFile(tr, target, hdr)
			if err != nil {
				return files, err
			}

		case tar.TypeSymlink:
			if !linkInside(dest, target, hdr.Linkname) {
				return files, fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, name, hdr.Linkname)
			}

			err = os.MkdirAll(filepath.Dir(target), 0755)
			if err != nil {
				return files, err
			}
			os.Remove(target)

			err = os.Symlink(hdr.Linkname, target)
			if err != nil {
				return files, err
			}

		case tar.TypeLink:
			src, err := iu.SafeJoin(dest, strings.TrimPrefix(hdr.Linkname, "./"))
			if err != nil {
				return files, fmt.Errorf("%w: %w", ErrUnsafePath, err)
			}

			err = os.MkdirAll(filepath.Dir(target), 0755)
			if err != nil {
				return files, err
			}
			os.Remove(target)

			err = os.Link(src, target)
			if err != nil {
				return files, err
			}

		case tar.TypeXGlobalHeader:
			continue

		default:
			return files, fmt.Errorf("%w: %s has type %q", ErrUnsupportedEntry, name, hdr.Typeflag)
		}

		files = append(files, filepath.ToSlash(filepath.Clean(filepath.FromSlash(name))))
	}

	return files, nil
}

func dirMode(hdr *tar.Header) os.FileMode {
	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		return 0755
	}

	return mode | 0700
}

func writeFile(r io.Reader, target string, hdr *tar.Header) error {
	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return err
	}

	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	written, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}

	err = out.Close()
	if err != nil {
		return err
	}

	if written != hdr.Size {
		return fmt.Errorf("size mismatch for %s: expected %d got %d", target, hdr.Size, written)
	}

	return nil
}

// linkInside is true when a symlink at target pointing to link stays within root
func linkInside(root string, target string, link string) bool {
	if filepath.IsAbs(link) || strings.HasPrefix(link, "/") {
		return false
	}

	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(link))
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
