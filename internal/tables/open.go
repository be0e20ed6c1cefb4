package tables

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// Files opens table sources: local paths, "-" for stdin/stdout, and
// gs://bucket/object on Google Cloud Storage. The storage client is created
// on first use.
type Files struct {
	mu  sync.Mutex
	gcs *storage.Client
}

// Close releases the storage client, if one was created.
func (f *Files) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gcs == nil {
		return nil
	}
	err := f.gcs.Close()
	f.gcs = nil
	return err
}

func (f *Files) client(ctx context.Context) (*storage.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gcs != nil {
		return f.gcs, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}
	f.gcs = client
	return client, nil
}

// Open returns a reader for path. Compressed content (gzip, bzip2, xz, zip)
// is detected by its magic bytes and decompressed transparently.
func (f *Files) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	raw, err := f.openRaw(ctx, path)
	if err != nil {
		return nil, err
	}

	rc, err := maybeDecompress(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return rc, nil
}

func (f *Files) openRaw(ctx context.Context, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	if strings.HasPrefix(path, "gs://") {
		bucket, object, err := splitGSPath(path)
		if err != nil {
			return nil, err
		}
		client, err := f.client(ctx)
		if err != nil {
			return nil, err
		}
		rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}
		return rc, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return file, nil
}

// Create returns a writer for path. Closing the writer flushes and, for
// gs:// paths, finalizes the upload.
func (f *Files) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}

	if strings.HasPrefix(path, "gs://") {
		bucket, object, err := splitGSPath(path)
		if err != nil {
			return nil, err
		}
		client, err := f.client(ctx)
		if err != nil {
			return nil, err
		}
		return client.Bucket(bucket).Object(object).NewWriter(ctx), nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return file, nil
}

func splitGSPath(path string) (bucket, object string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("google storage path %q must look like gs://bucket/object", path)
	}
	return parts[0], parts[1], nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionZip
	compressionXZ
	compressionBZip2
)

var magic = []struct {
	kind compression
	sig  []byte
}{
	{compressionGzip, []byte{0x1f, 0x8b, 0x08}},
	{compressionZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{compressionXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{compressionBZip2, []byte{0x42, 0x5a, 0x68}},
}

func detectCompression(head []byte) compression {
	for _, m := range magic {
		if len(head) >= len(m.sig) && string(head[:len(m.sig)]) == string(m.sig) {
			return m.kind
		}
	}
	return compressionNone
}

// maybeDecompress peeks at the first bytes of raw and wraps it in the
// matching decompressor. Closing the result closes raw.
func maybeDecompress(raw io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(raw, 64*1024)
	head, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, pfx.Err(err)
	}

	var r io.Reader
	switch detectCompression(head) {
	case compressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, pfx.Err(err)
		}
		r = gz
	case compressionZip:
		zr := zipstream.NewReader(br)
		if _, err := zr.Next(); err != nil {
			return nil, pfx.Err(err)
		}
		r = zr
	case compressionXZ:
		xr, err := xz.NewReader(br, 0)
		if err != nil {
			return nil, pfx.Err(err)
		}
		r = xr
	case compressionBZip2:
		r = bzip2.NewReader(br)
	default:
		r = br
	}

	return readCloser{Reader: r, closer: raw}, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (rc readCloser) Close() error {
	return rc.closer.Close()
}
