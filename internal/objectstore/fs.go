package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FSStore implements ObjectStore on top of a local directory tree. Put
// writes to a temp file in the same directory and renames into place,
// so a concurrent Get never observes a partially written object.
type FSStore struct {
	root string
	mu   sync.Mutex // guards Copy's read-then-write across keys
}

// NewFSStore roots an ObjectStore at dir, creating it if missing.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create root %s: %w", dir, err)
	}
	return &FSStore{root: dir}, nil
}

func (f *FSStore) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

func (f *FSStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectAttrs, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, ObjectAttrs{}, err
	}
	file, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectAttrs{}, ErrNotFound
		}
		return nil, ObjectAttrs{}, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ObjectAttrs{}, err
	}
	return file, fileAttrs(key, info), nil
}

func (f *FSStore) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (string, error) {
	p, err := f.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	hasher := md5.New()
	if _, err := io.Copy(tmp, io.TeeReader(r, hasher)); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, p); err != nil {
		return "", err
	}
	return "\"" + hex.EncodeToString(hasher.Sum(nil)) + "\"", nil
}

func (f *FSStore) Delete(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FSStore) List(_ context.Context, opts ListOptions) (ListResult, error) {
	var objects []ObjectAttrs
	prefixSet := make(map[string]bool)

	err := filepath.WalkDir(f.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
			return nil
		}
		if opts.Delimiter != "" {
			suffix := strings.TrimPrefix(key, opts.Prefix)
			if idx := strings.Index(suffix, opts.Delimiter); idx >= 0 {
				prefixSet[opts.Prefix+suffix[:idx+1]] = true
				return nil
			}
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, fileAttrs(key, info))
		return nil
	})
	if err != nil {
		return ListResult{}, err
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	var prefixes []string
	for p := range prefixSet {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	if opts.MaxKeys > 0 && len(objects) > opts.MaxKeys {
		return ListResult{
			Objects:               objects[:opts.MaxKeys],
			CommonPrefixes:        prefixes,
			IsTruncated:           true,
			NextContinuationToken: objects[opts.MaxKeys].Key,
		}, nil
	}
	return ListResult{Objects: objects, CommonPrefixes: prefixes}, nil
}

func (f *FSStore) Head(_ context.Context, key string) (ObjectAttrs, error) {
	p, err := f.path(key)
	if err != nil {
		return ObjectAttrs{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectAttrs{}, ErrNotFound
		}
		return ObjectAttrs{}, err
	}
	return fileAttrs(key, info), nil
}

func (f *FSStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	src, attrs, err := f.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = f.Put(ctx, dstKey, src, PutOptions{ContentType: attrs.ContentType})
	return err
}

func (f *FSStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := f.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping reports whether the root directory still exists.
func (f *FSStore) Ping(_ context.Context) error {
	_, err := os.Stat(f.root)
	return err
}

func fileAttrs(key string, info os.FileInfo) ObjectAttrs {
	return ObjectAttrs{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}
}

var _ ObjectStore = (*FSStore)(nil)
