// Package publish provides publishers that copy finished tile sets to
// their destination.
package publish

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalPublisher implements Publisher for the local filesystem.
type LocalPublisher struct {
	basePath string
}

// NewLocalPublisher creates a new local publisher rooted at basePath.
func NewLocalPublisher(basePath string) *LocalPublisher {
	return &LocalPublisher{basePath: basePath}
}

// Publish copies a file or directory tree under the base path.
func (p *LocalPublisher) Publish(ctx context.Context, localPath, key string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return walkFiles(localPath, func(path, rel string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return copyFile(path, filepath.Join(p.basePath, key, rel))
		})
	}
	return copyFile(localPath, filepath.Join(p.basePath, key))
}

func copyFile(src, dest string) error {
	if src == dest {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}

	in, err := os.Open(src) //#nosec G304 -- src is a controlled local path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest) //#nosec G304 -- dest is a controlled local path
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}

// walkFiles visits every regular file under root, passing its absolute
// path and its slash-separated path relative to root.
func walkFiles(root string, fn func(path, rel string) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(path, filepath.ToSlash(rel))
	})
}
