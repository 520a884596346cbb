// Package static provides the filesystem collaborator for SendFile and
// ready-made handlers for serving files off disk.
package static

import (
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/tinyhttpd/tinyserve/core/http"
	"github.com/tinyhttpd/tinyserve/core/router"
)

type osFile struct {
	f     *os.File
	size  int64
	mtime time.Time
}

func (f *osFile) Read(p []byte) (int, error) { return f.f.Read(p) }
func (f *osFile) Close() error               { return f.f.Close() }
func (f *osFile) Size() int64                { return f.size }
func (f *osFile) ModTime() time.Time         { return f.mtime }

type osFS struct{}

// OS returns a FileSystem backed by the host filesystem.
func OS() http.FileSystem {
	return osFS{}
}

func (osFS) Open(p string) (http.File, error) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, errors.Wrap(http.ErrFileNotFound, p)
		}
		return nil, errors.WithStack(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.Wrap(http.ErrFileNotFound, p)
	}
	return &osFile{f: f, size: info.Size(), mtime: info.ModTime()}, nil
}

// FileHandler serves one fixed file, e.g. an index page on "/".
func FileHandler(filename string, opts *http.FileOptions) router.Handler {
	return func(req *http.Request, resp *http.Response) error {
		return resp.SendFile(filename, opts)
	}
}

// Handler serves the request path from the directory root. Meant for use
// as a catch-all route. The path is rooted and cleaned before the join,
// so ".." segments cannot escape root. "/" serves root/index.html.
func Handler(root string, opts *http.FileOptions) router.Handler {
	return func(req *http.Request, resp *http.Response) error {
		p := path.Clean("/" + req.Path)
		if p == "/" {
			p = "/index.html"
		}
		return resp.SendFile(path.Join(root, p), opts)
	}
}
