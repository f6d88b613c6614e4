// Package restyutil writes the HTTP exchanges of a resty client out for
// inspection, which is how upstream response shapes get debugged.
package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// FilesystemOutput writes one file per exchange into a directory.
type FilesystemOutput struct {
	directory string
}

// dumpMarker is left in every directory NewFilesystemOutput prepares, only
// directories carrying it are ever cleared.
const dumpMarker = ".exchange-dump"

// NewFilesystemOutput prepares dir for a fresh dump. dir is created when
// missing and cleared when a previous dump wrote it. Any other non-empty
// directory is refused.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return FilesystemOutput{}, err
	case len(entries) == 0:
	default:
		_, err = os.Stat(filepath.Join(dir, dumpMarker))
		if os.IsNotExist(err) {
			return FilesystemOutput{}, fmt.Errorf("refusing to clear %s: not empty and not an exchange dump", dir)
		}
		if err != nil {
			return FilesystemOutput{}, err
		}
		err = os.RemoveAll(dir)
		if err != nil {
			return FilesystemOutput{}, err
		}
	}

	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.WriteFile(filepath.Join(dir, dumpMarker), nil, 0600)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write exchange file", "id", id, "err", err)
	}
}

func exchangeId(n uint64, res *resty.Response) string {
	path := strings.Trim(res.Request.RawRequest.URL.Path, "/")
	path = strings.ReplaceAll(path, "/", "_")
	if path == "" {
		path = "index"
	}
	return fmt.Sprintf("%04d-%s-%s.txt", n, res.Request.Method, path)
}

// Dump writes every response the client receives, along with the request
// that produced it, to output. Ids are numbered in the order responses
// arrive.
func Dump(client *resty.Client, output Output) {
	var counter atomic.Uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		output.Write(exchangeId(counter.Add(1), res), formatExchange(res))
		return nil
	})
}
