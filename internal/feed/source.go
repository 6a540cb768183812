// Package feed keeps the pool of candidate comics the composer draws from.
package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/store"
)

// Source produces comic entries in priority order.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]compose.Entry, error)
}

// StaticSource always returns the same entries.
type StaticSource struct {
	name    string
	entries []compose.Entry
}

func NewStaticSource(name string, entries ...compose.Entry) *StaticSource {
	return &StaticSource{name: name, entries: entries}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Load(context.Context) ([]compose.Entry, error) {
	return append([]compose.Entry(nil), s.entries...), nil
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func isImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DirSource reads comics from a directory. Every sub-directory is one entry
// whose images are its files in lexical order; loose image files are
// single-image entries. Entries are ordered by name.
type DirSource struct {
	dir   string
	store *store.Store
	log   *logrus.Entry
}

func NewDirSource(dir string, st *store.Store, log *logrus.Entry) *DirSource {
	return &DirSource{dir: dir, store: st, log: log.WithField("source", dir)}
}

func (s *DirSource) Name() string { return "dir:" + s.dir }

func (s *DirSource) Load(ctx context.Context) ([]compose.Entry, error) {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })

	var entries []compose.Entry
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.dir, item.Name())

		var files []string
		switch {
		case item.IsDir():
			files, err = imageFiles(path)
			if err != nil {
				return nil, err
			}
		case isImageFile(item.Name()):
			files = []string{path}
		default:
			continue
		}

		entry := compose.Entry{ID: path, Title: strings.TrimSuffix(item.Name(), filepath.Ext(item.Name()))}
		for _, file := range files {
			img, err := s.load(file)
			if err != nil {
				s.log.WithError(err).WithField("file", file).Warn("skipping unreadable image")
				continue
			}
			entry.Images = append(entry.Images, img)
		}
		if len(entry.Images) > 0 {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *DirSource) load(path string) (*store.Image, error) {
	raster, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return s.store.Put(raster)
}

func imageFiles(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, item := range items {
		if !item.IsDir() && isImageFile(item.Name()) {
			files = append(files, filepath.Join(dir, item.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
