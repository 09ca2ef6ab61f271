package resume

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"mediabatch/internal/model"
)

// Predicate decides whether an existing artifact counts as done.
type Predicate func(path string, info fs.FileInfo) bool

// Exists accepts any regular file. It suits artifacts written atomically,
// where an empty file is a finished result rather than a torn write.
func Exists(_ string, info fs.FileInfo) bool {
	return info.Mode().IsRegular()
}

// NonEmpty accepts any regular file with at least one byte.
func NonEmpty(_ string, info fs.FileInfo) bool {
	return info.Mode().IsRegular() && info.Size() > 0
}

// MinWords accepts non-empty files holding at least n whitespace separated
// words.
func MinWords(n int) Predicate {
	return func(path string, info fs.FileInfo) bool {
		if !NonEmpty(path, info) {
			return false
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		return len(strings.Fields(string(data))) >= n
	}
}

// Check names where an item's artifact lives and how to validate it.
type Check struct {
	OutputDir string
	Ext       string
	Valid     Predicate
}

func OutputPath(dir, id, ext string) string {
	return filepath.Join(dir, id+ext)
}

func (c Check) Path(item model.MediaItem) string {
	return OutputPath(c.OutputDir, item.ID, c.Ext)
}

// Done reports whether item already has a valid artifact.
func (c Check) Done(item model.MediaItem) (bool, error) {
	path := c.Path(item)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	valid := c.Valid
	if valid == nil {
		valid = NonEmpty
	}
	return valid(path, info), nil
}

// Filter drops items with a valid artifact and collapses repeated ids so no
// item can be claimed twice. It runs before any worker starts and refuses the
// whole list if any id cannot name a file inside OutputDir.
func Filter(items []model.MediaItem, c Check) (kept, skipped []model.MediaItem, err error) {
	if strings.TrimSpace(c.OutputDir) == "" {
		return nil, nil, fmt.Errorf("output directory is required")
	}
	unique := lo.UniqBy(items, func(it model.MediaItem) string { return it.ID })
	kept = make([]model.MediaItem, 0, len(unique))
	skipped = make([]model.MediaItem, 0)
	for _, it := range unique {
		if err := model.CheckID(it.ID); err != nil {
			return nil, nil, fmt.Errorf("work item %s: %w", describe(it), err)
		}
		done, err := c.Done(it)
		if err != nil {
			return nil, nil, err
		}
		if done {
			skipped = append(skipped, it)
			continue
		}
		kept = append(kept, it)
	}
	return kept, skipped, nil
}

func describe(it model.MediaItem) string {
	switch {
	case it.SourceURL != "":
		return fmt.Sprintf("(source %q)", it.SourceURL)
	case it.LocalPath != "":
		return fmt.Sprintf("(file %q)", it.LocalPath)
	}
	return fmt.Sprintf("%q", it.ID)
}
