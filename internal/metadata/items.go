package metadata

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"mediabatch/internal/model"
	"mediabatch/internal/runstore"
)

var (
	idAliases    = []string{"id", "video_id", "item_id"}
	urlAliases   = []string{"source_url", "url", "video_url", "link"}
	localAliases = []string{"local_path", "path", "file"}

	// MediaExts are the containers the list builder and directory input pick up.
	MediaExts = []string{".mp4", ".mkv", ".avi", ".mov", ".webm"}
)

// LoadItems reads a metadata table into work items. Rows without an id get
// one derived from their URL.
func LoadItems(path string) ([]model.MediaItem, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	idCol := t.Column(idAliases...)
	urlCol := t.Column(urlAliases...)
	localCol := t.Column(localAliases...)
	if urlCol < 0 && localCol < 0 {
		return nil, fmt.Errorf("%s: no source column (expected one of %s)", path, strings.Join(append(urlAliases, localAliases...), ", "))
	}
	items := make([]model.MediaItem, 0, len(t.Rows))
	for i, row := range t.Rows {
		item := model.MediaItem{
			ID:        cell(row, idCol),
			SourceURL: cell(row, urlCol),
			LocalPath: cell(row, localCol),
		}
		if item.SourceURL == "" && item.LocalPath == "" {
			return nil, fmt.Errorf("%s row %d: no source url or local path", path, i+2)
		}
		if item.ID == "" {
			if item.SourceURL != "" {
				item.ID = DeriveID(item.SourceURL)
			} else {
				item.ID = IDFromPath(item.LocalPath)
			}
		}
		if err := model.CheckID(item.ID); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// DeriveID picks a stable id for a source URL: the v= query parameter of
// watch URLs, else the last path segment, else a name-based UUID. Candidates
// that could not name a file in the output directory fall through.
func DeriveID(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		if v := strings.TrimSpace(u.Query().Get("v")); v != "" {
			if model.CheckID(v) == nil {
				return v
			}
		} else if seg := path.Base(strings.TrimRight(u.Path, "/")); seg != "/" && model.CheckID(seg) == nil {
			return seg
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(raw)).String()
}

// IDFromPath names a local media file's item after its base name.
func IDFromPath(p string) string {
	base := filepath.Base(strings.TrimSpace(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadPaths reads a list file with one media path per line.
func LoadPaths(listPath string) ([]model.MediaItem, error) {
	data, err := os.ReadFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read list %s: %w", listPath, err)
	}
	var items []model.MediaItem
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		p := strings.TrimSpace(sc.Text())
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		items = append(items, model.MediaItem{ID: IDFromPath(p), LocalPath: p})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan list %s: %w", listPath, err)
	}
	return items, nil
}

// ScanMedia walks root for media files, skipping hidden directories and
// in-flight temp files. Paths are returned sorted.
func ScanMedia(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, runstore.TempPrefix) {
			return nil
		}
		if slices.Contains(MediaExts, strings.ToLower(filepath.Ext(name))) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	slices.Sort(out)
	return out, nil
}

// WriteList writes one path per line.
func WriteList(path string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return runstore.WriteBytes(path, []byte(b.String()))
}

// LoadTranscriptionItems accepts a media directory, a list file or a
// metadata table. Table rows without local_path are resolved against
// mediaDir by id.
func LoadTranscriptionItems(input, mediaDir string) ([]model.MediaItem, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", input, err)
	}
	if info.IsDir() {
		paths, err := ScanMedia(input)
		if err != nil {
			return nil, err
		}
		return lo.Map(paths, func(p string, _ int) model.MediaItem {
			return model.MediaItem{ID: IDFromPath(p), LocalPath: p}
		}), nil
	}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".txt", ".list", ".lst":
		return LoadPaths(input)
	}

	items, err := LoadItems(input)
	if err != nil {
		return nil, err
	}
	if mediaDir == "" {
		return items, nil
	}
	available, err := ScanMedia(mediaDir)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(available, IDFromPath)
	for i := range items {
		if items[i].LocalPath != "" {
			continue
		}
		if p, ok := byID[items[i].ID]; ok {
			items[i].LocalPath = p
		}
	}
	return items, nil
}
