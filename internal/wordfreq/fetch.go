package wordfreq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultIndexURL is the PyPI JSON endpoint of the wordfreq package.
const DefaultIndexURL = "https://pypi.org/pypi/wordfreq/json"

// Wheel is a downloaded wordfreq wheel.
type Wheel struct {
	Version  string
	Filename string
	Path     string
	// Cached is set when the wheel was already on disk.
	Cached bool
}

// Fetcher downloads the newest wordfreq wheel into a cache directory.
type Fetcher struct {
	IndexURL string
	CacheDir string
	Client   *http.Client
}

type pypiIndex struct {
	Info struct {
		Version string `json:"version"`
	} `json:"info"`
	URLs []pypiFile `json:"urls"`
}

type pypiFile struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	PackageType string `json:"packagetype"`
}

// Latest resolves the current release and returns its wheel, downloading it
// only when the cache does not hold it yet.
func (f Fetcher) Latest(ctx context.Context) (Wheel, error) {
	if f.CacheDir == "" {
		return Wheel{}, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return Wheel{}, fmt.Errorf("failed to create cache dir: %w", err)
	}

	var index pypiIndex
	if err := f.get(ctx, f.indexURL(), func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&index)
	}); err != nil {
		return Wheel{}, fmt.Errorf("failed to read package index: %w", err)
	}
	if index.Info.Version == "" {
		return Wheel{}, fmt.Errorf("package index has no version")
	}
	file, ok := pickWheel(index.URLs)
	if !ok {
		return Wheel{}, fmt.Errorf("no wheel published for wordfreq %s", index.Info.Version)
	}

	w := Wheel{
		Version:  index.Info.Version,
		Filename: file.Filename,
		Path:     filepath.Join(f.CacheDir, filepath.Base(file.Filename)),
	}
	if _, err := os.Stat(w.Path); err == nil {
		w.Cached = true
		return w, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Wheel{}, fmt.Errorf("failed to stat cached wheel: %w", err)
	}
	if err := f.get(ctx, file.URL, func(body io.Reader) error {
		return writeFileAtomic(w.Path, body)
	}); err != nil {
		return Wheel{}, fmt.Errorf("failed to download %s: %w", file.Filename, err)
	}
	return w, nil
}

func (f Fetcher) indexURL() string {
	if f.IndexURL != "" {
		return f.IndexURL
	}
	return DefaultIndexURL
}

func (f Fetcher) get(ctx context.Context, url string, read func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			_ = cerr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return read(resp.Body)
}

// pickWheel prefers the pure-python wheel.
func pickWheel(files []pypiFile) (pypiFile, bool) {
	var fallback *pypiFile
	for i, f := range files {
		if f.PackageType != "bdist_wheel" {
			continue
		}
		if strings.HasSuffix(f.Filename, "py3-none-any.whl") {
			return f, true
		}
		if fallback == nil {
			fallback = &files[i]
		}
	}
	if fallback == nil {
		return pypiFile{}, false
	}
	return *fallback, true
}

func writeFileAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
