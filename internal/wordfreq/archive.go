// Package wordfreq extracts frequency-ranked word lists from the wordfreq
// Python wheel published on PyPI.
package wordfreq

import (
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/typetest/internal/wordlist"
)

const dataDir = "wordfreq/data/"

// List sizes shipped in the wheel, preferred first.
const (
	SizeLarge = "large"
	SizeSmall = "small"
)

const (
	minWordLen = 2
	maxWordLen = 20
)

var (
	// ErrUnknownLanguage is returned for languages the wheel has no list for.
	ErrUnknownLanguage = errors.New("language not in wordfreq data")
	// ErrNoWords is returned when filtering leaves nothing.
	ErrNoWords = errors.New("no usable words")
)

// Archive is an opened wordfreq wheel.
type Archive struct {
	zr *zip.ReadCloser
	// lists maps language to size to data file.
	lists map[string]map[string]*zip.File
}

// OpenArchive indexes the data files of the wheel at path.
func OpenArchive(wheelPath string) (*Archive, error) {
	zr, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wheel: %w", err)
	}
	a := &Archive{zr: zr, lists: map[string]map[string]*zip.File{}}
	for _, f := range zr.File {
		lang, size, ok := parseDataName(f.Name)
		if !ok {
			continue
		}
		if a.lists[lang] == nil {
			a.lists[lang] = map[string]*zip.File{}
		}
		a.lists[lang][size] = f
	}
	if len(a.lists) == 0 {
		_ = zr.Close()
		return nil, fmt.Errorf("no word lists found in %s", path.Base(wheelPath))
	}
	return a, nil
}

// Close releases the wheel file.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// Languages returns the language codes in the wheel, sorted.
func (a *Archive) Languages() []string {
	langs := make([]string, 0, len(a.lists))
	for lang := range a.lists {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Extract returns up to limit words for lang, most frequent first. The large
// list is used when present, otherwise the small one; the chosen size is
// returned. Words are kept when they are 2 to 20 letters long and pass the
// language filter of the word-list provider.
func (a *Archive) Extract(lang string, limit int) (words []string, size string, err error) {
	if limit <= 0 {
		return nil, "", fmt.Errorf("limit must be > 0")
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	sizes, ok := a.lists[lang]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	size = SizeLarge
	f, ok := sizes[size]
	if !ok {
		size = SizeSmall
		f = sizes[size]
	}

	bins, err := readBins(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", f.Name, err)
	}
	keep := wordlist.FilterForLang(lang)
	seen := map[string]struct{}{}
	for _, bin := range bins {
		for _, w := range bin {
			if _, dup := seen[w]; dup || !usable(w) || !keep(w) {
				continue
			}
			seen[w] = struct{}{}
			words = append(words, w)
			if len(words) == limit {
				return words, size, nil
			}
		}
	}
	if len(words) == 0 {
		return nil, "", fmt.Errorf("%w for %s/%s", ErrNoWords, lang, size)
	}
	return words, size, nil
}

// License returns the package license bundled in the wheel metadata.
func (a *Archive) License() ([]byte, error) {
	for _, f := range a.zr.File {
		if !strings.Contains(f.Name, ".dist-info/") || !strings.Contains(strings.ToUpper(path.Base(f.Name)), "LICENSE") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open license: %w", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read license: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("license file not found in wheel")
}

// parseDataName splits "wordfreq/data/large_pt-br.msgpack.gz" into its
// language and size.
func parseDataName(name string) (lang, size string, ok bool) {
	base, found := strings.CutPrefix(strings.ToLower(name), dataDir)
	if !found || strings.Contains(base, "/") {
		return "", "", false
	}
	base, found = strings.CutSuffix(strings.TrimSuffix(base, ".gz"), ".msgpack")
	if !found {
		return "", "", false
	}
	size, lang, ok = strings.Cut(base, "_")
	if !ok || lang == "" || (size != SizeLarge && size != SizeSmall) {
		return "", "", false
	}
	return lang, size, true
}

func readBins(f *zip.File) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	var r io.Reader = rc
	if strings.HasSuffix(f.Name, ".gz") {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		r = gz
	}
	v, err := decodeMsgpack(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode msgpack: %w", err)
	}
	return parseCBPack(v)
}

// parseCBPack reads the "cB" layout: a header map followed by one word list
// per centibel bin, most frequent bin first.
func parseCBPack(v any) ([][]string, error) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("expected a non-empty array, got %T", v)
	}
	header, ok := items[0].(map[string]any)
	if !ok || header["format"] != "cB" {
		return nil, fmt.Errorf("unsupported wordfreq format %v", items[0])
	}
	bins := make([][]string, 0, len(items)-1)
	for i, item := range items[1:] {
		list, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("bin %d: expected array, got %T", i, item)
		}
		bin := make([]string, 0, len(list))
		for _, w := range list {
			switch w := w.(type) {
			case string:
				bin = append(bin, w)
			case []byte:
				if utf8.Valid(w) {
					bin = append(bin, string(w))
				}
			default:
				return nil, fmt.Errorf("bin %d: unexpected word %T", i, w)
			}
		}
		bins = append(bins, bin)
	}
	return bins, nil
}

func usable(word string) bool {
	n := utf8.RuneCountInString(word)
	if n < minWordLen || n > maxWordLen {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
