package wordlist

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed data/*.txt
var builtinFS embed.FS

// noticeFiles sit next to downloaded lists and are not languages.
var noticeFiles = map[string]struct{}{
	"ATTRIBUTION.txt":  {},
	"LICENSE.txt":      {},
	"DATA_LICENSE.txt": {},
}

// ErrUnknownLanguage is returned when no list exists for a language.
var ErrUnknownLanguage = errors.New("unknown language")

// Provider returns the corpus for a language.
type Provider interface {
	Words(lang string) ([]string, error)
}

// DirProvider serves lists from a directory of <lang>.txt files and falls
// back to the built-in lists. Loaded lists are cached.
type DirProvider struct {
	dir string

	mu    sync.Mutex
	cache map[string][]string
}

// NewDirProvider returns a provider rooted at dir. An empty dir serves only
// built-in lists.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{dir: dir, cache: map[string][]string{}}
}

// Words implements Provider.
func (p *DirProvider) Words(lang string) ([]string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return nil, fmt.Errorf("%w: empty language", ErrUnknownLanguage)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if words, ok := p.cache[lang]; ok {
		return words, nil
	}

	words, err := p.load(lang)
	if err != nil {
		return nil, err
	}
	words = Apply(words, FilterForLang(lang))
	if len(words) == 0 {
		return nil, fmt.Errorf("word list for %q has no usable words", lang)
	}
	p.cache[lang] = words
	return words, nil
}

// Path returns where a downloaded list for lang would live.
func (p *DirProvider) Path(lang string) string {
	if p.dir == "" {
		return ""
	}
	return filepath.Join(p.dir, lang+".txt")
}

func (p *DirProvider) load(lang string) ([]string, error) {
	if path := p.Path(lang); path != "" {
		words, err := LoadWords(path)
		if err == nil {
			return words, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load word list %s: %w", path, err)
		}
	}
	if words, ok := builtin(lang); ok {
		return words, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownLanguage, lang)
}

// Languages lists built-in languages plus any <lang>.txt in the directory.
func (p *DirProvider) Languages() ([]string, error) {
	set := map[string]struct{}{}
	for _, lang := range BuiltinLanguages() {
		set[lang] = struct{}{}
	}
	if p.dir != "" {
		entries, err := os.ReadDir(p.dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read wordlist directory: %w", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
				continue
			}
			if _, notice := noticeFiles[name]; notice {
				continue
			}
			set[strings.TrimSuffix(name, ".txt")] = struct{}{}
		}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

// BuiltinLanguages lists the embedded corpora.
func BuiltinLanguages() []string {
	entries, err := builtinFS.ReadDir("data")
	if err != nil {
		return nil
	}
	langs := make([]string, 0, len(entries))
	for _, entry := range entries {
		langs = append(langs, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	sort.Strings(langs)
	return langs
}

func builtin(lang string) ([]string, bool) {
	if lang == "en" {
		lang = "english"
	}
	file, err := builtinFS.Open("data/" + lang + ".txt")
	if err != nil {
		return nil, false
	}
	defer func() {
		_ = file.Close()
	}()
	words, err := ReadWords(file)
	if err != nil {
		return nil, false
	}
	return words, true
}
