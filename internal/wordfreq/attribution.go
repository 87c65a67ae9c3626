package wordfreq

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Notice files written next to generated lists. The word-list provider skips
// them when listing languages.
const (
	AttributionFile = "ATTRIBUTION.txt"
	LicenseFile     = "LICENSE.txt"
	DataLicenseFile = "DATA_LICENSE.txt"
)

const attribution = `Word lists generated from the wordfreq dataset.
Source: https://github.com/rspeer/wordfreq
Data license: Creative Commons Attribution-ShareAlike 4.0 International (CC BY-SA 4.0).
https://creativecommons.org/licenses/by-sa/4.0/
Changes were made: filtered to alphabetic words and truncated to the requested size.
Includes data from Google Books Ngrams: https://books.google.com/ngrams
Includes data from the Leeds Internet Corpus: https://corpus.leeds.ac.uk/
For other upstream sources, see the wordfreq project documentation.
`

const dataLicense = `These word lists are licensed under CC BY-SA 4.0.
https://creativecommons.org/licenses/by-sa/4.0/
`

// WriteNotices writes the attribution, the wheel license and the data
// license into dir.
func WriteNotices(dir string, license []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{AttributionFile, []byte(attribution)},
		{LicenseFile, license},
		{DataLicenseFile, []byte(dataLicense)},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	return nil
}

// SelectLanguages resolves a comma separated request against the available
// codes. "all" selects everything and reports all=true; empty means "en".
func SelectLanguages(request string, available []string) (langs []string, all bool, err error) {
	request = strings.ToLower(strings.TrimSpace(request))
	switch request {
	case "":
		request = "en"
	case "all":
		return slices.Clone(available), true, nil
	}
	for _, part := range strings.Split(request, ",") {
		part = strings.TrimSpace(part)
		if part == "" || slices.Contains(langs, part) {
			continue
		}
		if !slices.Contains(available, part) {
			return nil, false, fmt.Errorf("%w %q (available: %s)", ErrUnknownLanguage, part, strings.Join(available, ", "))
		}
		langs = append(langs, part)
	}
	if len(langs) == 0 {
		return nil, false, fmt.Errorf("--lang must not be empty")
	}
	return langs, false, nil
}
