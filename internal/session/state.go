package session

import (
	"encoding/json"
	"fmt"

	"github.com/verte-zerg/typetest/internal/stats"
)

// State is the session activity flag.
type State int

const (
	Inactive State = iota
	Active
	Complete
)

var stateNames = [...]string{"inactive", "active", "complete"}

func parseName(names []string, text []byte) (int, error) {
	for i, n := range names {
		if n == string(text) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", text)
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	i, err := parseName(stateNames[:], text)
	*s = State(i)
	return err
}

// LetterStatus is the classification of one letter.
type LetterStatus int

const (
	LetterPending LetterStatus = iota
	LetterCorrect
	LetterIncorrect
	LetterExtra
)

var letterNames = [...]string{"pending", "correct", "incorrect", "extra"}

func (s LetterStatus) String() string {
	if int(s) < len(letterNames) {
		return letterNames[s]
	}
	return fmt.Sprintf("LetterStatus(%d)", int(s))
}

// MarshalText encodes the status name.
func (s LetterStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *LetterStatus) UnmarshalText(text []byte) error {
	i, err := parseName(letterNames[:], text)
	*s = LetterStatus(i)
	return err
}

// WordStatus is set when the cursor leaves a word.
type WordStatus int

const (
	WordPending WordStatus = iota
	WordCorrect
	WordIncorrect
)

var wordNames = [...]string{"pending", "correct", "incorrect"}

func (s WordStatus) String() string {
	if int(s) < len(wordNames) {
		return wordNames[s]
	}
	return fmt.Sprintf("WordStatus(%d)", int(s))
}

// MarshalText encodes the status name.
func (s WordStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *WordStatus) UnmarshalText(text []byte) error {
	i, err := parseName(wordNames[:], text)
	*s = WordStatus(i)
	return err
}

// Letter is one expected or extra character. Typed is set for incorrect and
// extra letters.
type Letter struct {
	Expected rune
	Status   LetterStatus
	Typed    rune
}

type letterJSON struct {
	Expected string       `json:"expected,omitempty"`
	Status   LetterStatus `json:"status"`
	Typed    string       `json:"typed,omitempty"`
}

// MarshalJSON encodes runes as strings.
func (l Letter) MarshalJSON() ([]byte, error) {
	out := letterJSON{Status: l.Status}
	if l.Expected != 0 {
		out.Expected = string(l.Expected)
	}
	if l.Typed != 0 {
		out.Typed = string(l.Typed)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the MarshalJSON form.
func (l *Letter) UnmarshalJSON(data []byte) error {
	var in letterJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*l = Letter{Status: in.Status}
	if in.Expected != "" {
		l.Expected = []rune(in.Expected)[0]
	}
	if in.Typed != "" {
		l.Typed = []rune(in.Typed)[0]
	}
	return nil
}

// Word is a source word and its letters, including appended extras.
type Word struct {
	Text    string     `json:"text"`
	Letters []Letter   `json:"letters"`
	Status  WordStatus `json:"status"`
}

func newWord(text string) Word {
	runes := []rune(text)
	letters := make([]Letter, len(runes))
	for i, r := range runes {
		letters[i] = Letter{Expected: r}
	}
	return Word{Text: text, Letters: letters}
}

// expectedLen is the number of source letters, excluding extras.
func (w Word) expectedLen() int {
	n := 0
	for _, l := range w.Letters {
		if l.Status != LetterExtra {
			n++
		}
	}
	return n
}

// typedLen is the index after the last non-pending letter.
func (w Word) typedLen() int {
	for i := len(w.Letters) - 1; i >= 0; i-- {
		if w.Letters[i].Status != LetterPending {
			return i + 1
		}
	}
	return 0
}

func (w Word) clone() Word {
	out := w
	out.Letters = append([]Letter(nil), w.Letters...)
	return out
}

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	State       State      `json:"state"`
	Words       []Word     `json:"words"`
	WordIndex   int        `json:"wordIndex"`
	LetterIndex int        `json:"letterIndex"`
	Live        stats.Live `json:"live"`
	Elapsed     float64    `json:"elapsed"`
	// Remaining is the whole seconds left in time mode; zero otherwise.
	Remaining  int `json:"remaining,omitempty"`
	WordTarget int `json:"wordTarget,omitempty"`
}
