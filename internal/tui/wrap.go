package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typetest/internal/session"
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

// buildStyledRunes lays the words out as one rune stream separated by
// spaces. cursor is the stream index of the cursor, or -1 when the test is
// over.
func buildStyledRunes(words []session.Word, wordIdx, letterIdx int, showCursor bool) (out []styledRune, cursor int) {
	cursor = -1
	for i, w := range words {
		if i > 0 {
			style := pendingStyle
			if showCursor && i-1 == wordIdx && letterIdx >= len(words[i-1].Letters) {
				style = cursorStyle
				cursor = len(out)
			}
			out = append(out, styledRune{s: style.Render(" "), width: 1, isSpace: true})
		}
		for j, l := range w.Letters {
			displayed := l.Expected
			style := pendingStyle
			switch l.Status {
			case session.LetterCorrect:
				style = correctStyle
			case session.LetterIncorrect:
				style = incorrectStyle
			case session.LetterExtra:
				displayed = l.Typed
				style = extraStyle
			default:
				if i == wordIdx {
					style = currentWordStyle
				}
			}
			if showCursor && i == wordIdx && j == letterIdx {
				style = style.Underline(true)
				cursor = len(out)
			}
			out = append(out, styledRune{
				s:     style.Render(string(displayed)),
				width: runewidth.RuneWidth(displayed),
			})
		}
	}
	if showCursor && cursor == -1 && len(out) > 0 {
		cursor = len(out) - 1
	}
	return out, cursor
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapStyledLines breaks at the last space that fits. starts holds the
// stream index each line begins at.
func wrapStyledLines(runes []styledRune, width int) (lines []string, starts []int) {
	if width <= 0 {
		return []string{renderStyledRunes(runes)}, []int{0}
	}
	line := make([]styledRune, 0, len(runes))
	lineStart := 0
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			lines = append(lines, "")
			starts = append(starts, lineStart)
			if lastSpaceIdx >= 0 {
				lines[len(lines)-1] = renderStyledRunes(line[:lastSpaceIdx])
				lineStart += lastSpaceIdx + 1
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				lines[len(lines)-1] = renderStyledRunes(line)
				lineStart += len(line)
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	lines = append(lines, renderStyledRunes(line))
	starts = append(starts, lineStart)
	return lines, starts
}

// lineOf returns the line containing stream index idx.
func lineOf(starts []int, idx int) int {
	line := 0
	for i, s := range starts {
		if s <= idx {
			line = i
		}
	}
	return line
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
