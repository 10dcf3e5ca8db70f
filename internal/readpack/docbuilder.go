package readpack

import (
	"strconv"
	"strings"
)

// docBuilder assembles the bit-exact `.context` document described in
// spec §6: an `[CONTENT]` header, then `A:`/`N:`/`R:`/`M:` reserved lines
// interleaved with verbatim snippet body lines.
type docBuilder struct {
	lines  []string
	answer string
}

func newDocBuilder() *docBuilder {
	return &docBuilder{}
}

// setAnswer sets the single `A:` line. Later calls overwrite it — only one
// answer line is ever rendered.
func (d *docBuilder) setAnswer(answer string) {
	d.answer = answer
}

func (d *docBuilder) pushNote(note string) {
	d.lines = append(d.lines, "N: "+note)
}

// pushRefHeader renders an `R:` line pointing at file:line, with an
// optional trailing " — <label>".
func (d *docBuilder) pushRefHeader(file string, line int, label string) {
	ref := formatRef(file, line)
	if label != "" {
		ref += " — " + label
	}
	d.lines = append(d.lines, "R: "+ref)
}

// pushBlockSmart appends content verbatim, one rendered line per source
// line, never reinterpreting A:/N:/R:/M: prefixes that happen to appear in
// the snippet itself — those are legal inside a block.
func (d *docBuilder) pushBlockSmart(content string) {
	for _, line := range strings.Split(content, "\n") {
		d.lines = append(d.lines, line)
	}
}

func (d *docBuilder) pushLine(line string) {
	d.lines = append(d.lines, line)
}

func (d *docBuilder) pushBlank() {
	d.lines = append(d.lines, "")
}

// build renders the final document. cursorAlias, if non-empty, becomes the
// trailing `M:` line.
func (d *docBuilder) build(rootFingerprintHex string, cursorAlias string) string {
	var sb strings.Builder
	sb.WriteString("[CONTENT]\n")
	sb.WriteString("A: " + d.answer + "\n")
	sb.WriteString("N: root_fingerprint=" + rootFingerprintHex + "\n")
	for _, line := range d.lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if cursorAlias != "" {
		sb.WriteString("M: " + cursorAlias + "\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func formatRef(file string, line int) string {
	if line <= 0 {
		return file
	}
	return file + ":" + strconv.Itoa(line)
}

// truncateToChars cuts s down to at most n runes, preferring a line
// boundary near the cut point so truncation doesn't split a reference
// header mid-line.
func truncateToChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		return cut[:idx]
	}
	return cut
}
