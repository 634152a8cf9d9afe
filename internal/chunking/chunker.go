// Package chunking splits extracted document text into bounded chunks.
//
// Packing is hierarchical and greedy: paragraphs are packed first, a paragraph
// longer than the chunk size is packed sentence by sentence, and a sentence
// longer than the chunk size is hard-sliced into overlapping windows.
// All lengths are counted in runes.
package chunking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/amm/internal/domain"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
	DefaultMinSize = 50
)

const (
	paragraphSeparator = "\n\n"
	sentenceSeparator  = " "
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Config controls chunk boundaries.
type Config struct {
	Size    int
	Overlap int
	MinSize int
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{
		Size:    DefaultSize,
		Overlap: DefaultOverlap,
		MinSize: DefaultMinSize,
	}
}

// Validate rejects parameters under which the sliding window cannot advance.
func (c Config) Validate() error {
	switch {
	case c.Size <= 0:
		return domain.NewConfigError("chunk size must be positive")
	case c.Overlap < 0:
		return domain.NewConfigError("chunk overlap must not be negative")
	case c.Overlap >= c.Size:
		return domain.NewConfigError("chunk overlap must be smaller than chunk size")
	case c.MinSize < 1:
		return domain.NewConfigError("min chunk size must be at least 1")
	}
	return nil
}

// Chunk splits text into chunks in encounter order. Every chunk has at least
// MinSize and at most Size runes; shorter pieces are dropped. Empty or
// whitespace-only text yields no chunks.
func Chunk(text string, cfg Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []string
	p := &packer{cfg: cfg, sep: paragraphSeparator, out: &chunks}
	for _, para := range paragraphs(text) {
		if runeLen(para) > cfg.Size {
			p.flush()
			packSentences(para, cfg, &chunks)
			continue
		}
		p.add(para)
	}
	p.flush()

	return chunks, nil
}

// packer accumulates units into a running chunk. A unit joins the running
// chunk only while the joined text stays shorter than the chunk size.
type packer struct {
	cfg     Config
	sep     string
	current string
	out     *[]string
}

func (p *packer) add(unit string) {
	if p.current == "" {
		p.current = unit
		return
	}
	joined := p.current + p.sep + unit
	if runeLen(joined) < p.cfg.Size {
		p.current = joined
		return
	}
	p.flush()
	p.current = unit
}

func (p *packer) flush() {
	if p.current != "" && runeLen(p.current) >= p.cfg.MinSize {
		*p.out = append(*p.out, p.current)
	}
	p.current = ""
}

func packSentences(para string, cfg Config, out *[]string) {
	p := &packer{cfg: cfg, sep: sentenceSeparator, out: out}
	for _, sentence := range sentences(para) {
		if runeLen(sentence) > cfg.Size {
			p.flush()
			*out = append(*out, slide(sentence, cfg)...)
			continue
		}
		p.add(sentence)
	}
	p.flush()
}

// slide cuts s into windows of cfg.Size runes, stepping by Size-Overlap.
func slide(s string, cfg Config) []string {
	runes := []rune(s)
	step := cfg.Size - cfg.Overlap

	var windows []string
	for start := 0; start < len(runes); start += step {
		end := min(start+cfg.Size, len(runes))
		if end-start >= cfg.MinSize {
			windows = append(windows, string(runes[start:end]))
		}
	}
	return windows
}

// paragraphs splits on blank lines, then collapses whitespace inside each paragraph.
func paragraphs(text string) []string {
	var out []string
	for _, raw := range paragraphBreak.Split(text, -1) {
		if para := strings.Join(strings.Fields(raw), " "); para != "" {
			out = append(out, para)
		}
	}
	return out
}

// sentences splits after '.', '!' or '?' when followed by whitespace.
func sentences(para string) []string {
	runes := []rune(para)

	var out []string
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		if isTerminator(runes[i]) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
