// Package playbook answers practice-negotiation lines with guidance drawn
// from a Markdown negotiation playbook.
//
// The playbook is split into sections by "## " headings and each section into
// paragraphs. A paragraph is indexed together with its section title H, and
// a query Q is scored by how much of it the paragraph P covers, with title
// hits counted twice:
//
//	score = (|Q ∩ P| + |Q ∩ H|) / 2|Q|
//
// Paragraph length does not dilute the score. The index is immutable after
// construction and safe for concurrent use.
package playbook

import (
	"bufio"
	"bytes"
	_ "embed"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

//go:embed default_playbook.md
var defaultPlaybook []byte

// Match is a ranked playbook paragraph.
type Match struct {
	Topic    string  `json:"topic"`
	Guidance string  `json:"guidance"`
	Score    float64 `json:"score"`
}

// Index ranks playbook paragraphs against a query.
type Index interface {
	TopK(query string, k int) []Match
}

// Option configures index construction.
type Option func(*config)

type config struct {
	minParagraphRunes int
	stopwords         map[string]struct{}
}

func defaultConfig() config {
	return config{minParagraphRunes: 40, stopwords: englishStopwords}
}

// WithMinParagraphRunes drops paragraphs shorter than n runes.
func WithMinParagraphRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphRunes = n
		}
	}
}

// WithStopwords replaces the default English stop-word list.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				m[w] = struct{}{}
			}
		}
		c.stopwords = m
	}
}

type doc struct {
	topic  string
	text   string
	tokens map[string]struct{}
	head   map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// Default builds the index from the embedded playbook.
func Default(opts ...Option) Index {
	idx, _ := NewFromReader(bytes.NewReader(defaultPlaybook), opts...)
	return idx
}

// Load builds the index from the Markdown file at path, or from the embedded
// playbook when path is empty.
func Load(path string, opts ...Option) (Index, error) {
	if strings.TrimSpace(path) == "" {
		return Default(opts...), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewFromReader(bytes.NewReader(b), opts...)
}

// NewFromReader builds an index from Markdown read from r.
func NewFromReader(r io.Reader, opts ...Option) (Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	sections, err := parseSections(r)
	if err != nil {
		return nil, err
	}
	idx := &index{cfg: cfg}
	for _, s := range sections {
		for _, p := range s.paragraphs {
			if cfg.minParagraphRunes > 0 && utf8.RuneCountInString(p) < cfg.minParagraphRunes {
				continue
			}
			toks := tokenize(s.title+" "+p, cfg.stopwords)
			if len(toks) == 0 {
				continue
			}
			idx.docs = append(idx.docs, doc{topic: s.title, text: p, tokens: toks, head: tokenize(s.title, cfg.stopwords)})
		}
	}
	return idx, nil
}

// Len reports the number of indexed paragraphs.
func Len(i Index) int {
	if ix, ok := i.(*index); ok {
		return len(ix.docs)
	}
	return 0
}

// TopK returns up to k best-matching paragraphs. Ties are broken by shorter
// paragraph, then lexically, so results are deterministic.
func (i *index) TopK(q string, k int) []Match {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qt := tokenize(q, i.cfg.stopwords)
	if len(qt) == 0 {
		return nil
	}

	var out []Match
	for _, d := range i.docs {
		over := overlap(qt, d.tokens)
		if over == 0 {
			continue
		}
		out = append(out, Match{
			Topic:    d.topic,
			Guidance: d.text,
			Score:    float64(over+overlap(qt, d.head)) / float64(2*len(qt)),
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		if la, lb := len(out[a].Guidance), len(out[b].Guidance); la != lb {
			return la < lb
		}
		return out[a].Guidance < out[b].Guidance
	})
	if k < len(out) {
		out = out[:k]
	}
	return out
}

type section struct {
	title      string
	paragraphs []string
}

// parseSections groups paragraphs under their nearest "## " heading.
// Table rows are flattened into one paragraph per row; top-level "# "
// headings are skipped.
func parseSections(r io.Reader) ([]section, error) {
	var (
		out  []section
		cur  = section{title: "General"}
		para []string
	)
	flush := func() {
		if len(para) > 0 {
			cur.paragraphs = append(cur.paragraphs, strings.Join(para, " "))
			para = nil
		}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "## "):
			flush()
			if len(cur.paragraphs) > 0 {
				out = append(out, cur)
			}
			cur = section{title: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
		case strings.HasPrefix(line, "# "):
			flush()
		case strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|"):
			flush()
			if row := tableRow(line); row != "" {
				cur.paragraphs = append(cur.paragraphs, row)
			}
		default:
			para = append(para, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	if len(cur.paragraphs) > 0 {
		out = append(out, cur)
	}
	return out, nil
}

// tableRow joins the cells of a Markdown table row, or returns "" for a
// separator row.
func tableRow(line string) string {
	var cells []string
	sep := true
	for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":- ") != "" {
			sep = false
		}
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	if sep {
		return ""
	}
	return strings.Join(cells, " ")
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

var englishStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"i": {}, "you": {}, "we": {}, "my": {}, "your": {}, "our": {}, "me": {}, "can": {},
	"do": {}, "does": {}, "what": {}, "how": {}, "would": {}, "will": {}, "if": {}, "so": {},
}
