package chunking

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lexigraph/lexigraph/core"
)

// Strategy selects how document text is split into chunks.
type Strategy string

const (
	StrategyFixed    Strategy = "fixed"
	StrategySemantic Strategy = "semantic"
	StrategyAgentic  Strategy = "agentic"
	StrategyHybrid   Strategy = "hybrid"
)

const (
	defaultMaxChunkSize = 1000
	defaultMinChunkSize = 100
	defaultOverlap      = 100

	// provisional coherence score assigned by the fixed strategy
	provisionalScore = 0.5
)

// Options configures a chunking run.
type Options struct {
	Strategy          Strategy
	MaxChunkSize      int
	ChunkOverlap      int
	MinChunkSize      int
	PreserveStructure bool
	DocumentType      string
}

// DefaultOptions returns chunking options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Strategy:          StrategyHybrid,
		MaxChunkSize:      defaultMaxChunkSize,
		ChunkOverlap:      defaultOverlap,
		MinChunkSize:      defaultMinChunkSize,
		PreserveStructure: true,
	}
}

func (o *Options) normalize() {
	if o.Strategy == "" {
		o.Strategy = StrategyHybrid
	}
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = defaultMaxChunkSize
	}
	if o.MinChunkSize < 0 {
		o.MinChunkSize = defaultMinChunkSize
	}
	if o.MinChunkSize >= o.MaxChunkSize {
		o.MinChunkSize = o.MaxChunkSize / 10
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = defaultOverlap
	}
}

// Engine splits document text into typed, leveled chunks.
type Engine struct {
	sentenceRe *regexp.Regexp
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a new chunking engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		sentenceRe: regexp.MustCompile(`(?m)(?U)[^.!?]+[.!?]+`),
		logger:     slog.Default().With("component", "chunking"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Chunk splits text according to the requested strategy. If the strategy
// fails for any reason the engine falls back to fixed chunking; chunking
// itself never aborts ingestion.
func (e *Engine) Chunk(text string, opts Options) []core.Chunk {
	opts.normalize()

	chunks, err := e.runStrategy(text, opts)
	if err != nil {
		e.logger.Warn("chunking strategy failed, falling back to fixed",
			"strategy", opts.Strategy, "err", err)
		return e.fixed(text, opts)
	}
	return chunks
}

func (e *Engine) runStrategy(text string, opts Options) (chunks []core.Chunk, err error) {
	// A misbehaving strategy must degrade to fixed chunking, not take the
	// pipeline down with it.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chunking panic: %v", r)
		}
	}()

	switch opts.Strategy {
	case StrategyFixed:
		return e.fixed(text, opts), nil
	case StrategySemantic, StrategyAgentic:
		// agentic is reserved for a model-driven splitter and currently
		// delegates to semantic
		return e.semantic(text, opts), nil
	case StrategyHybrid:
		return e.hybrid(text, opts), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", opts.Strategy)
	}
}

// sentence is an internal unit produced by sentence splitting, carrying its
// offsets into the original text.
type sentence struct {
	text  string
	start int
	end   int
}

func (e *Engine) splitSentences(text string) []sentence {
	matches := e.sentenceRe.FindAllStringIndex(text, -1)
	sentences := make([]sentence, 0, len(matches)+1)
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			sentences = append(sentences, sentence{text: s, start: m[0], end: m[1]})
		}
		last = m[1]
	}
	// Trailing text without terminal punctuation still counts as a sentence.
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, sentence{text: tail, start: last, end: len(text)})
	}
	return sentences
}

// fixed greedily accumulates sentences into chunks bounded by MaxChunkSize,
// seeding each new chunk with a word-count overlap from the previous one.
func (e *Engine) fixed(text string, opts Options) []core.Chunk {
	sentences := e.splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	overlapWords := opts.ChunkOverlap / 10

	var chunks []core.Chunk
	var buffer string
	bufferEnd := 0

	closeChunk := func() {
		chunks = append(chunks, e.newChunk(buffer, bufferEnd, len(chunks)))
	}

	for _, s := range sentences {
		if buffer != "" && len(buffer)+len(s.text)+1 > opts.MaxChunkSize && len(buffer) > opts.MinChunkSize {
			closeChunk()
			// Seed the next buffer with the trailing words of the closed
			// chunk, then the sentence that triggered the split.
			seed := trailingWords(buffer, overlapWords)
			if seed != "" {
				buffer = seed + " " + s.text
			} else {
				buffer = s.text
			}
		} else if buffer == "" {
			buffer = s.text
		} else {
			buffer += " " + s.text
		}
		bufferEnd = s.end
	}

	// The final chunk of a document may be shorter than MinChunkSize;
	// dropping it would lose the trailing text entirely.
	if strings.TrimSpace(buffer) != "" {
		closeChunk()
	}

	return chunks
}

func (e *Engine) newChunk(content string, endIndex, ordinal int) core.Chunk {
	start := endIndex - len(content)
	if start < 0 {
		start = 0
	}
	return core.Chunk{
		Id:            "chunk_" + core.IDFromContent(fmt.Sprintf("%d:%s", ordinal, content)),
		Content:       content,
		Type:          core.ChunkTypeParagraph,
		Level:         0,
		SemanticScore: provisionalScore,
		StartIndex:    start,
		EndIndex:      endIndex,
		Keywords:      extractKeywords(content, 5),
	}
}

// semantic runs fixed chunking and then rescores each chunk's coherence from
// lexical overlap with its neighbours.
func (e *Engine) semantic(text string, opts Options) []core.Chunk {
	chunks := e.fixed(text, opts)
	if len(chunks) == 0 {
		return chunks
	}

	sets := make([]map[string]struct{}, len(chunks))
	for i := range chunks {
		sets[i] = wordSet(chunks[i].Content)
	}

	for i := range chunks {
		score := provisionalScore
		if i > 0 {
			score += 0.25 * overlapRatio(sets[i], sets[i-1])
		}
		if i < len(chunks)-1 {
			score += 0.25 * overlapRatio(sets[i], sets[i+1])
		}
		if score > 1.0 {
			score = 1.0
		}
		chunks[i].SemanticScore = score
	}
	return chunks
}

// hybrid runs semantic chunking, then re-splits any chunk whose content
// exceeds 1.5x MaxChunkSize, tagging sub-chunks one level deeper.
func (e *Engine) hybrid(text string, opts Options) []core.Chunk {
	chunks := e.semantic(text, opts)
	limit := opts.MaxChunkSize * 3 / 2

	var out []core.Chunk
	for _, c := range chunks {
		if len(c.Content) <= limit {
			out = append(out, c)
			continue
		}
		out = append(out, e.refine(c, opts, limit)...)
	}
	return out
}

// refine re-splits an oversized chunk via fixed chunking. A chunk that the
// sentence splitter cannot reduce (a single run-on sentence) is hard-split
// at MaxChunkSize boundaries so refinement always terminates.
func (e *Engine) refine(parent core.Chunk, opts Options, limit int) []core.Chunk {
	subs := e.fixed(parent.Content, opts)
	if len(subs) <= 1 {
		subs = e.hardSplit(parent.Content, opts.MaxChunkSize, opts.MinChunkSize)
	}

	var out []core.Chunk
	for _, sub := range subs {
		sub.Level = parent.Level + 1
		sub.ParentChunkId = parent.Id
		sub.StartIndex += parent.StartIndex
		sub.EndIndex += parent.StartIndex
		if len(sub.Content) > limit {
			out = append(out, e.refine(sub, opts, limit)...)
			continue
		}
		out = append(out, sub)
	}
	return out
}

// hardSplit cuts content into size-byte pieces, moving each cut back to
// the nearest rune boundary so multi-byte characters stay intact. A final
// piece shorter than minSize is folded into the previous one when the
// merged piece still fits the refinement limit.
func (e *Engine) hardSplit(content string, size, minSize int) []core.Chunk {
	var pieces []string
	for start := 0; start < len(content); {
		end := start + size
		if end >= len(content) {
			end = len(content)
		} else {
			for end > start && !utf8.RuneStart(content[end]) {
				end--
			}
			if end == start {
				// A single rune wider than size; take it whole.
				_, w := utf8.DecodeRuneInString(content[start:])
				end = start + w
			}
		}
		pieces = append(pieces, content[start:end])
		start = end
	}

	if n := len(pieces); n > 1 && len(pieces[n-1]) < minSize &&
		len(pieces[n-2])+len(pieces[n-1]) <= size*3/2 {
		pieces[n-2] += pieces[n-1]
		pieces = pieces[:n-1]
	}

	var chunks []core.Chunk
	end := 0
	for _, p := range pieces {
		end += len(p)
		chunks = append(chunks, e.newChunk(p, end, len(chunks)))
	}
	return chunks
}

// trailingWords returns the last n whitespace-separated words of s.
func trailingWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]{}")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// overlapRatio is the share of a's words that also occur in b.
func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	var common int
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}
	return float64(common) / float64(len(a))
}
