package ingest

import (
	"sort"
	"strings"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

const (
	// minConfidence is the floor a processor must strictly exceed to be
	// selected at all.
	minConfidence = 0.5

	// sampleMaxBytes bounds how much of a file the registry inspects
	// during selection.
	sampleMaxBytes = 8 * 1024

	// sampleMaxLines bounds the sampled line count.
	sampleMaxLines = 64
)

// Registry selects the best-fitting format processor for a given input.
// Selection is deterministic: every registered processor scores the same
// bounded sample, the highest confidence strictly above minConfidence
// wins, and ties go to the earliest registration.
type Registry struct {
	processors   []Processor
	maxErrorRate float64
	log          *logger.Logger
}

// NewRegistry creates an empty registry. maxErrorRate is the parse-level
// error ratio above which a selected processor is retroactively rejected
// and the next candidate is tried.
func NewRegistry(maxErrorRate float64, log *logger.Logger) *Registry {
	return &Registry{
		maxErrorRate: maxErrorRate,
		log:          log.WithComponent("ingest.registry"),
	}
}

// NewDefaultRegistry returns a registry with the built-in processors in
// their canonical order: daily tab, historical tab, extended CSV.
func NewDefaultRegistry(maxErrorRate float64, log *logger.Logger) *Registry {
	r := NewRegistry(maxErrorRate, log)
	r.Register(NewTabSingleDateProcessor())
	r.Register(NewTabMultiDateProcessor())
	r.Register(NewCSVExtendedProcessor())
	return r
}

// Register appends a processor. Registration order is the tie-breaker
// during selection, so callers register the most specific format first.
func (r *Registry) Register(p Processor) {
	r.processors = append(r.processors, p)
}

// candidate pairs a processor with its score for one input.
type candidate struct {
	processor  Processor
	confidence float64
	order      int
}

// rank scores every processor against the bounded sample and returns the
// eligible candidates sorted best-first.
func (r *Registry) rank(text, filename string) []candidate {
	sample := boundedSample(text)

	var candidates []candidate
	for i, p := range r.processors {
		ok, confidence := p.CanProcess(sample, filename)
		r.log.Debugf("processor %s scored %.2f (eligible=%v) for %s", p.Name(), confidence, ok, filename)
		if !ok || confidence <= minConfidence {
			continue
		}
		candidates = append(candidates, candidate{processor: p, confidence: confidence, order: i})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].confidence != candidates[b].confidence {
			return candidates[a].confidence > candidates[b].confidence
		}
		return candidates[a].order < candidates[b].order
	})
	return candidates
}

// SelectBest returns the winning processor for the input, or
// contracts.ErrUnrecognizedFormat when nothing clears the threshold.
func (r *Registry) SelectBest(text, filename string) (Processor, error) {
	candidates := r.rank(text, filename)
	if len(candidates) == 0 {
		return nil, contracts.ErrUnrecognizedFormat
	}
	return candidates[0].processor, nil
}

// Parse runs selection and parsing in one step with error-rate fallback:
// if the chosen processor's row error rate exceeds the configured limit,
// its result is discarded and the next candidate is tried.
func (r *Registry) Parse(text, filename string) (*contracts.ProcessResult, string, error) {
	candidates := r.rank(text, filename)
	if len(candidates) == 0 {
		return nil, "", contracts.ErrUnrecognizedFormat
	}

	for _, c := range candidates {
		result, err := c.processor.Parse(text)
		if err != nil {
			r.log.Warnf("processor %s failed on %s: %v", c.processor.Name(), filename, err)
			continue
		}
		if result.TotalCount > 0 && result.ErrorRate() > r.maxErrorRate {
			r.log.Warnf("processor %s rejected for %s: error rate %.2f exceeds %.2f",
				c.processor.Name(), filename, result.ErrorRate(), r.maxErrorRate)
			continue
		}
		return result, c.processor.Name(), nil
	}

	return nil, "", contracts.ErrUnrecognizedFormat
}

// boundedSample trims the input to the selection window.
func boundedSample(text string) string {
	if len(text) > sampleMaxBytes {
		text = text[:sampleMaxBytes]
		// Drop the likely-truncated last line
		if i := strings.LastIndexByte(text, '\n'); i > 0 {
			text = text[:i]
		}
	}
	lines := splitLines(text)
	if len(lines) > sampleMaxLines {
		lines = lines[:sampleMaxLines]
	}
	return strings.Join(lines, "\n")
}
