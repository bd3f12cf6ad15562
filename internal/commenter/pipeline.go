package commenter

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline runs extract, synthesize and splice for one source text.
type Pipeline struct {
	Synthesizer *Synthesizer
	Splicer     Splicer
	Logger      *zap.SugaredLogger
}

// NewPipeline wires a pipeline. A nil logger disables logging.
func NewPipeline(synth *Synthesizer, splicer Splicer, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{Synthesizer: synth, Splicer: splicer, Logger: logger}
}

// Annotate returns source with one generated comment above every function,
// class and loop. Any failure aborts the whole batch and no partial text is
// returned. Parse errors are reported before the text generator is called.
func (p *Pipeline) Annotate(ctx context.Context, source string, style Style) (Result, error) {
	batchID := uuid.NewString()
	log := p.logger().With("batch", batchID, "style", string(style))
	start := time.Now()

	records, err := ExtractContext(ctx, []byte(source))
	if err != nil {
		log.Warnw("extract structures", "error", err)
		return Result{}, err
	}
	log.Debugw("extracted structures", "records", len(records))

	pending := append([]StructuralRecord(nil), records...)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Line > pending[j].Line
	})

	comments := make([]Comment, 0, len(pending))
	for i, rec := range pending {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text, err := p.Synthesizer.Synthesize(ctx, rec, style)
		if err != nil {
			log.Errorw("synthesize comment",
				"kind", string(rec.Kind),
				"line", rec.Line,
				"completed", i,
				"remaining", len(pending)-i,
				"error", err,
			)
			return Result{}, err
		}
		comments = append(comments, Comment{Line: rec.Line, Order: rec.Order, Text: text})
	}

	annotated, err := p.Splicer.SpliceText(source, comments)
	if err != nil {
		return Result{}, errors.Wrap(err, "splice comments")
	}

	log.Infow("annotated source",
		"records", len(records),
		"duration", time.Since(start),
	)
	return Result{
		BatchID:  batchID,
		Text:     annotated,
		Records:  records,
		Comments: comments,
	}, nil
}

func (p *Pipeline) logger() *zap.SugaredLogger {
	if p == nil || p.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return p.Logger
}
