// Package pipeline turns raw source records into the persisted market
// dataset: convert, filter, aggregate, merge, write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
	"katsuo-market/internal/normalize"
)

// ErrNothingFetched is returned by a fresh run when every source failed,
// since writing would replace the dataset with nothing.
var ErrNothingFetched = errors.New("no source could be fetched")

// ErrIncompleteLoad is returned by LoadTrusted when some source rows could
// not be carried into the dataset. Rewriting the source from that dataset
// would lose them.
var ErrIncompleteLoad = errors.New("trusted source has rows that cannot be kept")

// LoadError reports the rows LoadTrusted could not keep.
type LoadError struct {
	Source   string
	Skipped  int
	Discards map[string]int
}

func (e *LoadError) Error() string {
	reasons := make([]string, 0, len(e.Discards))
	for reason, n := range e.Discards {
		reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(reasons)
	if e.Skipped > 0 {
		reasons = append(reasons, fmt.Sprintf("skipped=%d", e.Skipped))
	}
	return fmt.Sprintf("%s: %s: %s", ErrIncompleteLoad, e.Source, strings.Join(reasons, " "))
}

func (e *LoadError) Is(target error) bool { return target == ErrIncompleteLoad }

// skipCounter is implemented by sources that drop unreadable rows before
// yielding, such as data.CSVSource.
type skipCounter interface {
	Skipped() int
}

func skippedBy(src data.Source) int {
	if sc, ok := src.(skipCounter); ok {
		return sc.Skipped()
	}
	return 0
}

// Archiver mirrors merged observations into secondary storage.
type Archiver interface {
	Archive(ctx context.Context, runID string, obs []model.PriceObservation) error
}

// Options selects the inputs and output of one run.
type Options struct {
	// Sources are fresh, untrusted inputs: validated against the known
	// ports and the price band.
	Sources []data.Source

	// OutputPath is where the merged dataset is written; unless Fresh or
	// Baseline is set it is also the dataset merged into.
	OutputPath string

	// Baseline overrides how the dataset to merge into is loaded.
	Baseline func(ctx context.Context) (model.Dataset, error)

	// Write overrides how the merged dataset is persisted.
	// Defaults to data.WriteDataset.
	Write func(path string, ds model.Dataset) error

	// Fresh merges into an empty dataset instead of the baseline.
	Fresh bool

	// DryRun runs every stage but the write and the archive.
	DryRun bool
}

type Pipeline struct {
	normalizer *normalize.Normalizer
	bounds     Bounds
	logger     *zap.Logger
	archiver   Archiver
	now        func() time.Time
	newID      func() string
}

type Option func(*Pipeline)

func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.normalizer = n
		}
	}
}

func WithBounds(b Bounds) Option {
	return func(p *Pipeline) { p.bounds = b }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger.Named("pipeline")
		}
	}
}

func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer: normalize.NewNormalizer(),
		bounds:     DefaultBounds(),
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one batch. Source failures are recorded in the result and
// never abort the run; a baseline that cannot be loaded or a failed write
// does.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.OutputPath == "" && !opts.DryRun {
		return nil, fmt.Errorf("output path is empty")
	}

	res := newResult(p.newID(), p.now())
	res.DryRun = opts.DryRun
	log := p.logger.With(zap.String("run_id", res.RunID))

	raw, reports := p.fetchAll(ctx, opts.Sources, log)
	res.Sources = reports
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if opts.Fresh && len(opts.Sources) > 0 && len(res.FailedSources()) == len(opts.Sources) {
		return res, ErrNothingFetched
	}

	conv := Converter{Normalizer: p.normalizer}
	var accepted []model.PriceObservation
	for _, batch := range raw {
		for _, r := range batch {
			o, err := conv.Convert(r)
			if err != nil {
				res.discard(DiscardReason(err))
				log.Debug("record discarded", zap.Error(err))
				continue
			}
			if !p.bounds.Accept(o) {
				res.discard(ReasonOutlier)
				log.Debug("outlier discarded",
					zap.String("key", o.Key().String()),
					zap.Float64("price", o.Price))
				continue
			}
			accepted = append(accepted, o)
		}
	}
	res.Accepted = len(accepted)

	incoming := Aggregate(accepted)
	res.Aggregated = len(incoming)

	baseline, err := p.baseline(ctx, opts)
	if err != nil {
		return res, fmt.Errorf("load baseline: %w", err)
	}

	merged, stats := Merge(baseline, incoming)
	res.Merge = stats
	res.Dataset = merged

	if !opts.DryRun {
		write := opts.Write
		if write == nil {
			write = data.WriteDataset
		}
		if err := write(opts.OutputPath, merged); err != nil {
			res.FinishedAt = p.now()
			log.Error("write failed", zap.String("path", opts.OutputPath), zap.Error(err))
			return res, err
		}
		res.Written = merged.Len()

		if p.archiver != nil && len(incoming) > 0 {
			if err := p.archiver.Archive(ctx, res.RunID, incoming); err != nil {
				res.ArchiveErr = err
				log.Warn("archive failed", zap.Error(err))
			}
		}
	}

	res.FinishedAt = p.now()
	log.Info("run complete", res.Fields()...)
	return res, nil
}

func (p *Pipeline) baseline(ctx context.Context, opts Options) (model.Dataset, error) {
	switch {
	case opts.Fresh:
		return model.Dataset{}, nil
	case opts.Baseline != nil:
		return opts.Baseline(ctx)
	case opts.OutputPath == "":
		return model.Dataset{}, nil
	default:
		return LoadTrusted(ctx, data.NewPriorJSONSource(opts.OutputPath), p.normalizer)
	}
}

// fetchAll fetches every source concurrently. Each source drains into its
// own slice; results keep the order of sources.
func (p *Pipeline) fetchAll(ctx context.Context, sources []data.Source, log *zap.Logger) ([][]model.RawRecord, []SourceReport) {
	raw := make([][]model.RawRecord, len(sources))
	reports := make([]SourceReport, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			reports[i].Name = src.Name()
			seq, err := src.Fetch(gctx)
			if err != nil {
				reports[i].Err = err
				log.Warn("source unavailable", zap.String("source", src.Name()), zap.Error(err))
				return nil
			}
			raw[i] = data.Collect(seq)
			reports[i].Fetched = len(raw[i])
			reports[i].Skipped = skippedBy(src)
			log.Info("source fetched",
				zap.String("source", src.Name()),
				zap.Int("records", len(raw[i])),
				zap.Int("skipped", reports[i].Skipped))
			return nil
		})
	}
	_ = g.Wait()
	return raw, reports
}

// LoadTrusted reads a source of already-curated records into a dataset.
// Ports outside the known set are kept and the price band is not applied;
// a later duplicate key replaces an earlier one. Every row must survive:
// if the source skipped rows or any row fails conversion the load fails
// with a *LoadError, since the caller is about to rewrite that data.
func LoadTrusted(ctx context.Context, src data.Source, n *normalize.Normalizer) (model.Dataset, error) {
	seq, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	conv := Converter{Normalizer: n, AnyPort: true}
	var obs []model.PriceObservation
	discards := map[string]int{}
	for r := range seq {
		o, err := conv.Convert(r)
		if err != nil {
			discards[DiscardReason(err)]++
			continue
		}
		obs = append(obs, o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if skipped := skippedBy(src); skipped > 0 || len(discards) > 0 {
		return nil, &LoadError{Source: src.Name(), Skipped: skipped, Discards: discards}
	}
	ds, _ := Merge(model.Dataset{}, obs)
	return ds, nil
}
