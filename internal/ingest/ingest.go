// Package ingest bulk-loads prices from gzip-compressed JSON-lines feeds.
//
// Feeds are processed in three passes. Pass 1 builds a bloom filter of the
// product ids in each feed. Pass 2 re-reads every feed and, using the other
// feeds' filters, records which feeds really contain each shared id. Pass 3
// writes the records, skipping any id that a later feed also carries, so the
// last feed wins and feeds can be written concurrently.
package ingest

import (
	"context"
	"math/bits"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/retail-products/internal/domain/product"
)

// MaxFeeds bounds the number of feeds in one run; presence is tracked as a
// bitmask per id.
const MaxFeeds = bits.UintSize

// Config tunes an import run.
type Config struct {
	BloomCapacity uint    `default:"10000000" usage:"Expected ids per feed"`
	BloomFPR      float64 `default:"0.001" usage:"Bloom filter false positive rate"`
	Workers       int     `default:"4" usage:"Feeds written concurrently"`
	ProgressEvery uint64  `default:"1000000" usage:"Log progress every N records"`
}

// Stats summarizes an import run.
type Stats struct {
	Feeds      int
	Records    uint64
	Written    uint64
	Superseded uint64
	Invalid    uint64
	Malformed  uint64
}

// Importer loads feeds into a product.PriceStore.
type Importer struct {
	cfg       Config
	prices    product.PriceStore
	validator *product.Validator
	lg        *zap.Logger
}

// NewImporter returns an Importer writing to prices. Records are checked
// against currencies with the rules of product.Validator.
func NewImporter(cfg Config, prices product.PriceStore, currencies product.CurrencySet, lg *zap.Logger) *Importer {
	if cfg.BloomCapacity == 0 {
		cfg.BloomCapacity = 10_000_000
	}
	if cfg.BloomFPR <= 0 || cfg.BloomFPR >= 1 {
		cfg.BloomFPR = 0.001
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = 1_000_000
	}
	return &Importer{
		cfg:       cfg,
		prices:    prices,
		validator: product.NewValidator(newCurrencyMemo(currencies)),
		lg:        lg,
	}
}

// Import runs all three passes over files, in precedence order.
func (im *Importer) Import(ctx context.Context, files []string) (Stats, error) {
	if len(files) == 0 {
		return Stats{}, nil
	}
	if len(files) > MaxFeeds {
		return Stats{}, errors.Errorf("at most %d feeds per run, got %d", MaxFeeds, len(files))
	}

	im.lg.Info("Pass 1: building bloom filters", zap.Int("feeds", len(files)))
	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return Stats{}, errors.Wrap(err, "build bloom filters")
	}

	im.lg.Info("Pass 2: finding ids shared between feeds")
	shared, err := im.findShared(ctx, files, filters)
	if err != nil {
		return Stats{}, errors.Wrap(err, "find shared ids")
	}
	im.lg.Info("Shared ids found", zap.Int("count", len(shared)))

	im.lg.Info("Pass 3: writing prices")
	stats, err := im.write(ctx, files, shared)
	if err != nil {
		return stats, errors.Wrap(err, "write prices")
	}
	return stats, nil
}

func idKey(id int64) []byte {
	return strconv.AppendInt(nil, id, 10)
}

func (im *Importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(im.cfg.BloomCapacity, im.cfg.BloomFPR)
			var n uint64
			err := streamFeed(ctx, path, func(line []byte) error {
				r, err := parseRecord(line)
				if err != nil {
					return nil
				}
				filter.Add(idKey(r.ID))
				n++
				if n%im.cfg.ProgressEvery == 0 {
					im.lg.Info("Pass 1 progress", zap.String("feed", path), zap.Uint64("records", n))
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}
			im.lg.Info("Pass 1 complete", zap.String("feed", path), zap.Uint64("records", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findShared returns, for every id present in two or more feeds, the bitmask
// of feeds containing it. A feed sets its own bit only for ids that some
// other feed's filter reports, so a bloom false positive never yields a
// second bit on its own.
func (im *Importer) findShared(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[int64]uint, error) {
	candidates := make([]map[int64]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[int64]struct{})
			err := streamFeed(ctx, path, func(line []byte) error {
				r, err := parseRecord(line)
				if err != nil {
					return nil
				}
				key := idKey(r.ID)
				for j, f := range filters {
					if j != i && f.Test(key) {
						found[r.ID] = struct{}{}
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}
			im.lg.Info("Pass 2 complete", zap.String("feed", path), zap.Int("candidates", len(found)))
			candidates[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	masks := make(map[int64]uint)
	for i, found := range candidates {
		for id := range found {
			masks[id] |= 1 << uint(i)
		}
	}
	for id, mask := range masks {
		if bits.OnesCount(mask) < 2 {
			delete(masks, id)
		}
	}
	return masks, nil
}

// superseded reports whether a later feed than idx also carries the id.
func superseded(mask uint, idx int) bool {
	return mask>>(uint(idx)+1) != 0
}

func (im *Importer) write(ctx context.Context, files []string, shared map[int64]uint) (Stats, error) {
	var records, written, skipped, invalid, malformed atomic.Uint64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			lg := im.lg.With(zap.String("feed", path))
			err := streamFeed(ctx, path, func(line []byte) error {
				n := records.Add(1)
				if n%im.cfg.ProgressEvery == 0 {
					lg.Info("Pass 3 progress", zap.Uint64("records", n))
				}

				r, err := parseRecord(line)
				if err != nil {
					malformed.Add(1)
					lg.Debug("Malformed record", zap.Error(err))
					return nil
				}
				if mask, ok := shared[r.ID]; ok && superseded(mask, i) {
					skipped.Add(1)
					return nil
				}

				ok, err := im.valid(ctx, r)
				if err != nil {
					return err
				}
				if !ok {
					invalid.Add(1)
					return nil
				}

				if err := im.prices.Upsert(ctx, product.NewPriceRecord(r.ID, *r.Value, r.Currency)); err != nil {
					return err
				}
				written.Add(1)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}
			lg.Info("Pass 3 complete")
			return nil
		})
	}
	err := g.Wait()

	return Stats{
		Feeds:      len(files),
		Records:    records.Load(),
		Written:    written.Load(),
		Superseded: skipped.Load(),
		Invalid:    invalid.Load(),
		Malformed:  malformed.Load(),
	}, err
}

// valid applies the same rules as the HTTP write path. Currency lookup
// failures are returned as errors.
func (im *Importer) valid(ctx context.Context, r record) (bool, error) {
	if !product.IsValidProductID(r.ID) {
		return false, nil
	}

	u := &product.PriceUpdate{Price: &product.PriceInput{Value: r.Value, CurrencyCode: r.Currency}}
	err := im.validator.ValidatePriceUpdate(ctx, u)
	if err == nil {
		return true, nil
	}
	var vErr *product.ValidationError
	if errors.As(err, &vErr) {
		return false, nil
	}
	return false, err
}

// currencyMemo caches currency verdicts so a feed does not hit the store
// once per line.
type currencyMemo struct {
	next product.CurrencySet

	mu    sync.RWMutex
	known map[string]bool
}

var _ product.CurrencySet = (*currencyMemo)(nil)

func newCurrencyMemo(next product.CurrencySet) *currencyMemo {
	return &currencyMemo{next: next, known: make(map[string]bool)}
}

func (m *currencyMemo) IsKnown(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	known, ok := m.known[code]
	m.mu.RUnlock()
	if ok {
		return known, nil
	}

	known, err := m.next.IsKnown(ctx, code)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	m.known[code] = known
	m.mu.Unlock()
	return known, nil
}

func (m *currencyMemo) Add(ctx context.Context, code string) error {
	if err := m.next.Add(ctx, code); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.known, strings.ToUpper(code))
	m.mu.Unlock()
	return nil
}
