// Command exclusion-ingest builds a promotion's customer blacklist from
// distributor feed files.
//
// Distributors deliver gzipped files of customer numbers, one per line. The
// files are large and overlap heavily: a customer reported by two or more
// distributors is considered confirmed and gets excluded from the promotion.
// The tool streams each file twice: first to build one bloom filter per
// file, then to collect customers whose number probably appears in another
// file as well. The confirmed set is upserted into promotion_exclusions.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/tradeforce/promo-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 5_000_000
)

// fileResult holds candidate customer ids found in a single file during pass 2.
type fileResult struct {
	candidates map[int64]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
		promotionID int64
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing exclusion feed *.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Int64Var(&promotionID, "promotion-id", 0, "promotion to attach the exclusions to")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if promotionID == 0 {
		slog.Error("promotion id is required: set --promotion-id")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, promotionID); err != nil {
		slog.Error("exclusion ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("exclusion ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, promotionID int64) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) < 2 {
		return errors.Errorf("need at least 2 feed files in %s, found %d", dataDir, len(files))
	}
	if len(files) > 32 {
		return errors.Errorf("too many feed files: %d (max 32)", len(files))
	}

	// Pass 1: one bloom filter per file, built concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: customers appearing in 2+ feeds.
	slog.Info("pass 2: finding confirmed customers")

	confirmed, err := findConfirmedCustomers(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find confirmed customers")
	}

	slog.Info("confirmed customers found", slog.Int("count", len(confirmed)))

	if len(confirmed) == 0 {
		slog.Info("no exclusions to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeExclusions(ctx, pool, promotionID, confirmed); err != nil {
		return errors.Wrap(err, "write exclusions to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			if _, err := strconv.ParseInt(line, 10, 64); err != nil {
				return
			}
			filter.AddString(line)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("customers", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_customers", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConfirmedCustomers re-streams each file and checks customer numbers
// against the OTHER files' bloom filters. A customer is confirmed when it
// appears in 2 or more feeds.
func findConfirmedCustomers(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]int64, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-file bitmasks.
	merged := make(map[int64]uint)
	for _, r := range results {
		for id, mask := range r.candidates {
			merged[id] |= mask
		}
	}

	var confirmed []int64
	for id, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			confirmed = append(confirmed, id)
		}
	}

	return confirmed, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[int64]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			id, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("customers", count),
				)
			}

			// Keep only customers that probably appear in another feed too.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(line) {
					candidates[id] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_customers", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeExclusions upserts the confirmed customers into the promotion's
// blacklist.
func writeExclusions(ctx context.Context, pool *pgxpool.Pool, promotionID int64, customers []int64) error {
	slog.Info("writing exclusions to database",
		slog.Int64("promotion_id", promotionID),
		slog.Int("count", len(customers)),
	)

	for i, id := range customers {
		if _, err := pool.Exec(ctx, `
			INSERT INTO promotion_exclusions (promotion_id, customer_id, is_excluded)
			VALUES ($1, $2, 'Y')
			ON CONFLICT (promotion_id, customer_id) DO UPDATE SET is_excluded = 'Y'`,
			promotionID, id,
		); err != nil {
			return errors.Wrapf(err, "upsert exclusion for customer %d", id)
		}

		if (i+1)%1000 == 0 || i+1 == len(customers) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(customers)))
		}
	}

	return nil
}
