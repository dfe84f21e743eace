package lms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

const commutesPath = "/v1/commutes/end"

// pageWorkers bounds concurrent page fetches. The pool bound doubles as
// the rate limiter toward the LMS API.
const pageWorkers = 4

// Query holds the fixed filter parameters for one collection run. Only the
// page number varies between requests.
type Query struct {
	Cluster  string
	Center   string
	WorkPart string // empty when the report filters client-side
	Size     int

	IsEndWork        bool
	IsEarlyEndWork   bool
	IsOverWork       bool
	IsEarlyStartWork bool
}

func (q Query) values(date string, page int) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("size", strconv.Itoa(q.Size))
	v.Set("cluster", q.Cluster)
	v.Set("center", q.Center)
	if q.WorkPart != "" {
		v.Set("workPart", q.WorkPart)
	}
	v.Set("isEndWork", strconv.FormatBool(q.IsEndWork))
	v.Set("isEarlyEndWork", strconv.FormatBool(q.IsEarlyEndWork))
	v.Set("isOverWork", strconv.FormatBool(q.IsOverWork))
	v.Set("isEarlyStartWork", strconv.FormatBool(q.IsEarlyStartWork))
	v.Set("startDate", date)
	v.Set("endDate", date)
	return v
}

// Client implements ports.Collector against the LMS commutes API.
type Client struct {
	session *Session
	query   Query
	retry   RetryPolicy
	log     *slog.Logger
}

func NewClient(session *Session, query Query, retry RetryPolicy, log *slog.Logger) *Client {
	if query.Size <= 0 {
		query.Size = 100
	}
	return &Client{session: session, query: query, retry: retry, log: log}
}

// errBadPayload marks a 2xx body that did not decode. The failure is
// deterministic, so the retry policy treats it as permanent.
var errBadPayload = errors.New("malformed response payload")

type page struct {
	records    []domain.Record
	totalPages int
}

func (c *Client) fetchPage(ctx context.Context, date string, pageNum int) (page, error) {
	var out page
	err := c.retry.Do(ctx, func() error {
		body, err := c.session.Get(ctx, commutesPath, c.query.values(date, pageNum))
		if err != nil {
			return err
		}
		var envelope struct {
			Data struct {
				Content    []domain.Record `json:"content"`
				TotalPages int             `json:"totalPages"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("%w: decoding page %d: %v", errBadPayload, pageNum, err)
		}
		out = page{records: envelope.Data.Content, totalPages: envelope.Data.TotalPages}
		return nil
	})
	return out, err
}

// CollectDay fetches every page of one date's collection. Page 1 runs
// synchronously and its totalPages is authoritative for the run; the
// remaining pages run on a bounded pool and are merged in ascending page
// order regardless of completion order. A non-first page that fails after
// the retry budget is dropped and reported, not fatal.
func (c *Client) CollectDay(ctx context.Context, date string) (domain.CollectResult, error) {
	first, err := c.fetchPage(ctx, date, 1)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			return domain.CollectResult{}, err
		}
		return domain.CollectResult{}, fmt.Errorf("%w: page 1 of %s: %v", domain.ErrFetch, date, err)
	}

	totalPages := first.totalPages
	if totalPages < 1 {
		totalPages = 1
	}
	pages := make([][]domain.Record, totalPages)
	pages[0] = first.records

	var (
		mu      sync.Mutex
		dropped []int
	)
	if totalPages > 1 {
		g := new(errgroup.Group)
		g.SetLimit(pageWorkers)
		for p := 2; p <= totalPages; p++ {
			g.Go(func() error {
				res, err := c.fetchPage(ctx, date, p)
				if err != nil {
					c.log.Warn("dropping page after exhausted retries",
						slog.String("date", date),
						slog.Int("page", p),
						slog.String("error", err.Error()),
					)
					mu.Lock()
					dropped = append(dropped, p)
					mu.Unlock()
					return nil
				}
				pages[p-1] = res.records
				return nil
			})
		}
		// Workers swallow their own failures, so Wait only drains the pool.
		_ = g.Wait()
	}
	sort.Ints(dropped)

	var records []domain.Record
	for _, pg := range pages {
		records = append(records, pg...)
	}
	c.log.Info("collected records",
		slog.String("date", date),
		slog.Int("count", len(records)),
		slog.Int("pages", totalPages),
		slog.Int("dropped_pages", len(dropped)),
	)
	return domain.CollectResult{Records: records, TotalPages: totalPages, DroppedPages: dropped}, nil
}
