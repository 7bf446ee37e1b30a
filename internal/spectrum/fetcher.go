package spectrum

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// CaptureFunc receives each raw vendor response for optional forensic storage.
type CaptureFunc func(operation string, params map[string]string, raw []byte)

// Fetcher fans one logical "fetch everything" request out across configured
// divisions and normalized status codes, because the vendor API has no
// unbounded fetch. Results are merged and deduplicated by natural key.
type Fetcher struct {
	Client  Caller
	Log     *logrus.Logger
	Company string

	Divisions []string
	Denylist  []string

	// PageCap is the vendor's observed de-facto row limit on one filtered
	// call. A result at or above it is treated as potentially truncated.
	PageCap int

	// ContactWorkers bounds the per-job contact fetch pool.
	ContactWorkers int

	// Capture, when set, receives every raw response body.
	Capture CaptureFunc
}

// NormalizeStatuses constrains a requested status filter to the allowed set.
// Blank or "ALL" expands to {A, I}; "C" is honored only when explicitly given.
func NormalizeStatuses(requested []string) []string {
	defaults := []string{"A", "I"}
	if len(requested) == 0 {
		return defaults
	}

	allowed := map[string]bool{"A": true, "I": true, "C": true}
	seen := make(map[string]bool)
	var out []string
	for _, s := range requested {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || s == "ALL" {
			for _, d := range defaults {
				if !seen[d] {
					seen[d] = true
					out = append(out, d)
				}
			}
			continue
		}
		if allowed[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

// divisions returns the configured divisions with the denylist removed,
// deduplicated preserving order. An empty result means one unfiltered call.
func (f *Fetcher) divisions() []string {
	denied := make(map[string]bool, len(f.Denylist))
	for _, d := range f.Denylist {
		denied[d] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, d := range f.Divisions {
		d = strings.TrimSpace(d)
		if d == "" || denied[d] || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		// No division scope configured: a single blank-division call.
		out = []string{""}
	}
	return out
}

// rowKey builds the dedup key for a row from the given fields.
func rowKey(row Row, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = row[f]
	}
	return strings.Join(parts, "|")
}

// call issues one vendor call and normalizes the result. Shape failures are
// logged and yield zero rows; transport failures and vendor faults propagate.
func (f *Fetcher) call(ctx context.Context, operation string, params map[string]string) ([]Row, bool, error) {
	result, err := f.Client.Call(ctx, operation, params)
	if err != nil {
		var shapeErr *ShapeError
		if errors.As(err, &shapeErr) {
			f.Log.WithFields(logrus.Fields{
				"operation": operation,
				"params":    params,
			}).Warnf("unparseable response treated as empty: %v", err)
			return nil, false, nil
		}
		return nil, false, err
	}

	if f.Capture != nil {
		f.Capture(operation, params, result.Raw)
	}

	rows, truncated := Normalize(result.Body, f.Log)
	return rows, truncated, nil
}

// FetchOptions narrows a fan-out fetch.
type FetchOptions struct {
	Statuses   []string
	JobNumber  string   // non-empty means a single-job call, no fan-out
	CostType   string
	SplitOnCap bool     // enable the cost-center truncation recovery
	KeyFields  []string // dedup key; defaults to (Company_Code, Job_Number)
}

// FetchAll fetches all rows for the operation across divisions × statuses,
// deduplicating by the natural key. Last occurrence wins for duplicate keys;
// within one sync only one cell should legitimately hold a given key, so this
// only removes dead duplicates.
//
// When SplitOnCap is set and a single call returns PageCap or more rows (or a
// vendor warning row), the same call is re-issued once per distinct cost
// center found in the capped result, merging any newly discovered keys. This
// widening is best-effort: if the true cap is independent of cost-center
// cardinality rows can still be missed, so a still-capped split result is
// logged and accepted as-is.
func (f *Fetcher) FetchAll(ctx context.Context, operation string, opts FetchOptions) ([]Row, error) {
	keyFields := opts.KeyFields
	if len(keyFields) == 0 {
		keyFields = []string{FieldCompanyCode, FieldJobNumber}
	}

	merged := make(map[string]int) // key -> index into out
	var out []Row
	add := func(rows []Row) {
		for _, row := range rows {
			key := rowKey(row, keyFields)
			if idx, ok := merged[key]; ok {
				out[idx] = row
				continue
			}
			merged[key] = len(out)
			out = append(out, row)
		}
	}

	if opts.JobNumber != "" {
		rows, _, err := f.call(ctx, operation, f.params(map[string]string{
			"Job_Number": opts.JobNumber,
			"Cost_Type":  opts.CostType,
		}))
		if err != nil {
			return nil, err
		}
		add(rows)
		return out, nil
	}

	statuses := NormalizeStatuses(opts.Statuses)
	for _, division := range f.divisions() {
		for _, status := range statuses {
			params := f.params(map[string]string{
				"Division":    division,
				"Status_Code": status,
				"Cost_Type":   opts.CostType,
			})
			rows, truncated, err := f.call(ctx, operation, params)
			if err != nil {
				return nil, err
			}
			add(rows)

			capped := truncated || (f.PageCap > 0 && len(rows) >= f.PageCap)
			if capped && opts.SplitOnCap {
				if err := f.splitByCostCenter(ctx, operation, params, rows, add); err != nil {
					return nil, err
				}
			} else if capped {
				f.Log.WithFields(logrus.Fields{
					"operation": operation,
					"division":  division,
					"status":    status,
					"rows":      len(rows),
				}).Warn("result at page cap; rows may be missing")
			}
		}
	}

	return out, nil
}

// splitByCostCenter re-issues a capped call once per distinct cost center seen
// in the capped result, merging newly discovered rows.
func (f *Fetcher) splitByCostCenter(ctx context.Context, operation string, params map[string]string, capped []Row, add func([]Row)) error {
	centers := make(map[string]bool)
	var ordered []string
	for _, row := range capped {
		if cc := row[FieldCostCenter]; cc != "" && !centers[cc] {
			centers[cc] = true
			ordered = append(ordered, cc)
		}
	}

	f.Log.WithFields(logrus.Fields{
		"operation":    operation,
		"division":     params["Division"],
		"status":       params["Status_Code"],
		"cost_centers": len(ordered),
	}).Warn("capped result; widening by cost center")

	for _, cc := range ordered {
		split := make(map[string]string, len(params)+1)
		for k, v := range params {
			split[k] = v
		}
		split[FieldCostCenter] = cc

		rows, truncated, err := f.call(ctx, operation, split)
		if err != nil {
			return err
		}
		if truncated || (f.PageCap > 0 && len(rows) >= f.PageCap) {
			f.Log.WithFields(logrus.Fields{
				"operation":   operation,
				"cost_center": cc,
				"rows":        len(rows),
			}).Warn("still capped after cost-center split; proceeding with partial result")
		}
		add(rows)
	}
	return nil
}

// FetchPhases fetches phase aggregates, one goroutine per status code, with
// the cost-center cap recovery enabled. Phase rows key on the full phase line.
func (f *Fetcher) FetchPhases(ctx context.Context, opts FetchOptions) ([]Row, error) {
	opts.SplitOnCap = true
	opts.KeyFields = []string{FieldCompanyCode, FieldJobNumber, "Phase_Code", "Cost_Type"}

	statuses := NormalizeStatuses(opts.Statuses)
	if opts.JobNumber != "" || len(statuses) == 1 {
		return f.FetchAll(ctx, OpGetPHByJob, opts)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		rows   []Row
		errOne error
	)
	for _, status := range statuses {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			one := opts
			one.Statuses = []string{status}
			got, err := f.FetchAll(ctx, OpGetPHByJob, one)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errOne == nil {
					errOne = err
				}
				return
			}
			rows = append(rows, got...)
		}(status)
	}
	wg.Wait()
	if errOne != nil {
		return nil, errOne
	}

	// Re-deduplicate across statuses.
	merged := make(map[string]int, len(rows))
	var out []Row
	for _, row := range rows {
		key := rowKey(row, opts.KeyFields)
		if idx, ok := merged[key]; ok {
			out[idx] = row
			continue
		}
		merged[key] = len(out)
		out = append(out, row)
	}
	return out, nil
}

// FetchContacts fetches contacts one call per job number through a bounded
// worker pool; the vendor has no bulk contact endpoint. Per-job failures are
// logged and skipped so one bad job cannot sink the step.
func (f *Fetcher) FetchContacts(ctx context.Context, jobNumbers []string) ([]Row, error) {
	workers := f.ContactWorkers
	if workers <= 0 {
		workers = 6
	}
	if workers > len(jobNumbers) {
		workers = len(jobNumbers)
	}
	if workers == 0 {
		return nil, nil
	}

	jobs := make(chan string)
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		rows []Row
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jobNumber := range jobs {
				got, _, err := f.call(ctx, OpGetJobContacts, f.params(map[string]string{
					"Job_Number": jobNumber,
				}))
				if err != nil {
					f.Log.WithField("job_number", jobNumber).
						Warnf("contact fetch failed: %v", err)
					continue
				}
				mu.Lock()
				rows = append(rows, got...)
				mu.Unlock()
			}
		}()
	}

	for _, jobNumber := range jobNumbers {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return rows, ctx.Err()
		case jobs <- jobNumber:
		}
	}
	close(jobs)
	wg.Wait()

	return rows, nil
}

// params builds the base call parameter set, dropping empty optional entries
// that the transport fills back in as empty strings.
func (f *Fetcher) params(extra map[string]string) map[string]string {
	out := map[string]string{FieldCompanyCode: f.Company}
	for k, v := range extra {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
