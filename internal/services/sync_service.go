package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sitewerks/spectrum-sync/internal/config"
	"github.com/sitewerks/spectrum-sync/internal/models"
	"github.com/sitewerks/spectrum-sync/internal/spectrum"
	"gorm.io/gorm"
)

// ErrSyncInFlight is returned when a run is requested while another is active.
var ErrSyncInFlight = fmt.Errorf("a sync run is already in progress")

// ResourceStats is one resource type's outcome within a run. A failed step
// keeps whatever counts it reached before the failure; nothing is hidden.
type ResourceStats struct {
	Fetched  int    `json:"fetched"`
	Upserted int64  `json:"upserted"`
	Error    string `json:"error,omitempty"`
}

// SyncStats maps resource name to its outcome.
type SyncStats map[string]*ResourceStats

// SyncOptions scopes one run. Zero values fall back to configuration.
type SyncOptions struct {
	Trigger   models.SyncTrigger
	Company   string
	Divisions []string
	Statuses  []string
	JobNumber string // narrow-scope manual override
	CostType  string // narrow-scope manual override
	PageCap   int    // per-run override of the vendor row cap; 0 uses configuration
}

// SyncService orchestrates a full sync: fan-out fetch, upsert per resource
// type, projection, and the run ledger bookkeeping around it all.
type SyncService struct {
	DB     *gorm.DB
	Client spectrum.Caller
	Cfg    *config.Config
	Log    *logrus.Logger

	inFlight atomic.Bool
}

// Run executes one sync synchronously. Used by the scheduler; a run already in
// flight is skipped with ErrSyncInFlight rather than queued.
func (s *SyncService) Run(ctx context.Context, opts SyncOptions) (*models.SyncRun, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSyncInFlight
	}
	defer s.inFlight.Store(false)

	run, resolved, err := s.createRun(opts)
	if err != nil {
		return nil, err
	}
	return run, s.execute(ctx, run, resolved)
}

// Start begins a sync in the background and returns the RUNNING ledger row
// immediately. Used by the HTTP trigger; callers poll the ledger for the
// outcome.
func (s *SyncService) Start(opts SyncOptions) (*models.SyncRun, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSyncInFlight
	}

	run, resolved, err := s.createRun(opts)
	if err != nil {
		s.inFlight.Store(false)
		return nil, err
	}

	go func() {
		defer s.inFlight.Store(false)
		if err := s.execute(context.Background(), run, resolved); err != nil {
			s.Log.Errorf("background sync run %s failed: %v", run.ExternalID, err)
		}
	}()

	return run, nil
}

// createRun resolves option defaults and writes the RUNNING ledger row before
// any fetch begins.
func (s *SyncService) createRun(opts SyncOptions) (*models.SyncRun, SyncOptions, error) {
	if opts.Company == "" {
		opts.Company = s.Cfg.SpectrumCompany
	}
	if len(opts.Divisions) == 0 {
		opts.Divisions = s.Cfg.SpectrumDivisions
	}
	if len(opts.Statuses) == 0 {
		opts.Statuses = s.Cfg.SpectrumStatusCodes
	}
	if opts.Trigger == "" {
		opts.Trigger = models.TriggerManual
	}

	run := &models.SyncRun{
		ExternalID:   uuid.NewString(),
		Trigger:      opts.Trigger,
		CompanyCode:  opts.Company,
		Divisions:    strings.Join(opts.Divisions, ","),
		StatusFilter: strings.Join(spectrum.NormalizeStatuses(opts.Statuses), ","),
		JobNumber:    opts.JobNumber,
		CostType:     opts.CostType,
		Status:       models.SyncRunning,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.DB.Create(run).Error; err != nil {
		return nil, opts, fmt.Errorf("failed to create sync run: %w", err)
	}
	return run, opts, nil
}

// execute runs the sync steps against an already-created RUNNING ledger row
// and applies the single terminal transition when done.
//
// Step failures are isolated: a transport or vendor failure in one resource
// type records against that step and later steps still run; any step error
// makes the run FAILED with the aggregated error text. Parse/shape failures
// surface as zero-row fetches, not step errors. There is no automatic retry;
// re-invoking starts a new run.
func (s *SyncService) execute(ctx context.Context, run *models.SyncRun, opts SyncOptions) (err error) {
	stats := make(SyncStats)

	// Any panic below still produces a structured FAILED ledger row before
	// the error reaches the invoker.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync run panicked: %v", r)
		}
		s.finalize(run, stats, err)
	}()

	pageCap := s.Cfg.SpectrumPageCap
	if opts.PageCap > 0 {
		pageCap = opts.PageCap
	}
	fetcher := &spectrum.Fetcher{
		Client:         s.Client,
		Log:            s.Log,
		Company:        opts.Company,
		Divisions:      opts.Divisions,
		Denylist:       s.Cfg.SpectrumDenylist,
		PageCap:        pageCap,
		ContactWorkers: s.Cfg.ContactWorkers,
	}
	if s.Cfg.RawPayloadEnabled {
		fetcher.Capture = s.captureFunc(run.ID)
	}

	syncedAt := time.Now().UTC()
	var stepErrs []string
	step := func(name string, fn func(st *ResourceStats) error) {
		st := &ResourceStats{}
		stats[name] = st
		if stepErr := fn(st); stepErr != nil {
			st.Error = stepErr.Error()
			stepErrs = append(stepErrs, fmt.Sprintf("%s: %v", name, stepErr))
			s.Log.WithField("resource", name).Errorf("sync step failed: %v", stepErr)
		}
	}

	base := spectrum.FetchOptions{
		Statuses:  opts.Statuses,
		JobNumber: opts.JobNumber,
	}

	// Jobs: the GetJob listing overlaid with GetJobMain detail, upserted as
	// one resource. Job-main is high volume, so its fetch carries the
	// cost-center cap recovery.
	var jobs []models.ExternalJob
	step("jobs", func(st *ResourceStats) error {
		jobRows, err := fetcher.FetchAll(ctx, spectrum.OpGetJob, base)
		if err != nil {
			return err
		}
		st.Fetched = len(jobRows)

		mainOpts := base
		mainOpts.SplitOnCap = true
		mainRows, err := fetcher.FetchAll(ctx, spectrum.OpGetJobMain, mainOpts)
		if err != nil {
			s.Log.Warnf("job-main fetch failed, listing fields only: %v", err)
		}
		mainByKey := make(map[string]spectrum.Row, len(mainRows))
		for _, row := range mainRows {
			mainByKey[row[spectrum.FieldCompanyCode]+"|"+row[spectrum.FieldJobNumber]] = row
		}
		stats["job_main"] = &ResourceStats{Fetched: len(mainRows)}

		jobs = make([]models.ExternalJob, 0, len(jobRows))
		for _, row := range jobRows {
			job := JobFromRow(s.Log, row, syncedAt)
			if main, ok := mainByKey[job.CompanyCode+"|"+job.JobNumber]; ok {
				MergeJobMain(s.Log, &job, main)
			}
			jobs = append(jobs, job)
		}

		upserted, err := BulkUpsert(s.DB, jobs, []string{"company_code", "job_number"}, DefaultBatchSize)
		st.Upserted = upserted
		return err
	})

	step("dates", func(st *ResourceStats) error {
		rows, err := fetcher.FetchAll(ctx, spectrum.OpGetJobDates, base)
		if err != nil {
			return err
		}
		st.Fetched = len(rows)
		dates := make([]models.ExternalJobDates, 0, len(rows))
		for _, row := range rows {
			dates = append(dates, DatesFromRow(s.Log, row, syncedAt))
		}
		upserted, err := BulkUpsert(s.DB, dates, []string{"company_code", "job_number"}, DefaultBatchSize)
		st.Upserted = upserted
		return err
	})

	step("udf", func(st *ResourceStats) error {
		rows, err := fetcher.FetchAll(ctx, spectrum.OpGetJobUDF, base)
		if err != nil {
			return err
		}
		st.Fetched = len(rows)
		udfs := make([]models.ExternalJobUDF, 0, len(rows))
		for _, row := range rows {
			udfs = append(udfs, UDFFromRow(row, syncedAt))
		}
		upserted, err := BulkUpsert(s.DB, udfs, []string{"company_code", "job_number"}, DefaultBatchSize)
		st.Upserted = upserted
		return err
	})

	step("phases", func(st *ResourceStats) error {
		phaseOpts := base
		phaseOpts.CostType = opts.CostType
		rows, err := fetcher.FetchPhases(ctx, phaseOpts)
		if err != nil {
			return err
		}
		st.Fetched = len(rows)
		phases := make([]models.ExternalJobPhaseAggregate, 0, len(rows))
		for _, row := range rows {
			phases = append(phases, PhaseFromRow(s.Log, row, syncedAt))
		}
		upserted, err := BulkUpsert(s.DB, phases,
			[]string{"company_code", "job_number", "phase_code", "cost_type"}, DefaultBatchSize)
		st.Upserted = upserted
		return err
	})

	step("contacts", func(st *ResourceStats) error {
		jobNumbers := make([]string, 0, len(jobs))
		for _, job := range jobs {
			jobNumbers = append(jobNumbers, job.JobNumber)
		}
		rows, err := fetcher.FetchContacts(ctx, jobNumbers)
		if err != nil {
			return err
		}
		st.Fetched = len(rows)
		contacts := make([]models.ExternalJobContact, 0, len(rows))
		for _, row := range rows {
			if row["Contact_ID"] == "" {
				continue
			}
			contacts = append(contacts, ContactFromRow(row, syncedAt))
		}
		upserted, err := BulkUpsert(s.DB, dedupeContacts(contacts),
			[]string{"company_code", "job_number", "contact_id"}, DefaultBatchSize)
		st.Upserted = upserted
		return err
	})

	// Projection depends on the job upsert; the date and aggregate passes
	// depend on the respective upserts above.
	step("projection", func(st *ResourceStats) error {
		pstats, err := ProjectFromJobs(s.DB, s.Log, s.Cfg.FallbackBranch, jobs)
		st.Upserted = int64(pstats.Created + pstats.Updated)
		if err != nil {
			return err
		}
		s.Log.WithFields(logrus.Fields{
			"created":      pstats.Created,
			"updated":      pstats.Updated,
			"pm_matched":   pstats.Matched,
			"pm_ambiguous": pstats.Ambiguous,
			"pm_unmatched": pstats.Unmatched,
		}).Info("project projection complete")

		if err := ApplyJobDates(s.DB, opts.Company); err != nil {
			return err
		}
		return RecomputeProjectAggregates(s.DB, opts.Company)
	})

	if s.Cfg.RawPayloadEnabled {
		if purgeErr := s.PurgeRawPayloads(); purgeErr != nil {
			s.Log.Warnf("raw payload purge failed: %v", purgeErr)
		}
	}

	if len(stepErrs) > 0 {
		err = fmt.Errorf("sync completed with failed steps: %s", strings.Join(stepErrs, "; "))
	}
	return err
}

// dedupeContacts removes repeated (company, job, contact) keys before the
// bulk upsert; duplicate keys inside one INSERT make ON CONFLICT fail on the
// postgres dialect. Last occurrence wins, matching the fetch-side merge.
func dedupeContacts(contacts []models.ExternalJobContact) []models.ExternalJobContact {
	index := make(map[string]int, len(contacts))
	out := make([]models.ExternalJobContact, 0, len(contacts))
	for _, contact := range contacts {
		key := strings.Join([]string{contact.CompanyCode, contact.JobNumber, contact.ContactID}, "|")
		if i, ok := index[key]; ok {
			out[i] = contact
			continue
		}
		index[key] = len(out)
		out = append(out, contact)
	}
	return out
}

// finalize applies the single terminal ledger transition.
func (s *SyncService) finalize(run *models.SyncRun, stats SyncStats, runErr error) {
	finished := time.Now().UTC()
	duration := finished.Sub(run.StartedAt).Seconds()

	statsJSON, marshalErr := json.Marshal(stats)
	if marshalErr != nil {
		s.Log.Errorf("failed to marshal sync stats: %v", marshalErr)
		statsJSON = []byte("{}")
	}

	run.Status = models.SyncSuccess
	if runErr != nil {
		run.Status = models.SyncFailed
		run.ErrorMessage = runErr.Error()
	}
	run.Stats = statsJSON
	run.FinishedAt = &finished
	run.DurationSeconds = &duration

	if err := s.DB.Model(run).
		Where("status = ?", models.SyncRunning).
		Updates(map[string]any{
			"status":           run.Status,
			"stats":            run.Stats,
			"error_message":    run.ErrorMessage,
			"finished_at":      run.FinishedAt,
			"duration_seconds": run.DurationSeconds,
		}).Error; err != nil {
		s.Log.Errorf("failed to finalize sync run %d: %v", run.ID, err)
	}

	s.Log.WithFields(logrus.Fields{
		"run":      run.ExternalID,
		"status":   run.Status,
		"duration": fmt.Sprintf("%.1fs", duration),
	}).Info("sync run finished")
}

// captureFunc stores one gzip-compressed raw response per vendor call against
// the owning run.
func (s *SyncService) captureFunc(runID uint64) spectrum.CaptureFunc {
	return func(operation string, params map[string]string, raw []byte) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			s.Log.Warnf("raw payload compress failed: %v", err)
			return
		}
		if err := zw.Close(); err != nil {
			s.Log.Warnf("raw payload compress failed: %v", err)
			return
		}

		record := models.RawPayloadRecord{
			SyncRunID: runID,
			Operation: operation,
			Params:    truncate(paramsDigest(params), 255),
			Payload:   buf.Bytes(),
		}
		if err := s.DB.Create(&record).Error; err != nil {
			s.Log.Warnf("raw payload store failed: %v", err)
		}
	}
}

func paramsDigest(params map[string]string) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		if k == "Authorization_ID" || k == "GUID" {
			continue
		}
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// PurgeRawPayloads deletes captured payloads past the retention window.
func (s *SyncService) PurgeRawPayloads() error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.Cfg.RawPayloadRetentionDays)
	result := s.DB.Where("created_at < ?", cutoff).Delete(&models.RawPayloadRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.Log.Infof("purged %d raw payload record(s) older than %s", result.RowsAffected, cutoff.Format(time.RFC3339))
	}
	return nil
}

// RecentRuns lists the most recent sync runs for the ledger endpoint.
func RecentRuns(db *gorm.DB, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []models.SyncRun
	err := db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetRun fetches one sync run by its external id.
func GetRun(db *gorm.DB, externalID string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := db.Where("external_id = ?", externalID).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
