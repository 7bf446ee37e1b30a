package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sitewerks/spectrum-sync/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// ProjectionStats summarizes one projection pass.
type ProjectionStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Matched   int `json:"pm_matched"`
	Ambiguous int `json:"pm_ambiguous"`
	Unmatched int `json:"pm_unmatched"`
}

// ProjectFromJobs derives or updates one Project per external job: branch
// auto-provisioning by division code, deterministic status mapping, and the
// fuzzy project-manager resolution. Runs after the job upsert it depends on.
func ProjectFromJobs(db *gorm.DB, log *logrus.Logger, fallbackBranch string, jobs []models.ExternalJob) (ProjectionStats, error) {
	var stats ProjectionStats

	var managers []models.User
	if err := db.Where("role = ?", models.RoleProjectManager).Find(&managers).Error; err != nil {
		return stats, fmt.Errorf("failed to load project managers: %w", err)
	}

	branchCache := make(map[string]uint64)

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, job := range jobs {
			branchID, err := resolveBranch(tx, branchCache, job.Division, fallbackBranch)
			if err != nil {
				return err
			}

			match := MatchProjectManager(managers, job.ProjectManager)
			switch match.Outcome {
			case MatchFound:
				stats.Matched++
			case MatchAmbiguous:
				stats.Ambiguous++
				log.WithFields(logrus.Fields{
					"job_number": job.JobNumber,
					"pm_name":    job.ProjectManager,
				}).Warn("ambiguous project manager name, leaving unset")
			default:
				if job.ProjectManager != "" {
					stats.Unmatched++
				}
			}

			var project models.Project
			err = tx.Where("job_number = ?", job.JobNumber).First(&project).Error
			created := false
			if err == gorm.ErrRecordNotFound {
				project = models.Project{JobNumber: job.JobNumber}
				created = true
			} else if err != nil {
				return err
			}

			project.CompanyCode = job.CompanyCode
			project.Name = job.Description
			project.Status = models.ProjectStatusFromCode(job.StatusCode)
			project.BranchID = branchID
			project.ProjectManagerName = job.ProjectManager
			if match.Outcome == MatchFound {
				id := match.User.ID
				project.ProjectManagerID = &id
			} else {
				project.ProjectManagerID = nil
			}
			project.ContractAmount = job.ContractAmount
			project.TotalBilled = job.TotalBilled
			project.CostToDate = job.CostToDate

			if err := tx.Save(&project).Error; err != nil {
				return err
			}
			if created {
				stats.Created++
			} else {
				stats.Updated++
			}
		}
		return nil
	})

	return stats, err
}

// resolveBranch finds or creates the Branch for a division code, auto-naming
// unseen codes. A blank code resolves to the designated fallback branch.
func resolveBranch(tx *gorm.DB, cache map[string]uint64, divisionCode, fallbackBranch string) (*uint64, error) {
	if id, ok := cache[divisionCode]; ok {
		return &id, nil
	}

	var branch models.Branch
	if divisionCode == "" {
		err := tx.Where("name = ?", fallbackBranch).
			FirstOrCreate(&branch, models.Branch{Name: fallbackBranch}).Error
		if err != nil {
			return nil, err
		}
	} else {
		err := tx.Where("division_code = ?", divisionCode).
			FirstOrCreate(&branch, models.Branch{
				DivisionCode: divisionCode,
				Name:         "Division " + divisionCode,
			}).Error
		if err != nil {
			return nil, err
		}
	}

	cache[divisionCode] = branch.ID
	return &branch.ID, nil
}

// ApplyJobDates copies the synced schedule dates onto each matching Project.
// Runs after the dates upsert.
func ApplyJobDates(db *gorm.DB, companyCode string) error {
	var dates []models.ExternalJobDates
	if err := db.Where("company_code = ?", companyCode).Find(&dates).Error; err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, d := range dates {
			err := tx.Model(&models.Project{}).
				Where("job_number = ?", d.JobNumber).
				Updates(map[string]any{
					"estimated_start_date":    d.EstimatedStartDate,
					"estimated_complete_date": d.EstimatedCompleteDate,
					"actual_start_date":       d.ActualStartDate,
					"projected_complete_date": d.ProjectedCompleteDate,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// phaseTotals accumulates one job's phase lines.
type phaseTotals struct {
	jtd       float64
	projected float64
	estimated float64
	costTypes map[string]bool
}

// RecomputeProjectAggregates recomputes every Project's denormalized phase
// totals from the full current phase row set. Always a full recomputation,
// never an incremental delta, to avoid drift.
func RecomputeProjectAggregates(db *gorm.DB, companyCode string) error {
	query := db.Model(&models.ExternalJobPhaseAggregate{}).
		Where("company_code = ?", companyCode)
	if db.Dialector.Name() == "mysql" {
		query = query.Clauses(hints.New("MAX_EXECUTION_TIME(30000)"))
	}

	var rows []models.ExternalJobPhaseAggregate
	if err := query.Select("job_number", "cost_type", "jtd_dollars", "projected_dollars", "estimated_dollars").
		Find(&rows).Error; err != nil {
		return err
	}

	totals := make(map[string]*phaseTotals)
	for _, row := range rows {
		t, ok := totals[row.JobNumber]
		if !ok {
			t = &phaseTotals{costTypes: make(map[string]bool)}
			totals[row.JobNumber] = t
		}
		t.jtd += row.JTDDollars
		t.projected += row.ProjectedDollars
		t.estimated += row.EstimatedDollars
		if row.CostType != "" {
			t.costTypes[row.CostType] = true
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for jobNumber, t := range totals {
			types := make([]string, 0, len(t.costTypes))
			for ct := range t.costTypes {
				types = append(types, ct)
			}
			sort.Strings(types)

			err := tx.Model(&models.Project{}).
				Where("job_number = ?", jobNumber).
				Updates(map[string]any{
					"phase_jtd_dollars":       t.jtd,
					"phase_projected_dollars": t.projected,
					"phase_estimated_dollars": t.estimated,
					"cost_types":              strings.Join(types, ", "),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
