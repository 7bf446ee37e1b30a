package services

import (
	"testing"
	"time"

	"github.com/sitewerks/spectrum-sync/internal/models"
)

func TestProjectStatusMapping(t *testing.T) {
	cases := map[string]models.ProjectStatus{
		"A":  models.ProjectActive,
		"I":  models.ProjectInactive,
		"C":  models.ProjectCompleted,
		"":   models.ProjectPending,
		"Z":  models.ProjectPending,
		"AA": models.ProjectPending,
	}
	for code, want := range cases {
		if got := models.ProjectStatusFromCode(code); got != want {
			t.Errorf("ProjectStatusFromCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestProjectFromJobsCreatesAndProvisionsBranches(t *testing.T) {
	db := setupTestDB(t)
	log := silentLogger()

	db.Create(&models.User{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Role: models.RoleProjectManager})

	jobs := []models.ExternalJob{
		{CompanyCode: "FTL", JobNumber: "21-100", Description: "North Tower", Division: "100", StatusCode: "A", ProjectManager: "Doe, Jane", ContractAmount: 1000},
		{CompanyCode: "FTL", JobNumber: "21-101", Description: "Parking Deck", Division: "100", StatusCode: "C", ProjectManager: "Nobody Known"},
		{CompanyCode: "FTL", JobNumber: "21-102", Description: "Warehouse", Division: "", StatusCode: ""},
	}

	stats, err := ProjectFromJobs(db, log, "Unassigned", jobs)
	if err != nil {
		t.Fatalf("ProjectFromJobs failed: %v", err)
	}
	if stats.Created != 3 || stats.Updated != 0 {
		t.Errorf("stats = %+v, want 3 created", stats)
	}
	if stats.Matched != 1 || stats.Unmatched != 1 {
		t.Errorf("pm stats = %+v", stats)
	}

	// Division 100 auto-provisioned once, blank division on the fallback
	var branches []models.Branch
	db.Order("id").Find(&branches)
	if len(branches) != 2 {
		t.Fatalf("expected 2 branches, got %d: %+v", len(branches), branches)
	}
	if branches[0].DivisionCode != "100" || branches[0].Name != "Division 100" {
		t.Errorf("auto-provisioned branch wrong: %+v", branches[0])
	}
	if branches[1].Name != "Unassigned" {
		t.Errorf("fallback branch wrong: %+v", branches[1])
	}

	var matched models.Project
	db.Where("job_number = ?", "21-100").First(&matched)
	if matched.Status != models.ProjectActive {
		t.Errorf("status = %v", matched.Status)
	}
	if matched.ProjectManagerID == nil {
		t.Error("matched manager not linked")
	}
	if matched.ProjectManagerName != "Doe, Jane" {
		t.Errorf("raw manager name lost: %q", matched.ProjectManagerName)
	}
	if matched.ContractAmount != 1000 {
		t.Errorf("financials not copied: %v", matched.ContractAmount)
	}

	var unmatched models.Project
	db.Where("job_number = ?", "21-101").First(&unmatched)
	if unmatched.ProjectManagerID != nil {
		t.Error("unmatched manager must stay unlinked")
	}
	if unmatched.ProjectManagerName != "Nobody Known" {
		t.Errorf("raw name must be retained for display: %q", unmatched.ProjectManagerName)
	}
	if unmatched.Status != models.ProjectCompleted {
		t.Errorf("status = %v", unmatched.Status)
	}

	var pending models.Project
	db.Where("job_number = ?", "21-102").First(&pending)
	if pending.Status != models.ProjectPending {
		t.Errorf("blank status code must project PENDING, got %v", pending.Status)
	}
}

func TestProjectFromJobsUpdatesExisting(t *testing.T) {
	db := setupTestDB(t)
	log := silentLogger()

	jobs := []models.ExternalJob{{CompanyCode: "FTL", JobNumber: "21-100", Description: "Old", Division: "100", StatusCode: "A"}}
	if _, err := ProjectFromJobs(db, log, "Unassigned", jobs); err != nil {
		t.Fatalf("seed projection failed: %v", err)
	}

	jobs[0].Description = "Renamed"
	jobs[0].StatusCode = "C"
	stats, err := ProjectFromJobs(db, log, "Unassigned", jobs)
	if err != nil {
		t.Fatalf("second projection failed: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 1 {
		t.Errorf("stats = %+v, want 1 updated", stats)
	}

	var count int64
	db.Model(&models.Project{}).Count(&count)
	if count != 1 {
		t.Fatalf("projection duplicated the project: %d", count)
	}

	var project models.Project
	db.Where("job_number = ?", "21-100").First(&project)
	if project.Name != "Renamed" || project.Status != models.ProjectCompleted {
		t.Errorf("project not updated: %+v", project)
	}
}

func TestApplyJobDates(t *testing.T) {
	db := setupTestDB(t)

	if _, err := ProjectFromJobs(db, silentLogger(), "Unassigned",
		[]models.ExternalJob{{CompanyCode: "FTL", JobNumber: "21-100", StatusCode: "A"}}); err != nil {
		t.Fatalf("projection failed: %v", err)
	}

	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	db.Create(&models.ExternalJobDates{
		CompanyCode:        "FTL",
		JobNumber:          "21-100",
		EstimatedStartDate: &start,
	})

	if err := ApplyJobDates(db, "FTL"); err != nil {
		t.Fatalf("ApplyJobDates failed: %v", err)
	}

	var project models.Project
	db.Where("job_number = ?", "21-100").First(&project)
	if project.EstimatedStartDate == nil || !project.EstimatedStartDate.Equal(start) {
		t.Errorf("date not applied: %v", project.EstimatedStartDate)
	}
}

func TestRecomputeProjectAggregates(t *testing.T) {
	db := setupTestDB(t)

	if _, err := ProjectFromJobs(db, silentLogger(), "Unassigned",
		[]models.ExternalJob{{CompanyCode: "FTL", JobNumber: "21-100", StatusCode: "A"}}); err != nil {
		t.Fatalf("projection failed: %v", err)
	}

	phases := []models.ExternalJobPhaseAggregate{
		{CompanyCode: "FTL", JobNumber: "21-100", PhaseCode: "0100", CostType: "L", JTDDollars: 100, ProjectedDollars: 150, EstimatedDollars: 120},
		{CompanyCode: "FTL", JobNumber: "21-100", PhaseCode: "0200", CostType: "M", JTDDollars: 50, ProjectedDollars: 60, EstimatedDollars: 55},
		{CompanyCode: "FTL", JobNumber: "21-100", PhaseCode: "0300", CostType: "L", JTDDollars: 25},
	}
	db.Create(&phases)

	if err := RecomputeProjectAggregates(db, "FTL"); err != nil {
		t.Fatalf("RecomputeProjectAggregates failed: %v", err)
	}

	var project models.Project
	db.Where("job_number = ?", "21-100").First(&project)
	if project.PhaseJTDDollars != 175 {
		t.Errorf("jtd = %v, want 175", project.PhaseJTDDollars)
	}
	if project.PhaseProjectedDollars != 210 {
		t.Errorf("projected = %v, want 210", project.PhaseProjectedDollars)
	}
	if project.PhaseEstimatedDollars != 175 {
		t.Errorf("estimated = %v, want 175", project.PhaseEstimatedDollars)
	}
	if project.CostTypes != "L, M" {
		t.Errorf("cost types = %q, want sorted distinct list", project.CostTypes)
	}
}
