package models

import (
	"time"
)

// ExternalJob mirrors a Spectrum job record. Rows are replaced wholesale on each
// sync, keyed by (company_code, job_number).
type ExternalJob struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	CompanyCode string `gorm:"size:10;not null;uniqueIndex:uidx_job,priority:1"`
	JobNumber   string `gorm:"size:20;not null;uniqueIndex:uidx_job,priority:2"`

	Description    string `gorm:"size:255"`
	Division       string `gorm:"size:10;index"`
	Address1       string `gorm:"size:255"`
	Address2       string `gorm:"size:255"`
	City           string `gorm:"size:100"`
	State          string `gorm:"size:10"`
	ZipCode        string `gorm:"size:20"`
	ProjectManager string `gorm:"size:100"` // free-text name from the vendor, not a FK
	Superintendent string `gorm:"size:100"`
	Estimator      string `gorm:"size:100"`
	CustomerCode   string `gorm:"size:20"`
	StatusCode     string `gorm:"size:1;index"` // A=active, I=inactive, C=complete
	ContractNumber string `gorm:"size:30"`

	ContractAmount   float64
	OriginalContract float64
	TotalBilled      float64
	CostToDate       float64
	ProjectedCost    float64
	EstimatedCost    float64

	FirstSyncedAt time.Time `gorm:"autoCreateTime"`
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name for ExternalJob
func (ExternalJob) TableName() string {
	return "external_jobs"
}

// ExternalJobDates holds the schedule dates for a job, keyed by
// (company_code, job_number).
type ExternalJobDates struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	CompanyCode string `gorm:"size:10;not null;uniqueIndex:uidx_job_dates,priority:1"`
	JobNumber   string `gorm:"size:20;not null;uniqueIndex:uidx_job_dates,priority:2"`

	EstimatedStartDate    *time.Time
	EstimatedCompleteDate *time.Time
	ActualStartDate       *time.Time
	ActualCompleteDate    *time.Time
	ProjectedCompleteDate *time.Time

	FirstSyncedAt time.Time `gorm:"autoCreateTime"`
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name for ExternalJobDates
func (ExternalJobDates) TableName() string {
	return "external_job_dates"
}

// ExternalJobPhaseAggregate is one phase cost line for a job, keyed by
// (company_code, job_number, phase_code, cost_type). Many rows per job.
type ExternalJobPhaseAggregate struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	CompanyCode string `gorm:"size:10;not null;uniqueIndex:uidx_job_phase,priority:1"`
	JobNumber   string `gorm:"size:20;not null;uniqueIndex:uidx_job_phase,priority:2;index:idx_phase_job"`
	PhaseCode   string `gorm:"size:30;not null;uniqueIndex:uidx_job_phase,priority:3"`
	CostType    string `gorm:"size:10;not null;uniqueIndex:uidx_job_phase,priority:4"`

	Description   string `gorm:"size:255"`
	CostCenter    string `gorm:"size:20"`
	UnitOfMeasure string `gorm:"size:10"`

	JTDQuantity        float64
	JTDHours           float64
	JTDDollars         float64
	ProjectedQuantity  float64
	ProjectedHours     float64
	ProjectedDollars   float64
	EstimatedQuantity  float64
	EstimatedHours     float64
	EstimatedDollars   float64

	FirstSyncedAt time.Time `gorm:"autoCreateTime"`
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name for ExternalJobPhaseAggregate
func (ExternalJobPhaseAggregate) TableName() string {
	return "external_job_phase_aggregates"
}

// ExternalJobUDF carries the vendor's 20 generic user-defined text fields, keyed
// by (company_code, job_number).
type ExternalJobUDF struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	CompanyCode string `gorm:"size:10;not null;uniqueIndex:uidx_job_udf,priority:1"`
	JobNumber   string `gorm:"size:20;not null;uniqueIndex:uidx_job_udf,priority:2"`

	UDF1  string `gorm:"size:255"`
	UDF2  string `gorm:"size:255"`
	UDF3  string `gorm:"size:255"`
	UDF4  string `gorm:"size:255"`
	UDF5  string `gorm:"size:255"`
	UDF6  string `gorm:"size:255"`
	UDF7  string `gorm:"size:255"`
	UDF8  string `gorm:"size:255"`
	UDF9  string `gorm:"size:255"`
	UDF10 string `gorm:"size:255"`
	UDF11 string `gorm:"size:255"`
	UDF12 string `gorm:"size:255"`
	UDF13 string `gorm:"size:255"`
	UDF14 string `gorm:"size:255"`
	UDF15 string `gorm:"size:255"`
	UDF16 string `gorm:"size:255"`
	UDF17 string `gorm:"size:255"`
	UDF18 string `gorm:"size:255"`
	UDF19 string `gorm:"size:255"`
	UDF20 string `gorm:"size:255"`

	FirstSyncedAt time.Time `gorm:"autoCreateTime"`
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name for ExternalJobUDF
func (ExternalJobUDF) TableName() string {
	return "external_job_udfs"
}

// ExternalJobContact is one contact person attached to a job, keyed by
// (company_code, job_number, contact_id).
type ExternalJobContact struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	CompanyCode string `gorm:"size:10;not null;uniqueIndex:uidx_job_contact,priority:1"`
	JobNumber   string `gorm:"size:20;not null;uniqueIndex:uidx_job_contact,priority:2"`
	ContactID   string `gorm:"size:30;not null;uniqueIndex:uidx_job_contact,priority:3"`

	Name     string `gorm:"size:100"`
	Role     string `gorm:"size:50"`
	Address1 string `gorm:"size:255"`
	Address2 string `gorm:"size:255"`
	City     string `gorm:"size:100"`
	State    string `gorm:"size:10"`
	ZipCode  string `gorm:"size:20"`
	Phone    string `gorm:"size:30"`
	Email    string `gorm:"size:255"`

	FirstSyncedAt time.Time `gorm:"autoCreateTime"`
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name for ExternalJobContact
func (ExternalJobContact) TableName() string {
	return "external_job_contacts"
}
