package models

import (
	"time"
)

// ProjectStatus is the application-side lifecycle state derived from the vendor
// status code.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectInactive  ProjectStatus = "INACTIVE"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectPending   ProjectStatus = "PENDING"
)

// ProjectStatusFromCode maps a vendor status code onto a ProjectStatus.
// Unknown or blank codes map to PENDING.
func ProjectStatusFromCode(code string) ProjectStatus {
	switch code {
	case "A":
		return ProjectActive
	case "I":
		return ProjectInactive
	case "C":
		return ProjectCompleted
	default:
		return ProjectPending
	}
}

// Branch is a company division. Unknown division codes are auto-provisioned
// during projection.
type Branch struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	DivisionCode string `gorm:"size:10;uniqueIndex"`
	Name         string `gorm:"size:100;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name for Branch
func (Branch) TableName() string {
	return "branches"
}

// User is the minimal slice of the application user table the projection needs
// for project-manager resolution.
type User struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	FirstName string `gorm:"size:100;not null"`
	LastName  string `gorm:"size:100;not null"`
	Email     string `gorm:"size:255;uniqueIndex"`
	Role      string `gorm:"size:50;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// RoleProjectManager is the user role the fuzzy matcher searches.
const RoleProjectManager = "project_manager"

// Project is the application-owned projection of an ExternalJob. It carries
// denormalized copies of the vendor fields the rest of the application reads.
type Project struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	JobNumber   string `gorm:"size:20;uniqueIndex"`
	CompanyCode string `gorm:"size:10"`
	Name        string `gorm:"size:255"`
	Status      ProjectStatus `gorm:"size:20;index"`

	BranchID *uint64
	Branch   *Branch

	// Resolved manager, when the fuzzy match succeeds. The raw vendor string is
	// always retained for display when it does not.
	ProjectManagerID   *uint64
	ProjectManager     *User
	ProjectManagerName string `gorm:"size:100"`

	ContractAmount float64
	TotalBilled    float64
	CostToDate     float64

	// Recomputed from the full current phase row set each sync
	PhaseJTDDollars       float64
	PhaseProjectedDollars float64
	PhaseEstimatedDollars float64
	CostTypes             string `gorm:"size:255"` // distinct cost types, display string

	EstimatedStartDate    *time.Time
	EstimatedCompleteDate *time.Time
	ActualStartDate       *time.Time
	ProjectedCompleteDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for Project
func (Project) TableName() string {
	return "projects"
}
