// Package domain holds the entities, enumerations, and job-detail shapes
// shared by the storage layer, the pipelines, and the HTTP boundary. It
// has no external dependencies and no behavior of its own: it is the
// vocabulary the rest of the module is written against.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectCycle groups one import's worth of volunteers, mentors, and
// nonprofits. It is created once per import and referenced by every
// other entity below.
type ProjectCycle struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	Name        string
	Description *string
	Archived    bool
}

// Volunteer is a single committed student volunteer in a cycle.
type Volunteer struct {
	ID         uuid.UUID
	CycleID    uuid.UUID
	FirstName  string
	LastName   string
	Email      string
	Phone      *string
	Gender     Gender
	Ethnicity  []Ethnicity
	AgeRange   AgeRange
	University []string
	LgbtStatus Lgbt
	Country    string
	USState    *string
	Fli        []Fli
	Stage      StudentStage
	Majors     []string
	Minors     []string
	HearAbout  []HearAbout
}

// Mentor is a single committed mentor volunteer in a cycle.
type Mentor struct {
	ID               uuid.UUID
	CycleID          uuid.UUID
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Company          string
	JobTitle         string
	Country          string
	USState          *string
	YearsExperience  MentorYearsExperience
	ExperienceLevel  MentorExperienceLevel
	PriorMentor      bool
	PriorMentee      bool
	PriorStudent     bool
	University       []string
	HearAbout        []HearAbout
}

// Nonprofit is a client organization hosting volunteer projects in a cycle.
type Nonprofit struct {
	ID                  uuid.UUID
	CycleID             uuid.UUID
	RepFirstName        string
	RepLastName         string
	RepTitle            string
	Email               string
	EmailCC             *string
	Phone               string
	OrgName             string
	ProjectName         string
	OrgWebsite          *string
	CountryHQ           *string
	USStateHQ           *string
	Address             string
	Size                ClientSize
	ImpactCauses        []ImpactCause
}

// VolunteerNonprofitLink associates a volunteer with a nonprofit project.
type VolunteerNonprofitLink struct {
	CycleID     uuid.UUID
	VolunteerID uuid.UUID
	NonprofitID uuid.UUID
}

// MentorNonprofitLink associates a mentor with a nonprofit project. It is
// only created for mentors whose raw project role includes "Team Mentor".
type MentorNonprofitLink struct {
	CycleID     uuid.UUID
	MentorID    uuid.UUID
	NonprofitID uuid.UUID
}

// VolunteerMentorLink records a mentor-mentee pairing.
type VolunteerMentorLink struct {
	CycleID     uuid.UUID
	MentorID    uuid.UUID
	VolunteerID uuid.UUID
}

// JobDetails is the jsonb-shaped payload attached to a Job row. Data holds
// exactly one of ImportBaseData, ExportUsersData, or UndoExportData,
// selected by Type.
type JobDetails struct {
	Type  JobType
	Error *string
	Data  JobData
}

// JobData is implemented by ImportBaseData, ExportUsersData, and
// UndoExportData. It exists only to give JobDetails.Data a narrow type
// instead of `any`.
type JobData interface {
	jobData()
}

// ImportBaseData is the payload of an import job.
type ImportBaseData struct {
	BaseID string `json:"baseId"`
}

func (ImportBaseData) jobData() {}

// ExportUsersData is the payload of an export job. Destination is fixed to
// "google_workspace" for this deployment but is kept as an open string so a
// future directory provider can be selected without a schema change.
type ExportUsersData struct {
	Destination string `json:"destination"`
}

func (ExportUsersData) jobData() {}

// UndoExportedVolunteer identifies one account an undo job must attempt to
// delete at the directory.
type UndoExportedVolunteer struct {
	VolunteerID   uuid.UUID `json:"volunteerId"`
	WorkspaceEmail string   `json:"workspaceEmail"`
}

// UndoExportData is the payload of a compensating undo job.
type UndoExportData struct {
	Volunteers []UndoExportedVolunteer `json:"volunteers"`
}

func (UndoExportData) jobData() {}

// Job tracks the progress of one asynchronous pipeline run.
type Job struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	CycleID     *uuid.UUID
	Status      JobStatus
	Label       string
	Description *string
	Details     JobDetails
}

// ExportedVolunteerLedgerRow is the deduplication record of a successful
// workspace provisioning. It exists at most once per VolunteerID.
type ExportedVolunteerLedgerRow struct {
	VolunteerID   uuid.UUID
	JobID         uuid.UUID
	WorkspaceEmail string
	OrgUnit       string
}

// PantheonOrgUnit is the fixed directory org unit every exported volunteer
// is provisioned under.
const PantheonOrgUnit = "/Programs/PantheonUsers"
