package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/internal/exportpipeline"
	"github.com/developforgood/cycle-orchestrator/pkg/policy"
)

// importRequest is the body of POST /imports/{base_id}.
type importRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// volunteerDetailsRequest is one entry of exportRequest.Volunteers.
type volunteerDetailsRequest struct {
	VolunteerID uuid.UUID `json:"volunteerId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
}

// exportRequest is the body of POST /exports/{cycle_id}, matching
// spec.md §6's ExportRequest shape. The directory principal is a
// deployment-level credential, not caller input, so it travels through
// server configuration instead of this body.
type exportRequest struct {
	AddUniqueNumericSuffix    bool                      `json:"addUniqueNumericSuffix"`
	ChangePasswordAtNextLogin bool                      `json:"changePasswordAtNextLogin"`
	GeneratedPasswordLength   int                       `json:"generatedPasswordLength"`
	Separator                 *string                   `json:"separator,omitempty"`
	SkipUsersOnConflict       bool                      `json:"skipUsersOnConflict"`
	UseFirstAndLastName       bool                      `json:"useFirstAndLastName"`
	Volunteers                []volunteerDetailsRequest `json:"volunteers"`
}

func (r exportRequest) emailConfig(domain string) policy.EmailConfig {
	cfg := policy.EmailConfig{
		UseFirstAndLastName:    r.UseFirstAndLastName,
		AddUniqueNumericSuffix: r.AddUniqueNumericSuffix,
		Domain:                 domain,
	}
	if r.Separator != nil {
		cfg.Separator = *r.Separator
	}
	return cfg
}

func (r exportRequest) volunteerDetails() []exportpipeline.VolunteerDetails {
	out := make([]exportpipeline.VolunteerDetails, len(r.Volunteers))
	for i, v := range r.Volunteers {
		out[i] = exportpipeline.VolunteerDetails{
			VolunteerID: v.VolunteerID,
			FirstName:   v.FirstName,
			LastName:    v.LastName,
			Email:       v.Email,
		}
	}
	return out
}

// jobEditRequest is the body of PATCH /jobs/{id}.
type jobEditRequest struct {
	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
}

// jobResponse is the camelCase JSON projection of domain.Job returned by
// GET /jobs, GET /jobs/{id}, and every endpoint that creates a job.
type jobResponse struct {
	ID          uuid.UUID  `json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	CycleID     *uuid.UUID `json:"cycleId,omitempty"`
	Status      string     `json:"status"`
	Label       string     `json:"label"`
	Description *string    `json:"description,omitempty"`
	Details     jobDetailsResponse `json:"details"`
}

type jobDetailsResponse struct {
	JobType string `json:"jobType"`
	Error   *string `json:"error,omitempty"`
	Data    any     `json:"data,omitempty"`
}

func toJobResponse(j domain.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		CycleID:     j.CycleID,
		Status:      string(j.Status),
		Label:       j.Label,
		Description: j.Description,
		Details: jobDetailsResponse{
			JobType: string(j.Details.Type),
			Error:   j.Details.Error,
			Data:    j.Details.Data,
		},
	}
}

type jobIDResponse struct {
	JobID uuid.UUID `json:"jobId"`
}

type errorResponse struct {
	Error string `json:"error"`
}
