// Package sourcegw defines the capability contract the import pipeline
// depends on to read a cohort's records from an external tabular SaaS
// source, along with the raw (pre-normalization) record shapes that
// contract returns. The concrete HTTP client lives in the airtablehttp
// subpackage, mirroring the split between this repository's gateway
// interfaces and their default provider implementations.
package sourcegw

import "context"

// Gateway is the capability the import pipeline requires from a tabular
// source. The default implementation talks HTTP to a SaaS provider and
// fully drains pagination before returning from any List method.
type Gateway interface {
	ValidateSchema(ctx context.Context, baseID string) (bool, error)
	ListVolunteers(ctx context.Context, baseID string) ([]VolunteerRaw, error)
	ListMentors(ctx context.Context, baseID string) ([]MentorRaw, error)
	ListNonprofits(ctx context.Context, baseID string) ([]NonprofitRaw, error)
	ListMentorMenteePairings(ctx context.Context, baseID string) ([]MentorMenteePairingRaw, error)
}

// VolunteerRaw is a volunteer record exactly as returned by the source,
// before the import pipeline's normalization step splits free-text fields
// and coerces enumerations.
type VolunteerRaw struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Gender     string
	Ethnicity  []string
	AgeRange   string
	University []string
	Lgbt       string
	Country    string
	USState    string
	Fli        []string
	Stage      string
	Majors     string
	Minors     string
	HearAbout  []string
	Nonprofits []string
}

// MentorRaw is a mentor record exactly as returned by the source.
type MentorRaw struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Company          string
	JobTitle         string
	Country          string
	USState          string
	YearsExperience  string
	ExperienceLevel  string
	PriorMentorship  string
	PriorDfg         string
	University       []string
	HearAbout        []string
	ProjectRoles     []string
	Nonprofits       []string
}

// NonprofitRaw is a nonprofit record exactly as returned by the source.
// ImpactCauseCodes are opaque provider-side record ids, mapped to
// domain.ImpactCause by the import pipeline's normalization step.
type NonprofitRaw struct {
	RepFirstName      string
	RepLastName       string
	RepTitle          string
	Email             string
	EmailCC           string
	Phone             string
	OrgName           string
	ProjectName       string
	OrgWebsite        string
	CountryHQ         string
	USStateHQ         string
	Address           string
	Size              string
	ImpactCauseCodes  []string
}

// MentorMenteePairingRaw is one row of the mentor-mentee pairings view.
type MentorMenteePairingRaw struct {
	MentorEmail  string
	MenteeEmails []string
}
