// Package importpipeline implements the ImportPipeline component (spec
// C3): pulling one cohort's worth of volunteers, mentors, and nonprofits
// out of a tabular source, normalizing them, and persisting the result as
// a single new ProjectCycle in one transaction.
package importpipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/internal/jobregistry"
	"github.com/developforgood/cycle-orchestrator/pkg/id"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
)

// Pipeline runs one import end to end.
type Pipeline struct {
	source  sourcegw.Gateway
	storage storage.Gateway
	jobs    *jobregistry.Registry
	logger  *slog.Logger
}

// New constructs a Pipeline.
func New(source sourcegw.Gateway, store storage.Gateway, jobs *jobregistry.Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{source: source, storage: store, jobs: jobs, logger: logger}
}

// Run executes the six-step import algorithm for baseID under jobID,
// naming the resulting ProjectCycle name/description, and reporting its
// outcome into the job registry before returning. The returned error is
// nil even when the job itself ends in JobStatusError: callers only need
// to check for infrastructure-level failures that prevented the job from
// being reported at all.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, baseID, name string, description *string) error {
	runID := id.NewULID()
	logger := p.logger.With(slog.String("run_id", runID), slog.String("job_id", jobID.String()))
	logger.InfoContext(ctx, "import run starting", "base_id", baseID)

	if err := p.run(ctx, jobID, baseID, name, description, logger); err != nil {
		msg := err.Error()
		logger.ErrorContext(ctx, "import run failed", "error", err)
		if uerr := p.jobs.UpdateStatus(ctx, jobID, domain.JobStatusError, &msg); uerr != nil {
			return fmt.Errorf("import %s: record failure: %w (original error: %s)", jobID, uerr, msg)
		}
		return nil
	}
	logger.InfoContext(ctx, "import run complete")
	return p.jobs.UpdateStatus(ctx, jobID, domain.JobStatusComplete, nil)
}

func (p *Pipeline) run(ctx context.Context, jobID uuid.UUID, baseID, name string, description *string, logger *slog.Logger) error {
	// Step 1: defensively validate the source schema before pulling data.
	ok, err := p.source.ValidateSchema(ctx, baseID)
	if err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}
	if !ok {
		return domain.ErrSchemaInvalid
	}

	// Step 2: fetch the four raw record streams.
	rawVolunteers, err := p.source.ListVolunteers(ctx, baseID)
	if err != nil {
		return fmt.Errorf("list volunteers: %w", err)
	}
	rawMentors, err := p.source.ListMentors(ctx, baseID)
	if err != nil {
		return fmt.Errorf("list mentors: %w", err)
	}
	rawNonprofits, err := p.source.ListNonprofits(ctx, baseID)
	if err != nil {
		return fmt.Errorf("list nonprofits: %w", err)
	}
	rawPairings, err := p.source.ListMentorMenteePairings(ctx, baseID)
	if err != nil {
		return fmt.Errorf("list mentor-mentee pairings: %w", err)
	}

	// Step 3: normalize every record independently of the others.
	nonprofits := make([]domain.Nonprofit, len(rawNonprofits))
	for i, r := range rawNonprofits {
		nonprofits[i] = normalizeNonprofit(r)
	}

	volunteers := make([]domain.Volunteer, len(rawVolunteers))
	for i, r := range rawVolunteers {
		volunteers[i] = normalizeVolunteer(r)
	}

	mentors := make([]domain.Mentor, len(rawMentors))
	for i, r := range rawMentors {
		mentors[i] = normalizeMentor(r)
	}

	// Step 4: build natural-key linkage tables. Each pair references a
	// volunteer/mentor by email and a nonprofit by org name; either side
	// unresolved after the batch insert (step 5) causes the pair to be
	// silently dropped rather than failing the whole import.
	volunteerNonprofitPairs := buildVolunteerNonprofitPairs(rawVolunteers)
	mentorNonprofitPairs := buildMentorNonprofitPairs(rawMentors)
	volunteerMentorPairs := buildVolunteerMentorPairs(rawPairings)

	// Step 5: persist everything in one transaction.
	tx, err := p.storage.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a harmless no-op

	cycleID, err := tx.CreateCycle(ctx, name, description)
	if err != nil {
		return fmt.Errorf("create cycle: %w", err)
	}

	nonprofitIDs, err := tx.BatchCreateNonprofits(ctx, cycleID, nonprofits)
	if err != nil {
		return fmt.Errorf("persist nonprofits: %w", err)
	}

	volunteerIDs, err := tx.BatchCreateVolunteers(ctx, cycleID, volunteers)
	if err != nil {
		return fmt.Errorf("persist volunteers: %w", err)
	}

	mentorIDs, err := tx.BatchCreateMentors(ctx, cycleID, mentors)
	if err != nil {
		return fmt.Errorf("persist mentors: %w", err)
	}

	if err := linkVolunteerNonprofits(ctx, tx, cycleID, volunteerIDs, nonprofitIDs, volunteerNonprofitPairs, logger); err != nil {
		return fmt.Errorf("link volunteers to nonprofits: %w", err)
	}
	if err := linkMentorNonprofits(ctx, tx, cycleID, mentorIDs, nonprofitIDs, mentorNonprofitPairs, logger); err != nil {
		return fmt.Errorf("link mentors to nonprofits: %w", err)
	}
	if err := linkVolunteerMentors(ctx, tx, cycleID, volunteerIDs, mentorIDs, volunteerMentorPairs, logger); err != nil {
		return fmt.Errorf("link volunteers to mentors: %w", err)
	}

	if err := tx.SetJobCycle(ctx, jobID, cycleID); err != nil {
		return fmt.Errorf("attach cycle to job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if err := p.jobs.SetCycle(ctx, jobID, cycleID); err != nil {
		logger.WarnContext(ctx, "import committed but job registry cycle attach failed", "cycle_id", cycleID, "error", err)
	}

	return nil
}

type namePair struct {
	key     string
	orgName string
}

func buildVolunteerNonprofitPairs(raw []sourcegw.VolunteerRaw) []namePair {
	var pairs []namePair
	for _, v := range raw {
		for _, org := range v.Nonprofits {
			pairs = append(pairs, namePair{key: v.Email, orgName: org})
		}
	}
	return pairs
}

// buildMentorNonprofitPairs links only mentors whose raw project role
// includes "Team Mentor"; mentors without that role sit in the cycle
// unlinked to any nonprofit project.
func buildMentorNonprofitPairs(raw []sourcegw.MentorRaw) []namePair {
	var pairs []namePair
	for _, m := range raw {
		if !hasTeamMentorRole(m.ProjectRoles) {
			continue
		}
		for _, org := range m.Nonprofits {
			pairs = append(pairs, namePair{key: m.Email, orgName: org})
		}
	}
	return pairs
}

func hasTeamMentorRole(roles []string) bool {
	for _, r := range roles {
		if r == teamMentorRole {
			return true
		}
	}
	return false
}

type emailPair struct {
	mentorEmail  string
	menteeEmail string
}

func buildVolunteerMentorPairs(raw []sourcegw.MentorMenteePairingRaw) []emailPair {
	var pairs []emailPair
	for _, p := range raw {
		for _, mentee := range p.MenteeEmails {
			pairs = append(pairs, emailPair{mentorEmail: p.MentorEmail, menteeEmail: mentee})
		}
	}
	return pairs
}

func linkVolunteerNonprofits(ctx context.Context, tx storage.Tx, cycleID uuid.UUID, volunteerIDs, nonprofitIDs map[string]uuid.UUID, pairs []namePair, logger *slog.Logger) error {
	links := make([]domain.VolunteerNonprofitLink, 0, len(pairs))
	for _, pair := range pairs {
		vID, ok := volunteerIDs[pair.key]
		if !ok {
			logger.WarnContext(ctx, "dropping volunteer-nonprofit link: unresolved volunteer", "email", pair.key)
			continue
		}
		nID, ok := nonprofitIDs[pair.orgName]
		if !ok {
			logger.WarnContext(ctx, "dropping volunteer-nonprofit link: unresolved nonprofit", "org_name", pair.orgName)
			continue
		}
		links = append(links, domain.VolunteerNonprofitLink{CycleID: cycleID, VolunteerID: vID, NonprofitID: nID})
	}
	if len(links) == 0 {
		return nil
	}
	return tx.BatchLinkVolunteerNonprofit(ctx, links)
}

func linkMentorNonprofits(ctx context.Context, tx storage.Tx, cycleID uuid.UUID, mentorIDs, nonprofitIDs map[string]uuid.UUID, pairs []namePair, logger *slog.Logger) error {
	links := make([]domain.MentorNonprofitLink, 0, len(pairs))
	for _, pair := range pairs {
		mID, ok := mentorIDs[pair.key]
		if !ok {
			logger.WarnContext(ctx, "dropping mentor-nonprofit link: unresolved mentor", "email", pair.key)
			continue
		}
		nID, ok := nonprofitIDs[pair.orgName]
		if !ok {
			logger.WarnContext(ctx, "dropping mentor-nonprofit link: unresolved nonprofit", "org_name", pair.orgName)
			continue
		}
		links = append(links, domain.MentorNonprofitLink{CycleID: cycleID, MentorID: mID, NonprofitID: nID})
	}
	if len(links) == 0 {
		return nil
	}
	return tx.BatchLinkMentorNonprofit(ctx, links)
}

func linkVolunteerMentors(ctx context.Context, tx storage.Tx, cycleID uuid.UUID, volunteerIDs, mentorIDs map[string]uuid.UUID, pairs []emailPair, logger *slog.Logger) error {
	links := make([]domain.VolunteerMentorLink, 0, len(pairs))
	for _, pair := range pairs {
		mID, ok := mentorIDs[pair.mentorEmail]
		if !ok {
			logger.WarnContext(ctx, "dropping volunteer-mentor link: unresolved mentor", "email", pair.mentorEmail)
			continue
		}
		vID, ok := volunteerIDs[pair.menteeEmail]
		if !ok {
			logger.WarnContext(ctx, "dropping volunteer-mentor link: unresolved mentee", "email", pair.menteeEmail)
			continue
		}
		links = append(links, domain.VolunteerMentorLink{CycleID: cycleID, MentorID: mID, VolunteerID: vID})
	}
	if len(links) == 0 {
		return nil
	}
	return tx.BatchLinkVolunteerMentor(ctx, links)
}
