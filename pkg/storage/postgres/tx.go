package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
)

// txImpl is the storage.TxHandle implementation bound to one pgx.Tx. All
// batch methods use pgx.Batch so a whole entity kind round-trips in a
// single network call.
type txImpl struct {
	tx pgx.Tx
}

var _ storage.TxHandle = (*txImpl)(nil)

func (t *txImpl) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *txImpl) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *txImpl) CreateCycle(ctx context.Context, name string, description *string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := t.tx.Exec(ctx, `INSERT INTO project_cycles (id, name, description) VALUES ($1, $2, $3)`,
		id, name, description)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
	}
	return id, nil
}

func (t *txImpl) BatchCreateNonprofits(ctx context.Context, cycleID uuid.UUID, nonprofits []domain.Nonprofit) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(nonprofits))
	batch := &pgx.Batch{}
	assigned := make([]uuid.UUID, len(nonprofits))
	for i, n := range nonprofits {
		id := uuid.New()
		assigned[i] = id
		batch.Queue(`
			INSERT INTO nonprofits (id, cycle_id, rep_first_name, rep_last_name, rep_title,
				email, email_cc, phone, org_name, project_name, org_website,
				country_hq, us_state_hq, address, size, impact_causes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			id, cycleID, n.RepFirstName, n.RepLastName, n.RepTitle,
			n.Email, n.EmailCC, n.Phone, n.OrgName, n.ProjectName, n.OrgWebsite,
			n.CountryHQ, n.USStateHQ, n.Address, n.Size, impactCausesToStrings(n.ImpactCauses))
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := range nonprofits {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
		}
		ids[nonprofits[i].OrgName] = assigned[i]
	}
	return ids, nil
}

func (t *txImpl) BatchCreateVolunteers(ctx context.Context, cycleID uuid.UUID, volunteers []domain.Volunteer) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(volunteers))
	batch := &pgx.Batch{}
	assigned := make([]uuid.UUID, len(volunteers))
	for i, v := range volunteers {
		id := uuid.New()
		assigned[i] = id
		batch.Queue(`
			INSERT INTO volunteers (id, cycle_id, first_name, last_name, email, phone,
				gender, ethnicity, age_range, university, lgbt_status, country, us_state,
				fli, student_stage, majors, minors, hear_about)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			id, cycleID, v.FirstName, v.LastName, v.Email, v.Phone,
			v.Gender, ethnicitiesToStrings(v.Ethnicity), v.AgeRange, v.University, v.LgbtStatus,
			v.Country, v.USState, fliToStrings(v.Fli), v.Stage, v.Majors, v.Minors,
			hearAboutToStrings(v.HearAbout))
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := range volunteers {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
		}
		ids[volunteers[i].Email] = assigned[i]
	}
	return ids, nil
}

func (t *txImpl) BatchCreateMentors(ctx context.Context, cycleID uuid.UUID, mentors []domain.Mentor) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(mentors))
	batch := &pgx.Batch{}
	assigned := make([]uuid.UUID, len(mentors))
	for i, m := range mentors {
		id := uuid.New()
		assigned[i] = id
		batch.Queue(`
			INSERT INTO mentors (id, cycle_id, first_name, last_name, email, phone, company,
				job_title, country, us_state, years_experience, experience_level,
				prior_mentor, prior_mentee, prior_student, university, hear_about)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			id, cycleID, m.FirstName, m.LastName, m.Email, m.Phone, m.Company,
			m.JobTitle, m.Country, m.USState, m.YearsExperience, m.ExperienceLevel,
			m.PriorMentor, m.PriorMentee, m.PriorStudent, m.University,
			hearAboutToStrings(m.HearAbout))
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := range mentors {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
		}
		ids[mentors[i].Email] = assigned[i]
	}
	return ids, nil
}

func (t *txImpl) BatchLinkVolunteerNonprofit(ctx context.Context, links []domain.VolunteerNonprofitLink) error {
	if len(links) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range links {
		batch.Queue(`
			INSERT INTO volunteer_nonprofit_links (cycle_id, volunteer_id, nonprofit_id)
			VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`, l.CycleID, l.VolunteerID, l.NonprofitID)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range links {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
		}
	}
	return nil
}

func (t *txImpl) BatchLinkMentorNonprofit(ctx context.Context, links []domain.MentorNonprofitLink) error {
	if len(links) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range links {
		batch.Queue(`
			INSERT INTO mentor_nonprofit_links (cycle_id, mentor_id, nonprofit_id)
			VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`, l.CycleID, l.MentorID, l.NonprofitID)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range links {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
		}
	}
	return nil
}

func (t *txImpl) BatchLinkVolunteerMentor(ctx context.Context, links []domain.VolunteerMentorLink) error {
	if len(links) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range links {
		batch.Queue(`
			INSERT INTO volunteer_mentor_links (cycle_id, mentor_id, volunteer_id)
			VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`, l.CycleID, l.MentorID, l.VolunteerID)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range links {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
		}
	}
	return nil
}

func (t *txImpl) SetJobCycle(ctx context.Context, jobID, cycleID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `UPDATE jobs SET cycle_id = $2, updated_at = now() WHERE id = $1`, jobID, cycleID)
	return err
}

func (t *txImpl) InsertLedgerRows(ctx context.Context, rows []domain.ExportedVolunteerLedgerRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO exported_volunteer_ledger (volunteer_id, job_id, workspace_email, org_unit)
			VALUES ($1,$2,$3,$4)`, r.VolunteerID, r.JobID, r.WorkspaceEmail, r.OrgUnit)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
		}
	}
	return nil
}

func (t *txImpl) DeleteLedgerRows(ctx context.Context, volunteerIDs []uuid.UUID) error {
	if len(volunteerIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM exported_volunteer_ledger WHERE volunteer_id = ANY($1)`, volunteerIDs)
	return err
}

func ethnicitiesToStrings(es []domain.Ethnicity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = string(e)
	}
	return out
}

func fliToStrings(fs []domain.Fli) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}

func hearAboutToStrings(hs []domain.HearAbout) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}

func impactCausesToStrings(cs []domain.ImpactCause) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
