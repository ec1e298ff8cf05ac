package importpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw"
)

func TestNormalizeImpactCauses(t *testing.T) {
	t.Parallel()

	t.Run("maps known codes", func(t *testing.T) {
		t.Parallel()
		got := normalizeImpactCauses([]string{"recYfRNFDpm2nedjM", "recKs8kboTORruStC"})
		assert.Equal(t, []domain.ImpactCause{domain.ImpactCauseEducation, domain.ImpactCauseHealthAndMedicine}, got)
	})

	t.Run("unknown code falls back to Other", func(t *testing.T) {
		t.Parallel()
		got := normalizeImpactCauses([]string{"recUnknownCode"})
		assert.Equal(t, []domain.ImpactCause{domain.ImpactCauseOther}, got)
	})

	t.Run("absent field defaults to Other", func(t *testing.T) {
		t.Parallel()
		got := normalizeImpactCauses(nil)
		assert.Equal(t, []domain.ImpactCause{domain.ImpactCauseOther}, got)
	})
}

func TestSplitTrim(t *testing.T) {
	t.Parallel()

	t.Run("splits and trims", func(t *testing.T) {
		t.Parallel()
		got := splitTrim("Computer Science,  Economics ,Art")
		assert.Equal(t, []string{"Computer Science", "Economics", "Art"}, got)
	})

	t.Run("blank input yields nothing", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, splitTrim(""))
		assert.Nil(t, splitTrim("   "))
	})
}

func TestMentorYearsExperience(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.MentorYearsExperience{
		"2-5":         domain.MentorYearsExperience2To5,
		"6-10":        domain.MentorYearsExperience6To10,
		"11-15":       domain.MentorYearsExperience11To15,
		"16-20":       domain.MentorYearsExperience16To20,
		"21+":         domain.MentorYearsExperience21Plus,
		"garbage":     domain.MentorYearsExperience21Plus,
		"":            domain.MentorYearsExperience21Plus,
	}
	for raw, want := range cases {
		raw, want := raw, want
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, want, mentorYearsExperience(raw))
		})
	}
}

func TestNormalizeMentor_PriorMentorshipMarkers(t *testing.T) {
	t.Parallel()

	t.Run("prior mentorship markers set both flags independently", func(t *testing.T) {
		t.Parallel()
		m := normalizeMentor(sourcegw.MentorRaw{
			PriorMentorship: "Yes, I've been a mentor and Yes, I've been a mentee",
		})
		assert.True(t, m.PriorMentor)
		assert.True(t, m.PriorMentee)
	})

	t.Run("no markers leaves flags false", func(t *testing.T) {
		t.Parallel()
		m := normalizeMentor(sourcegw.MentorRaw{PriorMentorship: "No"})
		assert.False(t, m.PriorMentor)
		assert.False(t, m.PriorMentee)
	})
}

func TestHasTeamMentorRole(t *testing.T) {
	t.Parallel()

	assert.True(t, hasTeamMentorRole([]string{"Team Mentor"}))
	assert.True(t, hasTeamMentorRole([]string{"Panelist", "Team Mentor"}))
	assert.False(t, hasTeamMentorRole([]string{"Panelist"}))
	assert.False(t, hasTeamMentorRole(nil))
}

func TestNormalizeVolunteer_DefaultsAndPassthrough(t *testing.T) {
	t.Parallel()

	v := normalizeVolunteer(sourcegw.VolunteerRaw{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.org",
		Majors:    "Mathematics, Computer Science",
		Minors:    "",
	})

	assert.Equal(t, []domain.Ethnicity{domain.EthnicityPreferNotToSay}, v.Ethnicity)
	assert.Equal(t, []domain.Fli{domain.FliPreferNotToSay}, v.Fli)
	assert.Equal(t, []string{"Mathematics", "Computer Science"}, v.Majors)
	assert.Nil(t, v.Minors)
	assert.Nil(t, v.Phone)
}
