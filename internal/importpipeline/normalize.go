package importpipeline

import (
	"strings"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw"
)

// normalizeKey canonicalizes a source display string for enum lookup:
// lowercased, stripped of everything but letters and digits, so "Non-binary
// / Non-conforming" and "non binary / non-conforming" collapse to the same
// key regardless of the punctuation and spacing Airtable's UI happens to
// render for a single-select option.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// impactCauseByCode maps the tabular source's opaque per-cause record ids
// to the fixed enumeration. Any code absent from this table normalizes to
// domain.ImpactCauseOther.
var impactCauseByCode = map[string]domain.ImpactCause{
	"reco1zHRYv8lTQDaI": domain.ImpactCauseAnimals,
	"recXhhTPsuQ2PMjU4": domain.ImpactCauseCareerAndProfessionalDevelopment,
	"recvWKilRRABCcHuI": domain.ImpactCauseDisasterRelief,
	"recYfRNFDpm2nedjM": domain.ImpactCauseEducation,
	"recOlWiJTppnQwnll": domain.ImpactCauseEnvironmentAndSustainability,
	"recix0Y5qCXYfZGRz": domain.ImpactCauseFaithAndReligion,
	"recKs8kboTORruStC": domain.ImpactCauseHealthAndMedicine,
	"recEmtYMgeOlPeOVQ": domain.ImpactCauseGlobalRelations,
	"reczSSbvdW2NoOX2p": domain.ImpactCausePovertyAndHunger,
	"rec5dt6EVyUeIaCR7": domain.ImpactCauseSeniorServices,
	"recMt9349gwuRAQXf": domain.ImpactCauseJusticeAndEquity,
	"rec8cH6YTQMeYqXUh": domain.ImpactCauseVeteransAndMilitaryFamilies,
}

func normalizeImpactCauses(codes []string) []domain.ImpactCause {
	if len(codes) == 0 {
		return []domain.ImpactCause{domain.ImpactCauseOther}
	}
	out := make([]domain.ImpactCause, len(codes))
	for i, c := range codes {
		cause, ok := impactCauseByCode[c]
		if !ok {
			cause = domain.ImpactCauseOther
		}
		out[i] = cause
	}
	return out
}

// splitTrim splits s on commas and trims surrounding whitespace from each
// element, matching the import's majors/minors normalization rule. A
// blank input yields nil rather than a one-element slice holding "".
func splitTrim(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// mentorYearsExperience maps the source's free-text years-of-experience
// field to the closed enumeration; any unrecognized text maps to the
// open-ended top band, matching the source's catch-all.
func mentorYearsExperience(raw string) domain.MentorYearsExperience {
	switch strings.TrimSpace(raw) {
	case "2-5":
		return domain.MentorYearsExperience2To5
	case "6-10":
		return domain.MentorYearsExperience6To10
	case "11-15":
		return domain.MentorYearsExperience11To15
	case "16-20":
		return domain.MentorYearsExperience16To20
	default:
		return domain.MentorYearsExperience21Plus
	}
}

var genderByText = map[string]domain.Gender{
	"woman":          domain.GenderWoman,
	"man":            domain.GenderMan,
	"nonbinary":      domain.GenderNonBinary,
	"other":          domain.GenderOther,
	"prefernottosay": domain.GenderPreferNotToSay,
}

// normalizeGender coerces the source's display text to the closed
// enumeration; text outside the single-select's option set (including an
// empty field) defaults to PreferNotToSay rather than a guessed gender.
func normalizeGender(raw string) domain.Gender {
	if g, ok := genderByText[normalizeKey(raw)]; ok {
		return g
	}
	return domain.GenderPreferNotToSay
}

var ageRangeByText = map[string]domain.AgeRange{
	"1824":   domain.AgeRange18_24,
	"2529":   domain.AgeRange25_29,
	"3034":   domain.AgeRange30_34,
	"3539":   domain.AgeRange35_39,
	"4049":   domain.AgeRange40_49,
	"5059":   domain.AgeRange50_59,
	"6065":   domain.AgeRange60_65,
	"over65": domain.AgeRangeOver65,
	"65":     domain.AgeRangeOver65,
}

// normalizeAgeRange coerces the source's display text to the closed
// enumeration, defaulting unrecognized text to the open-ended top band,
// matching mentorYearsExperience's catch-all convention.
func normalizeAgeRange(raw string) domain.AgeRange {
	if r, ok := ageRangeByText[normalizeKey(raw)]; ok {
		return r
	}
	return domain.AgeRangeOver65
}

var lgbtByText = map[string]domain.Lgbt{
	"yes":            domain.LgbtYes,
	"no":             domain.LgbtNo,
	"ally":           domain.LgbtAlly,
	"prefernottosay": domain.LgbtPreferNotToSay,
}

// normalizeLgbt coerces the source's display text to the closed
// enumeration; unrecognized or empty text defaults to PreferNotToSay.
func normalizeLgbt(raw string) domain.Lgbt {
	if l, ok := lgbtByText[normalizeKey(raw)]; ok {
		return l
	}
	return domain.LgbtPreferNotToSay
}

var studentStageByText = map[string]domain.StudentStage{
	"freshman":       domain.StudentStageFreshman,
	"sophomore":      domain.StudentStageSophomore,
	"junior":         domain.StudentStageJunior,
	"senior":         domain.StudentStageSenior,
	"mastersstudent": domain.StudentStageMastersStudent,
	"phdstudent":     domain.StudentStagePhdStudent,
	"recentgraduate": domain.StudentStageRecentGraduate,
}

// normalizeStudentStage coerces the source's display text to the closed
// enumeration, defaulting unrecognized text to RecentGraduate, matching
// mentorYearsExperience's open-ended-top-band catch-all convention.
func normalizeStudentStage(raw string) domain.StudentStage {
	if s, ok := studentStageByText[normalizeKey(raw)]; ok {
		return s
	}
	return domain.StudentStageRecentGraduate
}

var mentorExperienceLevelByText = map[string]domain.MentorExperienceLevel{
	"intermediate":         domain.MentorExperienceLevelIntermediate,
	"firstlevelmanagement": domain.MentorExperienceLevelFirstLevelManagement,
	"middlemanagement":     domain.MentorExperienceLevelMiddleManagement,
	"seniororexecutive":    domain.MentorExperienceLevelSeniorOrExecutive,
}

// normalizeExperienceLevel coerces the source's display text to the
// closed enumeration, defaulting unrecognized text to the most senior
// band, matching mentorYearsExperience's catch-all convention.
func normalizeExperienceLevel(raw string) domain.MentorExperienceLevel {
	if l, ok := mentorExperienceLevelByText[normalizeKey(raw)]; ok {
		return l
	}
	return domain.MentorExperienceLevelSeniorOrExecutive
}

var clientSizeByText = map[string]domain.ClientSize{
	"0":       domain.ClientSize0,
	"15":      domain.ClientSize1To5,
	"620":     domain.ClientSize6To20,
	"2150":    domain.ClientSize21To50,
	"51100":   domain.ClientSize51To100,
	"101500":  domain.ClientSize101To500,
	"over500": domain.ClientSizeOver500,
	"500":     domain.ClientSizeOver500,
}

// normalizeClientSize coerces the source's display text to the closed
// enumeration, defaulting unrecognized text to the open-ended top band.
func normalizeClientSize(raw string) domain.ClientSize {
	if s, ok := clientSizeByText[normalizeKey(raw)]; ok {
		return s
	}
	return domain.ClientSizeOver500
}

var ethnicityByText = map[string]domain.Ethnicity{
	"asian":                           domain.EthnicityAsian,
	"whiteorcaucasian":                domain.EthnicityWhiteOrCaucasian,
	"blackorafricanamerican":          domain.EthnicityBlackOrAfricanAmerican,
	"americanindianoralaskanative":    domain.EthnicityAmericanIndianOrAlaskaNative,
	"nativehawaiianorpacificislander": domain.EthnicityNativeHawaiianOrPacificIslander,
	"latinoorhispanic":                domain.EthnicityLatinoOrHispanic,
	"other":                           domain.EthnicityOther,
	"prefernottosay":                  domain.EthnicityPreferNotToSay,
}

func toEthnicities(ss []string) []domain.Ethnicity {
	if len(ss) == 0 {
		return []domain.Ethnicity{domain.EthnicityPreferNotToSay}
	}
	out := make([]domain.Ethnicity, len(ss))
	for i, s := range ss {
		e, ok := ethnicityByText[normalizeKey(s)]
		if !ok {
			e = domain.EthnicityOther
		}
		out[i] = e
	}
	return out
}

var fliByText = map[string]domain.Fli{
	"firstgeneration": domain.FliFirstGeneration,
	"lowincome":       domain.FliLowIncome,
	"neither":         domain.FliNeither,
	"prefernottosay":  domain.FliPreferNotToSay,
}

func toFli(ss []string) []domain.Fli {
	if len(ss) == 0 {
		return []domain.Fli{domain.FliPreferNotToSay}
	}
	out := make([]domain.Fli, len(ss))
	for i, s := range ss {
		f, ok := fliByText[normalizeKey(s)]
		if !ok {
			f = domain.FliPreferNotToSay
		}
		out[i] = f
	}
	return out
}

var hearAboutByText = map[string]domain.HearAbout{
	"linkedin":                domain.HearAboutLinkedin,
	"university":              domain.HearAboutUniversity,
	"companysocialimpactteam": domain.HearAboutCompanySocialImpactTeam,
	"colleague":               domain.HearAboutColleague,
	"dfgmember":               domain.HearAboutDfgMember,
	"nonprofit":               domain.HearAboutNonprofit,
	"onlinead":                domain.HearAboutOnlineAd,
	"instagram":               domain.HearAboutInstagram,
	"wordofmouth":             domain.HearAboutWordOfMouth,
	"bootcamp":                domain.HearAboutBootcamp,
	"discordorslack":          domain.HearAboutDiscordOrSlack,
	"unknown":                 domain.HearAboutUnknown,
	"other":                   domain.HearAboutOther,
}

func toHearAbout(ss []string) []domain.HearAbout {
	out := make([]domain.HearAbout, len(ss))
	for i, s := range ss {
		h, ok := hearAboutByText[normalizeKey(s)]
		if !ok {
			h = domain.HearAboutUnknown
		}
		out[i] = h
	}
	return out
}

const (
	priorMentorMarker  = "Yes, I've been a mentor"
	priorMenteeMarker  = "Yes, I've been a mentee"
	priorStudentMarker = "Yes"
	teamMentorRole     = "Team Mentor"
)

func normalizeVolunteer(raw sourcegw.VolunteerRaw) domain.Volunteer {
	var phone *string
	if raw.Phone != "" {
		phone = &raw.Phone
	}
	var usState *string
	if raw.USState != "" {
		usState = &raw.USState
	}

	return domain.Volunteer{
		FirstName:  raw.FirstName,
		LastName:   raw.LastName,
		Email:      raw.Email,
		Phone:      phone,
		Gender:     normalizeGender(raw.Gender),
		Ethnicity:  toEthnicities(raw.Ethnicity),
		AgeRange:   normalizeAgeRange(raw.AgeRange),
		University: raw.University,
		LgbtStatus: normalizeLgbt(raw.Lgbt),
		Country:    raw.Country,
		USState:    usState,
		Fli:        toFli(raw.Fli),
		Stage:      normalizeStudentStage(raw.Stage),
		Majors:     splitTrim(raw.Majors),
		Minors:     splitTrim(raw.Minors),
		HearAbout:  toHearAbout(raw.HearAbout),
	}
}

func normalizeMentor(raw sourcegw.MentorRaw) domain.Mentor {
	var usState *string
	if raw.USState != "" {
		usState = &raw.USState
	}

	return domain.Mentor{
		FirstName:       raw.FirstName,
		LastName:        raw.LastName,
		Email:           raw.Email,
		Phone:           raw.Phone,
		Company:         raw.Company,
		JobTitle:        raw.JobTitle,
		Country:         raw.Country,
		USState:         usState,
		YearsExperience: mentorYearsExperience(raw.YearsExperience),
		ExperienceLevel: normalizeExperienceLevel(raw.ExperienceLevel),
		PriorMentor:     strings.Contains(raw.PriorMentorship, priorMentorMarker),
		PriorMentee:     strings.Contains(raw.PriorMentorship, priorMenteeMarker),
		PriorStudent:    strings.Contains(raw.PriorDfg, priorStudentMarker),
		University:      raw.University,
		HearAbout:       toHearAbout(raw.HearAbout),
	}
}

func normalizeNonprofit(raw sourcegw.NonprofitRaw) domain.Nonprofit {
	var emailCC, website, countryHQ, stateHQ *string
	if raw.EmailCC != "" {
		emailCC = &raw.EmailCC
	}
	if raw.OrgWebsite != "" {
		website = &raw.OrgWebsite
	}
	if raw.CountryHQ != "" {
		countryHQ = &raw.CountryHQ
	}
	if raw.USStateHQ != "" {
		stateHQ = &raw.USStateHQ
	}

	return domain.Nonprofit{
		RepFirstName: raw.RepFirstName,
		RepLastName:  raw.RepLastName,
		RepTitle:     raw.RepTitle,
		Email:        raw.Email,
		EmailCC:      emailCC,
		Phone:        raw.Phone,
		OrgName:      raw.OrgName,
		ProjectName:  raw.ProjectName,
		OrgWebsite:   website,
		CountryHQ:    countryHQ,
		USStateHQ:    stateHQ,
		Address:      raw.Address,
		Size:         normalizeClientSize(raw.Size),
		ImpactCauses: normalizeImpactCauses(raw.ImpactCauseCodes),
	}
}
