package airtablehttp

import (
	"fmt"

	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw"
)

// decode errors are plain untyped errors. The List methods log them and
// drop the record without wrapping them into sourcegw.ErrDecode; the
// missing-field detail only matters in a log line, never as a branch
// condition.

func str(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func strSlice(fields map[string]any, key string) []string {
	v, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func requireStr(fields map[string]any, key string) (string, error) {
	v := str(fields, key)
	if v == "" {
		return "", fmt.Errorf("missing required field %q", key)
	}
	return v, nil
}

func decodeVolunteer(fields map[string]any) (sourcegw.VolunteerRaw, error) {
	first, err := requireStr(fields, "First Name")
	if err != nil {
		return sourcegw.VolunteerRaw{}, err
	}
	last, err := requireStr(fields, "Last Name")
	if err != nil {
		return sourcegw.VolunteerRaw{}, err
	}
	email, err := requireStr(fields, "Email")
	if err != nil {
		return sourcegw.VolunteerRaw{}, err
	}

	return sourcegw.VolunteerRaw{
		FirstName:  first,
		LastName:   last,
		Email:      email,
		Phone:      str(fields, "Phone"),
		Gender:     str(fields, "Gender"),
		Ethnicity:  strSlice(fields, "Ethnicity"),
		AgeRange:   str(fields, "Age Range"),
		University: strSlice(fields, "University"),
		Lgbt:       str(fields, "LGBT"),
		Country:    str(fields, "Country"),
		USState:    str(fields, "State"),
		Fli:        strSlice(fields, "FLI"),
		Stage:      str(fields, "Student Stage"),
		Majors:     str(fields, "Majors"),
		Minors:     str(fields, "Minors"),
		HearAbout:  strSlice(fields, "Hear About"),
		Nonprofits: strSlice(fields, "Nonprofits"),
	}, nil
}

func decodeMentor(fields map[string]any) (sourcegw.MentorRaw, error) {
	first, err := requireStr(fields, "First Name")
	if err != nil {
		return sourcegw.MentorRaw{}, err
	}
	last, err := requireStr(fields, "Last Name")
	if err != nil {
		return sourcegw.MentorRaw{}, err
	}
	email, err := requireStr(fields, "Email")
	if err != nil {
		return sourcegw.MentorRaw{}, err
	}

	return sourcegw.MentorRaw{
		FirstName:       first,
		LastName:        last,
		Email:           email,
		Phone:           str(fields, "Phone"),
		Company:         str(fields, "Company"),
		JobTitle:        str(fields, "Job Title"),
		Country:         str(fields, "Country"),
		USState:         str(fields, "State"),
		YearsExperience: str(fields, "Years of Experience"),
		ExperienceLevel: str(fields, "Experience Level"),
		PriorMentorship: str(fields, "Prior Mentorship"),
		PriorDfg:        str(fields, "Prior DFG Involvement"),
		University:      strSlice(fields, "University"),
		HearAbout:       strSlice(fields, "Hear About"),
		ProjectRoles:    strSlice(fields, "Project Role"),
		Nonprofits:      strSlice(fields, "Nonprofits"),
	}, nil
}

func decodeNonprofit(fields map[string]any) (sourcegw.NonprofitRaw, error) {
	orgName, err := requireStr(fields, "Organization Name")
	if err != nil {
		return sourcegw.NonprofitRaw{}, err
	}
	email, err := requireStr(fields, "Email")
	if err != nil {
		return sourcegw.NonprofitRaw{}, err
	}

	return sourcegw.NonprofitRaw{
		RepFirstName:     str(fields, "Representative First Name"),
		RepLastName:      str(fields, "Representative Last Name"),
		RepTitle:         str(fields, "Representative Title"),
		Email:            email,
		EmailCC:          str(fields, "Email CC"),
		Phone:            str(fields, "Phone"),
		OrgName:          orgName,
		ProjectName:      str(fields, "Project Name"),
		OrgWebsite:       str(fields, "Website"),
		CountryHQ:        str(fields, "Country HQ"),
		USStateHQ:        str(fields, "State HQ"),
		Address:          str(fields, "Address"),
		Size:             str(fields, "Size"),
		ImpactCauseCodes: strSlice(fields, "Impact Causes"),
	}, nil
}

func decodePairing(fields map[string]any) (sourcegw.MentorMenteePairingRaw, error) {
	mentorEmail, err := requireStr(fields, "Mentor Email")
	if err != nil {
		return sourcegw.MentorMenteePairingRaw{}, err
	}

	return sourcegw.MentorMenteePairingRaw{
		MentorEmail:  mentorEmail,
		MenteeEmails: strSlice(fields, "Mentee Emails"),
	}, nil
}
