// Package search builds job-board query parameters from user
// preferences. The builder is pure: catalog data in, url.Values out,
// no storage or network.
package search

import (
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Filter is one backend filter fragment, e.g. {"area", "1"}.
type Filter struct {
	Key   string
	Value string
}

// Catalog maps the fixed preference choices shown to users onto
// backend filter fragments. It is immutable configuration data; values
// missing from the catalog contribute nothing to a query.
type Catalog struct {
	Locations    map[string][]Filter
	Specialities map[string][]Filter
	Grades       map[string]Filter
}

// DefaultCatalog returns the hh.ru mapping the bot ships with.
func DefaultCatalog() Catalog {
	return Catalog{
		Locations: map[string][]Filter{
			"Москва (офис, удаленно)":          {{"area", "1"}},
			"Санкт-Петербург (офис, удаленно)": {{"area", "2"}},
			"Удаленно":                         {{"work_format", "REMOTE"}},
			"Другие страны":                    {{"area", "1001"}},
		},
		Specialities: map[string][]Filter{
			"Тестировщик":             {{"professional_role", "124"}},
			"Дата саентист/аналитик":  {{"professional_role", "165"}},
			"Системный аналитик":      {{"professional_role", "148"}},
			"Бизнес аналитик":         {{"professional_role", "156"}},
			"Продуктовый аналитик":    {{"professional_role", "164"}},
			"DevOps":                  {{"professional_role", "160"}},
			"Дизайнер":                {{"professional_role", "34"}},
			"Менеджер продукта":       {{"professional_role", "73"}},
		},
		Grades: map[string]Filter{
			"Intern-Junior": {"experience", "noExperience"},
			"Junior-Middle": {"experience", "between1And3"},
			"Middle-Senior": {"experience", "between3And6"},
			"Senior+":       {"experience", "moreThan6"},
		},
	}
}

// LocationChoices lists catalog location values for the settings UI.
func (c Catalog) LocationChoices() []string { return keysOf(c.Locations) }

// SpecialityChoices lists catalog speciality values for the settings UI.
func (c Catalog) SpecialityChoices() []string { return keysOf(c.Specialities) }

// GradeChoices lists catalog grade values for the settings UI.
func (c Catalog) GradeChoices() []string {
	out := make([]string, 0, len(c.Grades))
	for k := range c.Grades {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func keysOf(m map[string][]Filter) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// mskZone is the backend's expected fixed offset for date_from.
var mskZone = time.FixedZone("UTC+3", 3*60*60)

// FormatSince renders a timestamp in the backend's fixed-offset
// ISO-8601 form (+03:00), regardless of the process time zone.
func FormatSince(t time.Time) string {
	return t.In(mskZone).Format("2006-01-02T15:04:05-07:00")
}

// Build assembles one query parameter set for a single grade. Fragments
// from multiple matched locations/specialities that share a filter key
// collapse into a repeated key (the backend ORs repeated keys); a
// single match stays scalar. The grade maps to exactly one experience
// bucket, which is why the finder issues one Build per grade.
func (c Catalog) Build(locations, specialities []string, grade string, salaryFloor int, since time.Time) url.Values {
	params := url.Values{}

	for _, loc := range locations {
		for _, f := range c.Locations[loc] {
			params.Add(f.Key, f.Value)
		}
	}
	for _, sp := range specialities {
		for _, f := range c.Specialities[sp] {
			params.Add(f.Key, f.Value)
		}
	}
	if f, ok := c.Grades[grade]; ok {
		params.Add(f.Key, f.Value)
	}
	params.Set("salary", strconv.Itoa(salaryFloor))
	params.Set("date_from", FormatSince(since))

	return params
}
