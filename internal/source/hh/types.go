package hh

// Vacancy is one posting normalized from the API response. It lives
// for a single polling cycle; only its ID is ever persisted (in the
// sent-vacancies ledger).
type Vacancy struct {
	ID       string
	Name     string
	Employer string

	// Salary bounds are nil when the posting does not state them.
	SalaryFrom *int
	SalaryTo   *int
	Currency   string

	Location string
	Link     string

	// Requirement and Responsibility are free-text snippets and may
	// contain HTML highlight tags; strip before display.
	Requirement    string
	Responsibility string
}

// Result is the outcome of one paginated query.
//
// Zero vacancies with Err == nil is a valid empty result. Err is set
// only when the first page could not be fetched at all; the caller
// treats that as "no results" but may log it differently. Truncated
// marks a mid-sequence page failure: the vacancies gathered so far are
// kept, the rest of the pages were skipped.
type Result struct {
	Vacancies []Vacancy
	Err       error
	Truncated bool
}

// Failed reports whether the query produced no usable first page.
func (r Result) Failed() bool { return r.Err != nil }

// Wire types for api.hh.ru/vacancies. Nested objects are pointers:
// the API returns null for absent salary/area/employer/snippet.

type pageResponse struct {
	Items []rawVacancy `json:"items"`
	Pages int          `json:"pages"`
}

type rawVacancy struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Salary       *rawSalary   `json:"salary"`
	Area         *rawNamed    `json:"area"`
	Employer     *rawNamed    `json:"employer"`
	Snippet      *rawSnippet  `json:"snippet"`
	AlternateURL string       `json:"alternate_url"`
}

type rawSalary struct {
	From     *int   `json:"from"`
	To       *int   `json:"to"`
	Currency string `json:"currency"`
}

type rawNamed struct {
	Name string `json:"name"`
}

type rawSnippet struct {
	Requirement    *string `json:"requirement"`
	Responsibility *string `json:"responsibility"`
}

func (rv rawVacancy) normalize() Vacancy {
	v := Vacancy{
		ID:   rv.ID,
		Name: rv.Name,
		Link: rv.AlternateURL,
	}
	if rv.Salary != nil {
		v.SalaryFrom = rv.Salary.From
		v.SalaryTo = rv.Salary.To
		v.Currency = rv.Salary.Currency
	}
	if rv.Area != nil {
		v.Location = rv.Area.Name
	}
	if rv.Employer != nil {
		v.Employer = rv.Employer.Name
	}
	if rv.Snippet != nil {
		if rv.Snippet.Requirement != nil {
			v.Requirement = *rv.Snippet.Requirement
		}
		if rv.Snippet.Responsibility != nil {
			v.Responsibility = *rv.Snippet.Responsibility
		}
	}
	return v
}
