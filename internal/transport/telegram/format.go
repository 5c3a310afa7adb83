package telegram

import (
	"fmt"
	"regexp"
	"strings"

	tele "gopkg.in/telebot.v4"

	"vacanbot/internal/source/hh"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes markup tags from API snippets (hh.ru wraps matched
// keywords in <highlighttext>).
func stripHTML(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

func salaryLine(v hh.Vacancy) string {
	switch {
	case v.SalaryFrom != nil && v.SalaryTo != nil:
		return fmt.Sprintf("%d - %d %s", *v.SalaryFrom, *v.SalaryTo, v.Currency)
	case v.SalaryFrom != nil:
		return fmt.Sprintf("%d %s", *v.SalaryFrom, v.Currency)
	case v.SalaryTo != nil:
		return fmt.Sprintf("%d %s", *v.SalaryTo, v.Currency)
	default:
		return "Зарплата не указана"
	}
}

func formatVacancy(v hh.Vacancy) string {
	location := v.Location
	if strings.TrimSpace(location) == "" {
		location = "Не указана"
	}
	return fmt.Sprintf(
		"*%s* @ *%s*\n\n"+
			"💰 %s\n"+
			"📍 %s\n\n"+
			"Требуемые навыки: %s\n\n"+
			"Обязанности: %s",
		v.Name, v.Employer,
		salaryLine(v),
		location,
		stripHTML(v.Requirement),
		stripHTML(v.Responsibility),
	)
}

func vacancyMarkup(link string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rm.Inline(rm.Row(tele.Btn{Text: "Перейти на вакансию 🔗", URL: link}))
	return rm
}
