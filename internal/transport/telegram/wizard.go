package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"vacanbot/pkg/logx"
)

// The settings wizard walks a user through four steps: locations,
// specialities, grades (multi-select each) and a salary floor. The
// collected choices are persisted wholesale only when the last step
// completes; until then they live in an in-process session.

type wizStep int

const (
	stepLocations wizStep = iota + 1
	stepSpecialities
	stepGrades
	stepSalary
)

func (s wizStep) key() string {
	switch s {
	case stepLocations:
		return "loc"
	case stepSpecialities:
		return "spec"
	case stepGrades:
		return "grade"
	case stepSalary:
		return "salary"
	}
	return ""
}

type wizSession struct {
	// mu serializes callback taps: telebot dispatches every handler in
	// its own goroutine, and two quick taps on the same message would
	// otherwise mutate the session concurrently.
	mu sync.Mutex

	step         wizStep
	locations    []string
	specialities []string
	grades       []string
}

func (s *wizSession) selected(step wizStep) *[]string {
	switch step {
	case stepLocations:
		return &s.locations
	case stepSpecialities:
		return &s.specialities
	case stepGrades:
		return &s.grades
	}
	return nil
}

type wizardStore struct {
	mu sync.Mutex
	m  map[int64]*wizSession
}

func newWizardStore() *wizardStore {
	return &wizardStore{m: map[int64]*wizSession{}}
}

func (w *wizardStore) get(userID int64) *wizSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.m[userID]
}

func (w *wizardStore) put(userID int64, s *wizSession) {
	w.mu.Lock()
	w.m[userID] = s
	w.mu.Unlock()
}

func (w *wizardStore) drop(userID int64) {
	w.mu.Lock()
	delete(w.m, userID)
	w.mu.Unlock()
}

// Salary floor options offered on the last step. Zero means "no floor".
var salaryChoices = []int{0, 50000, 100000, 150000, 200000, 300000}

func salaryLabel(v int) string {
	if v == 0 {
		return "Не важно"
	}
	return fmt.Sprintf("от %d ₽", v)
}

var stepTitles = map[wizStep]string{
	stepLocations:    "📩 *[1/4]* Выберите локацию, в которой хотите работать (можно выбрать несколько):",
	stepSpecialities: "📩 *[2/4]* Теперь выберите специальность:",
	stepGrades:       "📩 *[3/4]* Выберите ваш уровень опыта:",
	stepSalary:       "📩 *[4/4]* Укажите минимальную зарплату:",
}

func (a *Adapter) stepChoices(step wizStep) []string {
	switch step {
	case stepLocations:
		return a.catalog.LocationChoices()
	case stepSpecialities:
		return a.catalog.SpecialityChoices()
	case stepGrades:
		return a.catalog.GradeChoices()
	}
	return nil
}

// selectMarkup renders one multi-select step: one button per option
// (⚪ marks selected), then finish/clear rows and a back row on every
// step but the first.
func (a *Adapter) selectMarkup(step wizStep, selected []string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	var rows []tele.Row

	choices := a.stepChoices(step)
	for i, option := range choices {
		text := option
		if contains(selected, option) {
			text = "⚪ " + option
		}
		rows = append(rows, rm.Row(tele.Btn{Text: text, Data: fmt.Sprintf("set:%s:%d", step.key(), i)}))
	}
	rows = append(rows, rm.Row(tele.Btn{Text: "✅ Завершить выбор", Data: "set:" + step.key() + ":finish"}))
	rows = append(rows, rm.Row(tele.Btn{Text: "🗑 Очистить выбор", Data: "set:" + step.key() + ":clear"}))
	if step != stepLocations {
		rows = append(rows, rm.Row(tele.Btn{Text: "⬅️ Назад", Data: "set:" + step.key() + ":back"}))
	}
	rm.Inline(rows...)
	return rm
}

func (a *Adapter) salaryMarkup() *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, v := range salaryChoices {
		rows = append(rows, rm.Row(tele.Btn{Text: salaryLabel(v), Data: fmt.Sprintf("set:salary:%d", v)}))
	}
	rows = append(rows, rm.Row(tele.Btn{Text: "⬅️ Назад", Data: "set:salary:back"}))
	rm.Inline(rows...)
	return rm
}

func (a *Adapter) handleSettings(c tele.Context) error {
	userID := c.Sender().ID
	if err := a.store.EnsureUser(context.Background(), userID); err != nil {
		a.log.Error("user registration failed", logx.Int64("user", userID), logx.Err(err))
		return c.Send("Что-то пошло не так, попробуйте позже.")
	}

	a.wiz.put(userID, &wizSession{step: stepLocations})
	a.log.Info("settings wizard started", logx.Int64("user", userID))

	return c.Send(
		stepTitles[stepLocations],
		&tele.SendOptions{ParseMode: tele.ModeMarkdown},
		a.selectMarkup(stepLocations, nil),
	)
}

func (a *Adapter) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	data := strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f")
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != "set" {
		return c.Respond(&tele.CallbackResponse{})
	}

	userID := c.Sender().ID
	sess := a.wiz.get(userID)
	if sess == nil {
		return c.Respond(&tele.CallbackResponse{Text: "Настройка не начата — нажмите /settings"})
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	// Ignore stale buttons from a previous step's message.
	if parts[1] != sess.step.key() {
		return c.Respond(&tele.CallbackResponse{})
	}

	if sess.step == stepSalary {
		return a.salaryChosen(c, sess, parts[2])
	}
	return a.optionChosen(c, sess, parts[2])
}

func (a *Adapter) optionChosen(c tele.Context, sess *wizSession, arg string) error {
	userID := c.Sender().ID
	selected := sess.selected(sess.step)

	switch arg {
	case "clear":
		*selected = nil
		if err := c.Edit(stepTitles[sess.step], &tele.SendOptions{ParseMode: tele.ModeMarkdown}, a.selectMarkup(sess.step, nil)); err != nil {
			return err
		}
		return c.Respond(&tele.CallbackResponse{Text: "🚮 Выбор очищен."})

	case "back":
		sess.step--
		return a.showStep(c, sess)

	case "finish":
		if len(*selected) == 0 {
			return c.Respond(&tele.CallbackResponse{Text: "❌ Нужно выбрать хотя бы один вариант!"})
		}
		sess.step++
		return a.showStep(c, sess)
	}

	idx, err := strconv.Atoi(arg)
	choices := a.stepChoices(sess.step)
	if err != nil || idx < 0 || idx >= len(choices) {
		return c.Respond(&tele.CallbackResponse{})
	}
	option := choices[idx]
	if contains(*selected, option) {
		*selected = remove(*selected, option)
	} else {
		*selected = append(*selected, option)
	}
	a.log.Debug("wizard option toggled", logx.Int64("user", userID), logx.String("option", option))

	if err := c.Edit(stepTitles[sess.step], &tele.SendOptions{ParseMode: tele.ModeMarkdown}, a.selectMarkup(sess.step, *selected)); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (a *Adapter) showStep(c tele.Context, sess *wizSession) error {
	var rm *tele.ReplyMarkup
	if sess.step == stepSalary {
		rm = a.salaryMarkup()
	} else {
		rm = a.selectMarkup(sess.step, *sess.selected(sess.step))
	}
	if err := c.Edit(stepTitles[sess.step], &tele.SendOptions{ParseMode: tele.ModeMarkdown}, rm); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (a *Adapter) salaryChosen(c tele.Context, sess *wizSession, arg string) error {
	userID := c.Sender().ID

	if arg == "back" {
		sess.step = stepGrades
		return a.showStep(c, sess)
	}

	salary, err := strconv.Atoi(arg)
	if err != nil || salary < 0 {
		return c.Respond(&tele.CallbackResponse{})
	}

	if err := a.savePreferences(context.Background(), userID, sess, salary); err != nil {
		a.log.Error("saving preferences failed", logx.Int64("user", userID), logx.Err(err))
		return c.Respond(&tele.CallbackResponse{Text: "Не удалось сохранить настройки, попробуйте позже."})
	}
	a.wiz.drop(userID)
	a.log.Info("settings saved",
		logx.Int64("user", userID),
		logx.Int("locations", len(sess.locations)),
		logx.Int("specialities", len(sess.specialities)),
		logx.Int("grades", len(sess.grades)),
		logx.Int("salary", salary))

	if err := c.Edit(
		"✅ *Настройки сохранены!*\n\nБот начнёт присылать подходящие вакансии в ближайшее время.",
		&tele.SendOptions{ParseMode: tele.ModeMarkdown},
	); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

// savePreferences replaces all four categories in one pass. Each
// category is delete-then-reinsert; there is no partial patching.
func (a *Adapter) savePreferences(ctx context.Context, userID int64, sess *wizSession, salary int) error {
	if err := a.store.ReplaceLocations(ctx, userID, sess.locations); err != nil {
		return err
	}
	if err := a.store.ReplaceSpecialities(ctx, userID, sess.specialities); err != nil {
		return err
	}
	if err := a.store.ReplaceGrades(ctx, userID, sess.grades); err != nil {
		return err
	}
	return a.store.SetSalary(ctx, userID, salary)
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func remove(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
