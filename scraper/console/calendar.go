package console

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"owner-revenue-scraper/browser"
	"owner-revenue-scraper/models"
	"owner-revenue-scraper/services"
	"owner-revenue-scraper/utils"
)

// DefaultCalendarSteps bounds how many previous-month clicks a single
// reconciliation may spend.
const DefaultCalendarSteps = 18

type monthName struct {
	key   string
	month time.Month
}

// monthNames holds Spanish and English month names and abbreviations,
// longest first so "septiembre" wins over "sep" and "mar " over nothing.
var monthNames = func() []monthName {
	table := map[string]time.Month{
		"ene": time.January, "enero": time.January,
		"feb": time.February, "febrero": time.February,
		"mar ": time.March, "marzo": time.March,
		"abr": time.April, "abril": time.April, "apr": time.April,
		"may": time.May, "mayo": time.May,
		"jun": time.June, "junio": time.June,
		"jul": time.July, "julio": time.July,
		"ago": time.August, "agosto": time.August,
		"sep": time.September, "sept": time.September, "set": time.September, "septiembre": time.September,
		"oct": time.October, "octubre": time.October,
		"nov": time.November, "noviembre": time.November,
		"dic": time.December, "diciembre": time.December, "dec": time.December,
		"jan": time.January, "january": time.January,
		"february": time.February,
		"march":    time.March,
		"april":    time.April,
		"june":     time.June,
		"july":     time.July,
		"aug":      time.August, "august": time.August,
		"september": time.September,
		"october":   time.October,
		"november":  time.November,
		"december":  time.December,
	}
	names := make([]monthName, 0, len(table))
	for k, m := range table {
		names = append(names, monthName{key: k, month: m})
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i].key) != len(names[j].key) {
			return len(names[i].key) > len(names[j].key)
		}
		return names[i].key < names[j].key
	})
	return names
}()

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// ParseMonthHeader reads the month and year shown in a calendar header such
// as "Febrero 2024", "feb. 2024" or "Dec 2023". ok is false when either part
// is missing.
func ParseMonthHeader(text string) (models.TargetMonth, bool) {
	// dots become spaces so "mar." reads as "mar "; the trailing space lets
	// "mar " match a header that ends in "mar"
	lower := strings.ToLower(services.NormaliseText(strings.ReplaceAll(text, ".", " "))) + " "

	var month time.Month
	for _, n := range monthNames {
		if strings.Contains(lower, n.key) {
			month = n.month
			break
		}
	}
	if month == 0 {
		return models.TargetMonth{}, false
	}

	m := yearPattern.FindStringSubmatch(lower)
	if m == nil {
		return models.TargetMonth{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return models.TargetMonth{}, false
	}
	return models.TargetMonth{Year: year, Month: month}, true
}

// Reconciler steps a month-calendar widget backwards until it shows the
// target month.
type Reconciler struct {
	sel          Selectors
	logger       *utils.Logger
	MaxSteps     int
	ClickTimeout time.Duration
	IdleTimeout  time.Duration
	SettleDelay  time.Duration
}

func NewReconciler(sel Selectors, logger *utils.Logger) *Reconciler {
	return &Reconciler{
		sel:          sel,
		logger:       logger,
		MaxSteps:     DefaultCalendarSteps,
		ClickTimeout: 8 * time.Second,
		IdleTimeout:  5 * time.Second,
		SettleDelay:  300 * time.Millisecond,
	}
}

// Displayed returns the month the header currently shows.
func (r *Reconciler) Displayed(ctx context.Context, p browser.Page) (models.TargetMonth, string, bool) {
	text, found := lookupText(ctx, p, browser.Query(r.sel.MonthHeader).First(), r.logger)
	if !found {
		return models.TargetMonth{}, "", false
	}
	m, ok := ParseMonthHeader(text)
	return m, text, ok
}

// EnsureMonth clicks the previous-month control until the header shows
// target, spending at most MaxSteps clicks. It reports whether the target
// was reached; failure is never an error.
func (r *Reconciler) EnsureMonth(ctx context.Context, p browser.Page, target models.TargetMonth) bool {
	prev := browser.Query(r.sel.PrevMonthBtn).First()

	var header string
	for step := 0; step < r.MaxSteps; step++ {
		if ctx.Err() != nil {
			return false
		}
		shown, text, ok := r.Displayed(ctx, p)
		if text != "" {
			header = text
		}
		if ok && shown == target {
			if step > 0 {
				r.logger.Debug("[calendar] reached %s after %d step(s)", target, step)
			}
			return true
		}

		tryClick(ctx, p, prev, r.ClickTimeout, r.logger)
		if err := settle(ctx, p, r.IdleTimeout, r.SettleDelay); err != nil {
			return false
		}
	}

	r.logger.Debug("[calendar] gave up on %s after %d steps, header %q", target, r.MaxSteps, header)
	return false
}
