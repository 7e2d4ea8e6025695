package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owner-revenue-scraper/models"
	"owner-revenue-scraper/utils"
)

const ownersURL = "https://console.test/owners"

var february = models.TargetMonth{Year: 2024, Month: time.February}

func newTestTraverser() *Traverser {
	sel := testSelectors()
	logger := utils.NewNopLogger()
	return NewTraverser(sel, DefaultTraversalOptions(ownersURL), NewReconciler(sel, logger), logger)
}

func ownersView() *view {
	return &view{
		counts: map[string]int{"row": 2},
		texts: map[string]string{
			"row [0] >> name [0]": "  Ana   Pérez ",
			"row [1] >> name [0]": "Beto",
		},
	}
}

const (
	anaURL     = "https://console.test/owners/1"
	anaLoftURL = "https://console.test/owners/1/loft"
)

// anaViews lists two properties. Selecting the second one shows a detail
// with no nickname element and no revenue inside the label container.
func anaViews() map[string]*view {
	return map[string]*view{
		anaURL: {
			counts: map[string]int{"prop": 2},
			texts: map[string]string{
				"prop [0] >> nick [0]":               "Casa Azul",
				"prop [1]":                           "Loft Centro\nPalermo",
				"label [0]":                          "Ingresos estimados del propietario",
				"label [0] >> xpath=.. >> money [0]": "$1.234,56",
			},
		},
		anaLoftURL: {
			counts: map[string]int{"prop": 2},
			texts: map[string]string{
				"prop [1]":     "Loft Centro\nPalermo",
				"label [0]":    "Ingresos estimados del propietario",
				"anymoney [0]": "US$ 500",
			},
		},
	}
}

func anaPage(shown models.TargetMonth) *fakePage {
	p := newFakePage(anaURL, anaViews())
	p.clickTo = map[string]string{"prop [1]": anaLoftURL}
	p.cal = newFakeCalendar(shown)
	return p
}

func emptyProperties() *view {
	return &view{counts: map[string]int{"prop": 0}}
}

func TestTraverserPopupDetails(t *testing.T) {
	ana := anaPage(february.Next().Next())
	beto := newFakePage("https://console.test/owners/2", map[string]*view{"https://console.test/owners/2": emptyProperties()})
	beto.cal = newFakeCalendar(february)

	page := newFakePage("", map[string]*view{ownersURL: ownersView()})
	page.popups = map[string]*fakePage{
		"row [0] >> btn [0]": ana,
		"row [1] >> btn [0]": beto,
	}

	items, err := newTestTraverser().Run(context.Background(), page, february)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, models.ResultItem{Owner: "Ana Pérez", Nickname: "Casa Azul", Month: february, OwnerRevenue: 1234.56}, items[0])
	assert.Equal(t, models.ResultItem{Owner: "Ana Pérez", Nickname: "Loft Centro", Month: february, OwnerRevenue: 500}, items[1])
	for _, it := range items {
		assert.Equal(t, "2024-02", it.Month.String())
	}

	assert.True(t, ana.closed)
	assert.True(t, beto.closed)
	assert.Equal(t, 2, ana.cal.prevClicks)
	assert.Equal(t, []string{ownersURL}, page.navs)
}

func TestTraverserSamePageDetails(t *testing.T) {
	views := anaViews()
	views[ownersURL] = ownersView()
	views["https://console.test/owners/2"] = emptyProperties()
	page := newFakePage("", views)
	page.clickTo = map[string]string{
		"row [0] >> btn [0]": anaURL,
		"row [1] >> btn [0]": "https://console.test/owners/2",
		"prop [1]":           anaLoftURL,
	}
	page.cal = newFakeCalendar(february)

	items, err := newTestTraverser().Run(context.Background(), page, february)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "Casa Azul", items[0].Nickname)
	assert.Equal(t, "Loft Centro", items[1].Nickname)
	assert.Equal(t, 500.0, items[1].OwnerRevenue)
	assert.False(t, page.closed)
	// the listing is reopened before the second owner
	assert.Equal(t, []string{ownersURL, ownersURL}, page.navs)
}

func TestTraverserStaleSession(t *testing.T) {
	page := newFakePage("", nil)
	page.locations = []string{"https://console.test/login?next=/owners"}

	items, err := newTestTraverser().Run(context.Background(), page, february)

	assert.True(t, errors.Is(err, ErrStaleSession))
	assert.Nil(t, items)
}

func TestTraverserSkipsOwnerWithoutPreview(t *testing.T) {
	ana := anaPage(february)

	page := newFakePage("", map[string]*view{ownersURL: ownersView()})
	page.popups = map[string]*fakePage{"row [0] >> btn [0]": ana}

	items, err := newTestTraverser().Run(context.Background(), page, february)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, page.clickCount("row [1] >> btn [0]"))
}

func TestTraverserRevenueDefaultsToZero(t *testing.T) {
	detail := newFakePage("https://console.test/owners/1", map[string]*view{
		"https://console.test/owners/1": {
			counts: map[string]int{"prop": 1},
			texts:  map[string]string{"prop [0] >> nick [0]": "Sin datos"},
		},
	})
	detail.cal = newFakeCalendar(february)

	page := newFakePage("", map[string]*view{ownersURL: {
		counts: map[string]int{"row": 1},
		texts:  map[string]string{"row [0] >> name [0]": "Ana"},
	}})
	page.popups = map[string]*fakePage{"row [0] >> btn [0]": detail}

	items, err := newTestTraverser().Run(context.Background(), page, february)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0.0, items[0].OwnerRevenue)
}

func TestTraverserLabelsMonthWhenCalendarNeverAligns(t *testing.T) {
	// header is behind the target, stepping back never reaches it
	detail := anaPage(february.Prev())

	page := newFakePage("", map[string]*view{ownersURL: {
		counts: map[string]int{"row": 1},
		texts:  map[string]string{"row [0] >> name [0]": "Ana"},
	}})
	page.popups = map[string]*fakePage{"row [0] >> btn [0]": detail}

	items, err := newTestTraverser().Run(context.Background(), page, february)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, february, it.Month)
	}
}

func TestExhaustScrollStopsAtCap(t *testing.T) {
	tr := newTestTraverser()
	page := newFakePage(ownersURL, nil)
	page.heightFn = func(scrolls int) int64 { return int64(1000 + scrolls*500) }

	n := tr.exhaustScroll(context.Background(), page)

	assert.Equal(t, 20, n)
	assert.Equal(t, 20, page.scrolls)
}

func TestExhaustScrollStopsWhenHeightSettles(t *testing.T) {
	tr := newTestTraverser()
	page := newFakePage(ownersURL, nil)
	page.heightFn = func(scrolls int) int64 {
		if scrolls >= 3 {
			return 4000
		}
		return int64(1000 * (scrolls + 1))
	}

	n := tr.exhaustScroll(context.Background(), page)

	assert.Equal(t, 4, n)
}

func TestLoginPattern(t *testing.T) {
	tr := newTestTraverser()
	for _, u := range []string{
		"https://console.test/login",
		"https://console.test/auth/callback",
		"https://console.test/Sign-In?next=/owners",
	} {
		assert.True(t, tr.opts.LoginPattern.MatchString(u), u)
	}
	for _, u := range []string{
		"https://console.test/owners",
		"https://console.test/authors",
	} {
		assert.False(t, tr.opts.LoginPattern.MatchString(u), u)
	}
}
