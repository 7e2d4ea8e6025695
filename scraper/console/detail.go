package console

import (
	"context"

	"owner-revenue-scraper/browser"
)

// DetailKind tells where an owner's property list was opened.
type DetailKind int

const (
	// DetailPopup is a new window opened by the preview button.
	DetailPopup DetailKind = iota
	// DetailSamePage means the preview replaced the owners listing.
	DetailSamePage
)

func (k DetailKind) String() string {
	if k == DetailPopup {
		return "popup"
	}
	return "same-page"
}

// DetailContext is the page showing one owner's properties.
type DetailContext struct {
	Kind DetailKind
	Page browser.Page
}

// Release closes a popup. A same-page detail is left for the caller to
// navigate back from.
func (d DetailContext) Release(ctx context.Context) error {
	if d.Kind != DetailPopup || d.Page == nil {
		return nil
	}
	return d.Page.Close(ctx)
}
