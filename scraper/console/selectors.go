package console

import (
	"fmt"
	"sort"
	"strings"
)

// Selectors maps every logical element role of the console to a query
// expression understood by browser.Query.
type Selectors struct {
	OwnerRow           string
	OwnerPreviewBtn    string
	OwnerNameCell      string
	PropertiesTab      string
	PropertyRow        string
	PropertyNickname   string
	MonthHeader        string
	PrevMonthBtn       string
	OwnerRevenueLabel  string
	RevenueInContainer string
	RevenueFallback    string

	EmailInput    string
	PasswordInput string
	SubmitButton  string

	SSOProviderButton string
	SSOProviderText   string
	SSOConsentButton  string
	// SSOAccountChooser may contain {email}, replaced by the login email.
	SSOAccountChooser string
	SSOEmailInput     string
	SSOPasswordInput  string
	SSONextButton     string
}

// DefaultSelectors returns the selectors for the Spanish-language console.
func DefaultSelectors() Selectors {
	return Selectors{
		OwnerRow:           `xpath=//tr[.//button[contains(translate(., 'VISTA PREVIA', 'vista previa'),'vista previa')]]`,
		OwnerPreviewBtn:    `xpath=.//button[contains(translate(., 'VISTA PREVIA', 'vista previa'),'vista previa')]`,
		OwnerNameCell:      `xpath=.//td[1]`,
		PropertiesTab:      `xpath=//a[contains(translate(normalize-space(.), 'MIS PROPIEDADES', 'mis propiedades'), 'mis propiedades')]`,
		PropertyRow:        `css=[data-testid='property-row'], .property-card`,
		PropertyNickname:   `css=.nickname, [data-testid='nickname']`,
		MonthHeader:        `css=[data-testid='month-label'], header .month-label, .calendar-header`,
		PrevMonthBtn:       `css=button[aria-label*='Anterior'], button[aria-label*='Previous'], .btn-prev`,
		OwnerRevenueLabel:  `text=Ingresos estimados del propietario`,
		RevenueInContainer: `xpath=.//*[contains(text(),"$") or contains(text(),"US$")]`,
		RevenueFallback:    `text=/(US\$|\$)\s*-?\d[\d.,]*|\d[\d.,]*\s*(US\$|\$)/`,

		EmailInput:    `css=input[type="email"], input[name="email"], input[name="username"]`,
		PasswordInput: `css=input[type="password"], input[name="password"]`,
		SubmitButton:  `xpath=//button[contains(., 'Ingresar') or contains(., 'Login') or @type='submit']`,

		SSOProviderButton: `xpath=//*[self::button or self::a or @role='button'][contains(translate(normalize-space(.), 'GOOGLE', 'google'), 'google')]`,
		SSOProviderText:   `text=Google`,
		SSOConsentButton:  `xpath=//button[contains(., 'Continue') or contains(., 'Continuar') or contains(., 'Allow') or contains(., 'Permitir')]`,
		SSOAccountChooser: `xpath=//*[@data-identifier='{email}' or @data-email='{email}']`,
		SSOEmailInput:     `css=input[type="email"], input[name="identifier"]`,
		SSOPasswordInput:  `css=input[type="password"], input[name="Passwd"]`,
		SSONextButton:     `css=#identifierNext button, #passwordNext button, #identifierNext, #passwordNext, button[type="submit"]`,
	}
}

func (s *Selectors) byKey() map[string]*string {
	return map[string]*string{
		"ownerRow":           &s.OwnerRow,
		"ownerPreviewBtn":    &s.OwnerPreviewBtn,
		"ownerNameCell":      &s.OwnerNameCell,
		"propertiesTab":      &s.PropertiesTab,
		"propertyRow":        &s.PropertyRow,
		"propertyNickname":   &s.PropertyNickname,
		"monthHeader":        &s.MonthHeader,
		"prevMonthBtn":       &s.PrevMonthBtn,
		"ownerRevenueLabel":  &s.OwnerRevenueLabel,
		"revenueInContainer": &s.RevenueInContainer,
		"revenueFallback":    &s.RevenueFallback,
		"emailInput":         &s.EmailInput,
		"passwordInput":      &s.PasswordInput,
		"submitButton":       &s.SubmitButton,
		"ssoProviderButton":  &s.SSOProviderButton,
		"ssoProviderText":    &s.SSOProviderText,
		"ssoConsentButton":   &s.SSOConsentButton,
		"ssoAccountChooser":  &s.SSOAccountChooser,
		"ssoEmailInput":      &s.SSOEmailInput,
		"ssoPasswordInput":   &s.SSOPasswordInput,
		"ssoNextButton":      &s.SSONextButton,
	}
}

// MergeSelectors applies overrides, keyed by role name, over the defaults.
// Unknown keys and empty values are rejected.
func MergeSelectors(overrides map[string]string) (Selectors, error) {
	sel := DefaultSelectors()
	fields := sel.byKey()

	var unknown []string
	for k, v := range overrides {
		f, ok := fields[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if strings.TrimSpace(v) == "" {
			return sel, fmt.Errorf("selector override %q is empty", k)
		}
		*f = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return sel, fmt.Errorf("unknown selector override(s): %s", strings.Join(unknown, ", "))
	}
	return sel, nil
}

// Roles lists the role names accepted by MergeSelectors.
func Roles() []string {
	var s Selectors
	keys := make([]string, 0, len(s.byKey()))
	for k := range s.byKey() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
