package businessflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
)

// ScopeKind selects which leads a statistics query covers
type ScopeKind string

const (
	ScopeGlobal    ScopeKind = "global"
	ScopeForm      ScopeKind = "form"
	ScopeAffiliate ScopeKind = "affiliate"
)

// Scope is resolved by the caller from the identity before any stats call;
// the aggregator itself never looks at roles.
type Scope struct {
	Kind ScopeKind
	ID   uint
}

func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

func FormScope(formID uint) Scope { return Scope{Kind: ScopeForm, ID: formID} }

func AffiliateScope(affiliateID uint) Scope { return Scope{Kind: ScopeAffiliate, ID: affiliateID} }

// Validate rejects unknown kinds and scoped kinds without an ID
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		return nil
	case ScopeForm, ScopeAffiliate:
		if s.ID == 0 {
			return NewValidationError(fmt.Sprintf("%s scope requires an id", s.Kind))
		}
		return nil
	default:
		return NewValidationError(fmt.Sprintf("unknown scope %q", s.Kind))
	}
}

// LeadFilter narrows a lead filter to the scope
func (s Scope) LeadFilter() models.LeadFilter {
	var f models.LeadFilter
	switch s.Kind {
	case ScopeForm:
		f.FormID = utils.ToPtr(s.ID)
	case ScopeAffiliate:
		f.AffiliateID = utils.ToPtr(s.ID)
	}
	return f
}

func (s Scope) String() string {
	if s.Kind == ScopeGlobal || s.Kind == "" {
		return string(ScopeGlobal)
	}
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

// Window names
const (
	WindowToday   = "today"
	WindowWeek    = "week"
	WindowMonth   = "month"
	WindowQuarter = "quarter"
	WindowRange   = "range"
	windowDaysPfx = "days="
)

// Window is a half-open time range [Since, Until)
type Window struct {
	Name  string
	Since time.Time
	Until time.Time
}

// ParseWindow resolves a named window relative to now.
// today, week, month and quarter run from the start of the current calendar period;
// days=N covers today plus the N-1 preceding days.
func ParseWindow(name string, now time.Time, maxDays int) (Window, error) {
	now = now.UTC()
	until := utils.StartOfDay(now).AddDate(0, 0, 1)
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case WindowToday:
		return Window{Name: name, Since: utils.StartOfDay(now), Until: until}, nil
	case WindowWeek:
		return Window{Name: name, Since: utils.StartOfWeek(now), Until: until}, nil
	case WindowMonth:
		return Window{Name: name, Since: utils.StartOfMonth(now), Until: until}, nil
	case WindowQuarter:
		return Window{Name: name, Since: utils.StartOfQuarter(now), Until: until}, nil
	}

	if raw, ok := strings.CutPrefix(name, windowDaysPfx); ok {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			return Window{}, NewValidationError(fmt.Sprintf("invalid window %q", name))
		}
		if maxDays > 0 && days > maxDays {
			return Window{}, NewValidationError(fmt.Sprintf("window exceeds %d days", maxDays))
		}
		return Window{Name: name, Since: until.AddDate(0, 0, -days), Until: until}, nil
	}

	return Window{}, NewValidationError(fmt.Sprintf("unknown window %q", name))
}

// RangeWindow builds an explicit window from two dates (YYYY-MM-DD); to is inclusive
func RangeWindow(from, to string, maxDays int) (Window, error) {
	since, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return Window{}, NewValidationError("from must be YYYY-MM-DD")
	}
	last, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return Window{}, NewValidationError("to must be YYYY-MM-DD")
	}
	until := last.AddDate(0, 0, 1)
	if !until.After(since) {
		return Window{}, NewValidationError("to must not be before from")
	}
	w := Window{Name: WindowRange, Since: since.UTC(), Until: until.UTC()}
	if maxDays > 0 && w.Days() > maxDays {
		return Window{}, NewValidationError(fmt.Sprintf("window exceeds %d days", maxDays))
	}
	return w, nil
}

// Previous is the window of equal length that ends where w starts
func (w Window) Previous() Window {
	d := w.Until.Sub(w.Since)
	return Window{Name: "previous_" + w.Name, Since: w.Since.Add(-d), Until: w.Since}
}

// Days is the number of calendar days the window touches
func (w Window) Days() int {
	days := int((w.Until.Sub(w.Since) + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

// StatsQuery is the common input of the aggregator
type StatsQuery struct {
	Scope     Scope
	Since     *time.Time
	Until     *time.Time
	Status    *models.LeadStatus
	UTMSource *string
}

// InWindow returns a copy of q bounded by w
func (q StatsQuery) InWindow(w Window) StatsQuery {
	since, until := w.Since, w.Until
	q.Since = &since
	q.Until = &until
	return q
}

// LeadFilter translates the query into a repository filter
func (q StatsQuery) LeadFilter() models.LeadFilter {
	f := q.Scope.LeadFilter()
	f.CreatedAfter = q.Since
	f.CreatedBefore = q.Until
	f.Status = q.Status
	if q.UTMSource != nil && *q.UTMSource != "" {
		f.UTMSource = q.UTMSource
	}
	return f
}

func (q StatsQuery) cacheKey(parts ...string) string {
	b := strings.Builder{}
	b.WriteString(q.Scope.String())
	if q.Since != nil {
		b.WriteString("|" + q.Since.UTC().Format(time.RFC3339))
	}
	if q.Until != nil {
		b.WriteString("|" + q.Until.UTC().Format(time.RFC3339))
	}
	if q.Status != nil {
		b.WriteString("|s=" + string(*q.Status))
	}
	if q.UTMSource != nil {
		b.WriteString("|u=" + *q.UTMSource)
	}
	for _, p := range parts {
		b.WriteString("|" + p)
	}
	return b.String()
}
