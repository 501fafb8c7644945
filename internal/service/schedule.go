package service

import (
	"time"

	"ajo/internal/domain"
	"ajo/internal/models"
)

// addPeriods advances t by n group periods. Monthly steps use calendar months.
func addPeriods(t time.Time, frequency string, n int) time.Time {
	switch frequency {
	case domain.FrequencyDaily:
		return t.AddDate(0, 0, n)
	case domain.FrequencyWeekly:
		return t.AddDate(0, 0, 7*n)
	case domain.FrequencyMonthly:
		return t.AddDate(0, n, 0)
	}
	return t
}

func ValidFrequency(f string) bool {
	return f == domain.FrequencyDaily || f == domain.FrequencyWeekly || f == domain.FrequencyMonthly
}

// NextContributionDate is the date the current slot is paid out: startDate + frequency*currentSlot.
func NextContributionDate(g *models.AjoGroup) time.Time {
	return addPeriods(g.StartDate, g.Frequency, g.CurrentSlot)
}

// NextPayoutDate is one period after the next contribution date.
func NextPayoutDate(g *models.AjoGroup) time.Time {
	return addPeriods(g.StartDate, g.Frequency, g.CurrentSlot+1)
}

// IsPayoutDay reports whether now falls on the group's due date, compared as calendar days in loc.
func IsPayoutDay(g *models.AjoGroup, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	return sameDay(NextContributionDate(g).In(loc), now.In(loc))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
