package market

import "time"

// ISTLocation is the exchange timezone. The standard library ships the zone
// data on most platforms; fall back to a fixed offset if the database is missing.
var ISTLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}()

// NextWeeklyExpiry returns the upcoming Thursday expiry for the given time.
// On a Thursday after the 15:00 session wind-down it rolls to the following week.
func NextWeeklyExpiry(now time.Time) time.Time {
	now = now.In(ISTLocation)
	daysAhead := (int(time.Thursday) - int(now.Weekday()) + 7) % 7
	if daysAhead == 0 && now.Hour() >= 15 {
		daysAhead = 7
	}
	expiry := now.AddDate(0, 0, daysAhead)
	return time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 15, 30, 0, 0, ISTLocation)
}

// MonthlyExpiry returns the last Thursday of the month containing t.
func MonthlyExpiry(t time.Time) time.Time {
	t = t.In(ISTLocation)
	lastDay := time.Date(t.Year(), t.Month(), 1, 15, 30, 0, 0, ISTLocation).AddDate(0, 1, -1)
	back := (int(lastDay.Weekday()) - int(time.Thursday) + 7) % 7
	return lastDay.AddDate(0, 0, -back)
}

// DaysToExpiry returns whole days between now and expiry, never negative.
func DaysToExpiry(now, expiry time.Time) int {
	d := int(expiry.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// InSessionHours reports whether t falls inside the 09:15-15:30 IST cash session
// on a weekday.
func InSessionHours(t time.Time) bool {
	t = t.In(ISTLocation)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60+15 && mins <= 15*60+30
}
