package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Calendar names accepted on a time axis.
const (
	CalendarStandard           = "standard"
	CalendarGregorian          = "gregorian"
	CalendarProlepticGregorian = "proleptic_gregorian"
)

// unixEpochJD is the Julian Day of 1970-01-01T00:00:00Z.
const unixEpochJD = 2440587.5

var unitsPattern = regexp.MustCompile(`(?i)^\s*([a-z]+)\s+since\s+(\d{1,4})-(\d{1,2})-(\d{1,2})` +
	`(?:[T ]\s*(\d{1,2}):(\d{1,2})(?::(\d{1,2}(?:\.\d*)?))?)?` +
	`\s*(Z|UTC|GMT|[+-]\d{1,2}(?::?\d{2})?)?\s*$`)

var unitSeconds = map[string]float64{
	"second": 1, "seconds": 1, "sec": 1, "secs": 1, "s": 1,
	"minute": 60, "minutes": 60, "min": 60, "mins": 60,
	"hour": 3600, "hours": 3600, "hr": 3600, "hrs": 3600, "h": 3600,
	"day": 86400, "days": 86400, "d": 86400,
}

// TimeUnits is a decoded "<unit> since <reference>" descriptor.
type TimeUnits struct {
	Raw       string
	Seconds   float64   // Length of one unit in seconds.
	Reference time.Time // Reference instant in UTC.
}

// ParseTimeUnits parses a numeric time units descriptor as used by
// scientific gridded datasets. An empty calendar means "standard", which uses
// the Julian calendar for reference dates before 1582-10-15.
func ParseTimeUnits(units, calendar string) (TimeUnits, error) {
	cal := strings.ToLower(strings.TrimSpace(calendar))
	switch cal {
	case "", CalendarStandard, CalendarGregorian, CalendarProlepticGregorian:
	default:
		return TimeUnits{}, &TimeDecodeError{Units: units, Reason: "unsupported calendar " + strconv.Quote(calendar)}
	}

	m := unitsPattern.FindStringSubmatch(units)
	if m == nil {
		return TimeUnits{}, &TimeDecodeError{Units: units, Reason: `expected "<unit> since <date>"`}
	}
	secs, ok := unitSeconds[strings.ToLower(m[1])]
	if !ok {
		return TimeUnits{}, &TimeDecodeError{Units: units, Reason: "unknown unit " + strconv.Quote(m[1])}
	}

	year, _ := strconv.Atoi(m[2])
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	julianDate := cal != CalendarProlepticGregorian && beforeGregorianReform(year, month, day)
	if !validDate(year, month, day, julianDate) || (cal != CalendarProlepticGregorian && inReformGap(year, month, day)) {
		return TimeUnits{}, &TimeDecodeError{Units: units, Reason: "invalid reference date"}
	}

	var clock time.Duration
	if m[5] != "" {
		hh, _ := strconv.Atoi(m[5])
		mm, _ := strconv.Atoi(m[6])
		var ss float64
		if m[7] != "" {
			ss, _ = strconv.ParseFloat(m[7], 64)
		}
		if hh > 23 || mm > 59 || ss >= 61 {
			return TimeUnits{}, &TimeDecodeError{Units: units, Reason: "invalid reference time"}
		}
		clock = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss*float64(time.Second))
	}

	offset, err := parseZoneOffset(m[8])
	if err != nil {
		return TimeUnits{}, &TimeDecodeError{Units: units, Reason: err.Error()}
	}

	var midnight time.Time
	if julianDate {
		jd := julian.CalendarJulianToJD(year, month, float64(day))
		days := int(math.Round(jd - unixEpochJD))
		midnight = time.Unix(0, 0).UTC().AddDate(0, 0, days)
	} else {
		midnight = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}

	return TimeUnits{
		Raw:       units,
		Seconds:   secs,
		Reference: midnight.Add(clock - offset),
	}, nil
}

// Decode converts a raw axis value into a UTC instant. Large offsets (e.g.
// days since year 1) are split into whole days to stay within time.Duration.
func (u TimeUnits) Decode(v float64) time.Time {
	total := v * u.Seconds
	days := math.Floor(total / 86400)
	rem := total - days*86400
	t := u.Reference.AddDate(0, 0, int(days)).Add(time.Duration(rem * float64(time.Second)))
	return t.Round(time.Millisecond)
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// validDate reports whether the day exists in the Julian or Gregorian calendar.
func validDate(y, m, d int, julianCal bool) bool {
	if m < 1 || m > 12 || d < 1 {
		return false
	}
	n := monthDays[m-1]
	leap := julian.LeapYearGregorian(y)
	if julianCal {
		leap = julian.LeapYearJulian(y)
	}
	if m == 2 && leap {
		n++
	}
	return d <= n
}

// inReformGap reports the ten days dropped by the 1582 reform.
func inReformGap(y, m, d int) bool {
	return y == 1582 && m == 10 && d >= 5 && d < 15
}

func beforeGregorianReform(y, m, d int) bool {
	if y != 1582 {
		return y < 1582
	}
	if m != 10 {
		return m < 10
	}
	return d < 15
}

func parseZoneOffset(s string) (time.Duration, error) {
	switch strings.ToUpper(s) {
	case "", "Z", "UTC", "GMT":
		return 0, nil
	}
	sign := time.Duration(1)
	if s[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(s[1:], ":", "")
	var hh, mm int
	var err error
	switch len(body) {
	case 1, 2:
		hh, err = strconv.Atoi(body)
	case 3, 4:
		hh, err = strconv.Atoi(body[:len(body)-2])
		if err == nil {
			mm, err = strconv.Atoi(body[len(body)-2:])
		}
	default:
		return 0, &strconv.NumError{Func: "parseZoneOffset", Num: s, Err: strconv.ErrSyntax}
	}
	if err != nil {
		return 0, err
	}
	return sign * (time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute), nil
}
