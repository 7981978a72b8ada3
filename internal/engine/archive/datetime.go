package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"modpack/internal/core/errors"
)

// DateTime is the six-field timestamp stamped on every archive record.
type DateTime struct {
	Year, Month, Day, Hour, Minute, Second int
}

// Now captures the current UTC time once, to the second.
func Now() DateTime {
	return FromTime(time.Now().UTC())
}

func FromTime(t time.Time) DateTime {
	t = t.UTC()
	return DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// ParseDateTime accepts either six comma separated integers
// ("2024,1,31,12,0,0") or an RFC 3339 / "2006-01-02 15:04:05" timestamp.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateTime{}, errors.New(errors.CodeValidationError, "empty date_time")
	}

	if strings.Contains(s, ",") {
		fields := strings.Split(s, ",")
		if len(fields) != 6 {
			return DateTime{}, errors.New(errors.CodeValidationError, fmt.Sprintf("date_time %q must have six fields", s))
		}
		var v [6]int
		for i, f := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return DateTime{}, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("date_time %q field %d", s, i+1))
			}
			v[i] = n
		}
		dt := DateTime{Year: v[0], Month: v[1], Day: v[2], Hour: v[3], Minute: v[4], Second: v[5]}
		return dt, dt.Validate()
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			dt := FromTime(t)
			return dt, dt.Validate()
		}
	}
	return DateTime{}, errors.New(errors.CodeValidationError, fmt.Sprintf("unrecognized date_time %q", s))
}

// Validate checks the fields form a real date inside the zip (MS-DOS) range.
func (d DateTime) Validate() error {
	if d.Year < 1980 || d.Year > 2107 {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("date_time year %d outside 1980-2107", d.Year))
	}
	t := d.Time()
	if t.Month() != time.Month(d.Month) || t.Day() != d.Day || t.Hour() != d.Hour || t.Minute() != d.Minute || t.Second() != d.Second {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("invalid date_time %s", d))
	}
	return nil
}

func (d DateTime) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}
