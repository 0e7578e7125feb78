package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FirstYear is the earliest year offered by the entry form.
const FirstYear = 2020

// MonthNames are the month labels used in stored period strings.
var MonthNames = []string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Period is a budget month. Its string form is "<year>-<month-name>".
type Period struct {
	Year  int
	Month int // 1-12
}

func NewPeriod(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Year < 1900 || p.Year > 3000 {
		return &ValidationError{Field: "year", Msg: "некорректный год"}
	}
	if p.Month < 1 || p.Month > 12 {
		return &ValidationError{Field: "month", Msg: "некорректный месяц"}
	}
	return nil
}

func (p Period) String() string {
	if p.Month < 1 || p.Month > 12 {
		return strconv.Itoa(p.Year)
	}
	return fmt.Sprintf("%d-%s", p.Year, MonthNames[p.Month-1])
}

// ParsePeriod parses the "<year>-<month-name>" form.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	year, name, ok := strings.Cut(s, "-")
	if !ok {
		return Period{}, fmt.Errorf("period %q: missing separator", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, fmt.Errorf("period %q: bad year: %w", s, err)
	}
	m := MonthIndex(name)
	if m == 0 {
		return Period{}, fmt.Errorf("period %q: unknown month %q", s, name)
	}
	return Period{Year: y, Month: m}, nil
}

// MonthIndex returns the 1-based month for a month name, or 0.
func MonthIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, n := range MonthNames {
		if strings.EqualFold(n, name) {
			return i + 1
		}
	}
	return 0
}

// Years lists the selectable years up to the year after now.
func Years(now time.Time) []int {
	var out []int
	for y := FirstYear; y <= now.Year()+1; y++ {
		out = append(out, y)
	}
	return out
}
