package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"growth-dashboard/internal/config"
)

// Quarter is a calendar quarter, Q in 1..4.
type Quarter struct {
	Year int
	Q    int
}

func ParseQuarter(s string) (Quarter, error) {
	year, q, err := config.ParseQuarter(s)
	if err != nil {
		return Quarter{}, err
	}
	return Quarter{Year: year, Q: q}, nil
}

// QuarterOfMonth returns the quarter containing a YYYY-MM month key.
func QuarterOfMonth(month string) (Quarter, error) {
	year, mm, ok := strings.Cut(month, "-")
	if !ok {
		return Quarter{}, fmt.Errorf("month %q must look like 2025-07", month)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Quarter{}, fmt.Errorf("month %q: bad year", month)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 1 || m > 12 {
		return Quarter{}, fmt.Errorf("month %q: month must be 01-12", month)
	}
	return Quarter{Year: y, Q: (m-1)/3 + 1}, nil
}

// Months lists the three YYYY-MM keys of the quarter in order.
func (q Quarter) Months() []string {
	first := (q.Q-1)*3 + 1
	return []string{
		fmt.Sprintf("%04d-%02d", q.Year, first),
		fmt.Sprintf("%04d-%02d", q.Year, first+1),
		fmt.Sprintf("%04d-%02d", q.Year, first+2),
	}
}

func (q Quarter) Previous() Quarter {
	if q.Q == 1 {
		return Quarter{Year: q.Year - 1, Q: 4}
	}
	return Quarter{Year: q.Year, Q: q.Q - 1}
}

func (q Quarter) IsZero() bool {
	return q.Year == 0 && q.Q == 0
}

func (q Quarter) String() string {
	return fmt.Sprintf("Q%d %d", q.Q, q.Year)
}

// shortLabel drops the year when it matches ref's.
func (q Quarter) shortLabel(ref Quarter) string {
	if q.Year == ref.Year {
		return fmt.Sprintf("Q%d", q.Q)
	}
	return q.String()
}
