package store

type Setting struct {
	Key   string
	Value string
}

// DayTotal is the cached "seconds tracked" figure for one calendar day.
type DayTotal struct {
	Day     string // 2006-01-02
	Seconds int64
}
