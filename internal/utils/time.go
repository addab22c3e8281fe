package utils

import (
	"time"

	_ "time/tzdata"

	"github.com/go-universal/jalaali"
)

// TehranLoc returns the Tehran time zone location.
func TehranLoc() *time.Location {
	return jalaali.TehranTz()
}

// JalaliDateTime returns a string like "1404/10/09 - 16:40" in Tehran time.
func JalaliDateTime(t time.Time) string {
	j := jalaali.New(t.In(TehranLoc()))
	return j.Format("2006/01/02 - 15:04")
}

// GregorianDateTime returns a string like "2026/10/19 - 10:00" in UTC.
func GregorianDateTime(t time.Time) string {
	return t.UTC().Format("2006/01/02 - 15:04")
}

// FormatDateTime renders t in the named calendar; anything but "jalali" is Gregorian.
func FormatDateTime(calendar string, t time.Time) string {
	if calendar == "jalali" {
		return JalaliDateTime(t)
	}
	return GregorianDateTime(t)
}
