// Package timezone keeps every timestamp the service produces in one
// configured location (APP_TIMEZONE, IANA names such as "UTC" or
// "Asia/Bangkok"), and provides date-only helpers for stay dates.
//
//	now := timezone.Now()
//	start, err := timezone.ParseDate("2024-06-01")
//	timezone.FormatDate(start) // "2024-06-01"
package timezone
