package dateutil

import (
	"time"
)

// Age calculates the age at a given date
func Age(birthDate, atDate time.Time) int {
	age := atDate.Year() - birthDate.Year()
	if atDate.Month() < birthDate.Month() ||
		(atDate.Month() == birthDate.Month() && atDate.Day() < birthDate.Day()) {
		age--
	}
	return age
}

// AgeAtYearEnd calculates the age a person reaches by December 31 of a calendar year.
// Benefit eligibility and RMD rules key off the age attained during the year, not the
// age on January 1.
func AgeAtYearEnd(birthDate time.Time, year int) int {
	return year - birthDate.Year()
}

// FullRetirementAge calculates the Social Security Full Retirement Age based on birth year
func FullRetirementAge(birthDate time.Time) int {
	birthYear := birthDate.Year()

	switch {
	case birthYear <= 1937:
		return 65
	case birthYear >= 1938 && birthYear <= 1942:
		return 65 // plus 2-10 months, rounded down
	case birthYear >= 1943 && birthYear <= 1954:
		return 66
	case birthYear >= 1955 && birthYear <= 1959:
		return 66 // plus 2-10 months, rounded down
	default: // 1960 and later
		return 67
	}
}

// GetRMDAge returns the age when required minimum distributions start for a given
// birth year (SECURE 2.0 Act schedule).
func GetRMDAge(birthYear int) int {
	switch {
	case birthYear <= 1950:
		return 72
	case birthYear >= 1951 && birthYear <= 1959:
		return 73
	default: // 1960 and later
		return 75
	}
}

// EarliestClaimAge is the earliest age retirement benefits may be claimed.
const EarliestClaimAge = 62

// LatestClaimAge is the age past which delayed retirement credits stop accruing.
const LatestClaimAge = 70
