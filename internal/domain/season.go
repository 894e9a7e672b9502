package domain

import "fmt"

// Season identifies one of the four seasonal prediction grids.
type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
)

// Seasons returns the four seasons in calendar order.
func Seasons() []Season {
	return []Season{Winter, Spring, Summer, Autumn}
}

// ParseSeason validates a season name.
func ParseSeason(s string) (Season, error) {
	switch Season(s) {
	case Winter, Spring, Summer, Autumn:
		return Season(s), nil
	default:
		return "", fmt.Errorf("unknown season %q", s)
	}
}

// SeasonOfMonth maps a calendar month (1-12) to its meteorological season
// in the northern hemisphere.
func SeasonOfMonth(month int) Season {
	switch month {
	case 12, 1, 2:
		return Winter
	case 3, 4, 5:
		return Spring
	case 6, 7, 8:
		return Summer
	default:
		return Autumn
	}
}
