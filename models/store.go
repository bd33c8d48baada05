package models

import (
	"fmt"
	"strings"
	"time"
)

// DayHours is one weekday's opening window, times as "15:04" strings.
type DayHours struct {
	IsOpen bool   `json:"isOpen"`
	Open   string `json:"open"`
	Close  string `json:"close"`
}

// OperatingHours maps lowercase three-letter weekday keys ("mon".."sun")
// to that day's window.
type OperatingHours map[string]DayHours

var weekdayKeys = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

// Validate rejects unknown weekday keys and malformed or inverted windows.
func (oh OperatingHours) Validate() error {
	for day, hours := range oh {
		if !weekdayKeys[day] {
			return fmt.Errorf("unknown weekday %q", day)
		}
		if !hours.IsOpen {
			continue
		}
		for _, clock := range []string{hours.Open, hours.Close} {
			if _, err := time.Parse("15:04", clock); err != nil {
				return fmt.Errorf("%s: invalid time %q, want HH:MM", day, clock)
			}
		}
		if hours.Open >= hours.Close {
			return fmt.Errorf("%s: open %q must be before close %q", day, hours.Open, hours.Close)
		}
	}
	return nil
}

type Store struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	OwnerID     uint   `json:"owner_id" gorm:"not null;index"`
	Owner       User   `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"index"`

	Address     Address        `json:"address" gorm:"serializer:json"`
	Coordinates Coordinates    `json:"coordinates" gorm:"serializer:json"`
	// City mirrors Address.City into a plain column for filtering.
	City        string         `json:"city" gorm:"index"`
	Phone       string         `json:"phone"`
	Email       string         `json:"email"`
	LogoURL     string         `json:"logo_url"`
	BannerURL   string         `json:"banner_url"`

	Rating      float64 `json:"rating" gorm:"default:0"`
	ReviewCount int     `json:"review_count" gorm:"default:0"`

	// IsOpen is the owner's manual toggle; OperatingHours gate ordering on
	// top of it.
	IsOpen         bool           `json:"is_open" gorm:"default:true"`
	OperatingHours OperatingHours `json:"operating_hours" gorm:"serializer:json"`

	DeliveryRadiusKm      float64 `json:"delivery_radius_km" gorm:"default:10"`
	DeliveryFee           float64 `json:"delivery_fee" gorm:"default:0"`
	MinimumOrderAmount    float64 `json:"minimum_order_amount" gorm:"default:0"`
	AvgPreparationMinutes int     `json:"avg_preparation_minutes" gorm:"default:30"`

	IsActive   bool `json:"is_active" gorm:"default:true;index"`
	IsVerified bool `json:"is_verified" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpenAt checks the manual toggle plus the operating window for t's
// weekday. A store with no configured hours counts as always open.
func (s *Store) IsOpenAt(t time.Time) bool {
	if !s.IsOpen {
		return false
	}
	if len(s.OperatingHours) == 0 {
		return true
	}
	day := strings.ToLower(t.Weekday().String()[:3])
	hours, ok := s.OperatingHours[day]
	if !ok || !hours.IsOpen {
		return false
	}
	clock := t.Format("15:04")
	return clock >= hours.Open && clock <= hours.Close
}

// ApplyRating folds one new review into the running average.
func (s *Store) ApplyRating(rating int) {
	total := s.Rating*float64(s.ReviewCount) + float64(rating)
	s.ReviewCount++
	s.Rating = total / float64(s.ReviewCount)
}
