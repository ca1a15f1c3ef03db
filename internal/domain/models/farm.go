package models

import (
	"errors"
	"time"
)

// ErrParcelNotFound is returned by stores when a parcel reference does not resolve.
var ErrParcelNotFound = errors.New("parcel not found")

// ErrScheduleNotFound is returned when an irrigation schedule id does not exist.
var ErrScheduleNotFound = errors.New("schedule not found")

// ErrUserNotFound is returned when a user id does not exist.
var ErrUserNotFound = errors.New("user not found")

// DryHumidityThreshold is the humidity at or below which a parcel is reported as dehydrated.
const DryHumidityThreshold = 35

// Parcel is a plot of land whose soil humidity is tracked and irrigated.
type Parcel struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	UserID   int64   `json:"user_id"`
	Humidity float64 `json:"humidity"`
}

// Dehydrated reports whether the parcel needs watering according to the dashboard rule.
func (p Parcel) Dehydrated() bool {
	return p.Humidity <= DryHumidityThreshold
}

// DryParcel is a parcel joined with the contact data of its owner.
type DryParcel struct {
	Parcel
	OwnerName  string
	OwnerEmail string
	OwnerPhone string
}

// HumidityReading is a single soil-humidity sample.
type HumidityReading struct {
	ID       int64     `json:"id"`
	Reading  int       `json:"lectura"`
	Date     time.Time `json:"fecha"`
	Location string    `json:"ubicacion"`
	ParcelID *int64    `json:"parcela_id,omitempty"`
}

// WaterUsageRecord is one immutable water consumption entry.
type WaterUsageRecord struct {
	ID         int64     `json:"id"`
	ParcelID   int64     `json:"parcela_id"`
	ParcelName string    `json:"parcela_nombre"`
	Liters     float64   `json:"litros"`
	Timestamp  time.Time `json:"fecha"`
}

// UsageFilter narrows usage queries to an inclusive range of calendar days.
// Empty values leave the corresponding side open.
type UsageFilter struct {
	From string
	To   string
}

// Contact is the notification-relevant part of a user account.
type Contact struct {
	UserID int64  `json:"id"`
	Name   string `json:"nombre_usuario"`
	Email  string `json:"correo,omitempty"`
	Phone  string `json:"telefono,omitempty"`
}
