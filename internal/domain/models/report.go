package models

import (
	"errors"
	"time"
)

// ErrReportNotFound is returned when no snapshot exists for a date.
var ErrReportNotFound = errors.New("daily report not found")

// UsageSummary aggregates water usage for one group (a day or a parcel).
type UsageSummary struct {
	Key           string  `bson:"key" json:"key"`
	TotalLiters   float64 `bson:"total_liters" json:"total_litros"`
	AverageLiters float64 `bson:"average_liters" json:"promedio_litros"`
	PeakLiters    float64 `bson:"peak_liters" json:"pico_litros"`
	Count         int     `bson:"count" json:"registros"`
}

// DailyUsageReport represents the aggregated daily water usage stored in MongoDB.
type DailyUsageReport struct {
	Date        string         `bson:"date" json:"date"`
	TotalLiters float64        `bson:"total_liters" json:"total_liters"`
	Parcels     []UsageSummary `bson:"parcels" json:"parcels"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
}
