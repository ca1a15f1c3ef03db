package models

import "time"

// OutboundMessageRequest represents requests to send a WhatsApp message.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// Notification is a user-facing message delivered by the alert dispatcher.
type Notification struct {
	Subject string
	Message string
}

// WateringState is the lifecycle stage reported for a simulated watering run.
type WateringState string

const (
	WateringStarted   WateringState = "started"
	WateringFinished  WateringState = "finished"
	WateringCancelled WateringState = "cancelled"
)

// WateringEvent is published whenever a simulated valve changes state.
type WateringEvent struct {
	ParcelID   int64         `json:"parcelId"`
	ParcelName string        `json:"parcelName"`
	ScheduleID int64         `json:"scheduleId,omitempty"`
	State      WateringState `json:"state"`
	Liters     float64       `json:"liters"`
	At         time.Time     `json:"at"`
}
