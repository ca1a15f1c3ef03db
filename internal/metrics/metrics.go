package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes recorded on MatcherPolls.
const (
	PollOK      = "ok"
	PollSkipped = "skipped"
	PollFailed  = "failed"
)

var (
	MatcherPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agroirrigate_matcher_polls_total",
		Help: "Schedule matcher ticks by outcome",
	}, []string{"result"})

	ScheduleTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agroirrigate_schedule_triggers_total",
		Help: "Schedule edges fired by the matcher",
	}, []string{"edge"})

	ActiveWaterings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agroirrigate_active_waterings",
		Help: "Simulated watering runs currently in flight",
	})

	WaterLiters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agroirrigate_water_liters_total",
		Help: "Liters recorded in the water usage log",
	}, []string{"parcel"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agroirrigate_notifications_total",
		Help: "Notification attempts by channel and result",
	}, []string{"channel", "result"})

	DryParcelAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agroirrigate_dry_parcel_alerts_total",
		Help: "Dry parcel alerts delivered to owners",
	})
)
