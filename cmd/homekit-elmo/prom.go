package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var armStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_elmo",
	Subsystem: "alarm",
	Name:      "state",
	Help:      "HomeKit security system state (0 home, 1 away, 2 night, 3 disarmed)",
})

var sectorArmedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "homekit_elmo",
	Subsystem: "alarm",
	Name:      "sector_armed",
	Help:      "",
}, []string{"name"})

var activeAlertsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_elmo",
	Subsystem: "alarm",
	Name:      "active_alerts",
	Help:      "",
})

var openGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "homekit_elmo",
	Subsystem: "alarm",
	Name:      "open",
	Help:      "",
}, []string{"name"})

var excludedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "homekit_elmo",
	Subsystem: "alarm",
	Name:      "excluded",
	Help:      "",
}, []string{"name"})

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homekit_elmo",
	Subsystem: "alarm",
	Name:      "commands_total",
	Help:      "",
}, []string{"command", "result"})

var requestCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "homekit_elmo",
	Subsystem: "client",
	Name:      "requests_total",
	Help:      "",
})

var requestErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "homekit_elmo",
	Subsystem: "client",
	Name:      "request_errors_total",
	Help:      "",
})
