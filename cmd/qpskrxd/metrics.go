package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qpskrxd_sessions_active",
		Help: "Websocket decode sessions currently open.",
	})
	metricSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qpskrxd_sessions_total",
		Help: "Websocket decode sessions accepted since start.",
	})
	metricSessionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qpskrxd_sessions_rejected_total",
		Help: "Sessions refused by limits or a bad hello.",
	})
	metricSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qpskrxd_samples_total",
		Help: "Audio samples accepted from clients.",
	})
	metricPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qpskrxd_packets_total",
		Help: "Packets decoded and validated.",
	})
	metricBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qpskrxd_blocks_total",
		Help: "Blocks completed and delivered.",
	})
	metricTransmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qpskrxd_transmissions_total",
		Help: "Transmissions that reached the end marker.",
	})
	metricErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qpskrxd_decode_errors_total",
		Help: "Decode errors by kind.",
	}, []string{"kind"})
)
