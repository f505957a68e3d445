// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaze_frames_published_total",
			Help: "Frames published into the frame slot",
		},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaze_frames_dropped_total",
			Help: "Frames overwritten before the consumer took them",
		},
	)

	CaptureErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaze_capture_errors_total",
			Help: "Failed reads from the capture source",
		},
	)

	Ticks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gaze_ticks_total",
			Help: "Processing loop ticks by outcome",
		},
		[]string{"outcome"},
	)

	EstimationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaze_estimation_failures_total",
			Help: "Estimates that fell back to the sentinel center point",
		},
	)

	LandmarkErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gaze_landmark_errors_total",
			Help: "Landmark provider errors other than no face",
		},
	)

	Confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gaze_confirmations_total",
			Help: "Selections confirmed and dispatched",
		},
		[]string{"label"},
	)

	Suppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gaze_confirmations_suppressed_total",
			Help: "Stable selections rejected by the cooldown gate",
		},
		[]string{"label"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gaze_sink_errors_total",
			Help: "Errors returned by render and announcement sinks",
		},
		[]string{"sink"},
	)

	GazeX = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gaze_smoothed_x",
			Help: "Smoothed normalized gaze x",
		},
	)

	GazeY = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gaze_smoothed_y",
			Help: "Smoothed normalized gaze y",
		},
	)
)
