package http

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/middleware"
)

func init() {
	prometheus.MustRegister(promResponseDurationMilliseconds, promDecodeErrorsTotal)
}

var promResponseDurationMilliseconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bdecode_http_response_duration_milliseconds",
		Help:    "The duration of time it takes to receive and write a response to an API request",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	},
	[]string{"action", "error"},
)

var promDecodeErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bdecode_decode_errors_total",
		Help: "The number of uploaded documents that were not valid bencode",
	},
	[]string{"kind"},
)

// recordResponseDuration records the duration of time to respond to a
// request in milliseconds.
func recordResponseDuration(action string, err error, duration time.Duration) {
	var errString string
	if err != nil {
		if middleware.IsClientError(err) {
			errString = "client error"
		} else {
			errString = "internal error"
		}
	}

	promResponseDurationMilliseconds.
		WithLabelValues(action, errString).
		Observe(float64(duration.Nanoseconds()) / float64(time.Millisecond))
}

// recordDecodeError counts err when it was caused by invalid bencode.
func recordDecodeError(err error) {
	switch {
	case errors.Is(err, bencode.ErrMalformedInput):
		promDecodeErrorsTotal.WithLabelValues("malformed").Inc()
	case errors.Is(err, bencode.ErrOutOfBounds):
		promDecodeErrorsTotal.WithLabelValues("out_of_bounds").Inc()
	}
}
