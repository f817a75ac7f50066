package ocr

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/symptom-dx-server/internal/domain"
)

// newMethodBreaker creates the circuit breaker guarding one OCR method. While
// open, the method fails immediately.
func newMethodBreaker(method string, cfg domain.BreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.8
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        method,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// ErrMethodDisabled never trips the breaker
			return err == nil || err == ErrMethodDisabled
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"method": name,
				"from":   from.String(),
				"to":     to.String(),
			}).Warn("OCR circuit breaker state changed")
		},
	})
}
