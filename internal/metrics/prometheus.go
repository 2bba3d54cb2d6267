package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EstimationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_estimator_estimation_duration_seconds",
			Help:    "Estimation pipeline duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"status"},
	)

	EstimationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_estimator_estimations_total",
			Help: "Total number of estimations processed",
		},
		[]string{"status"},
	)

	MissingFeatureColumns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_estimator_missing_feature_columns_total",
			Help: "Expected model columns substituted with 0 because the form did not provide them",
		},
		[]string{"category", "column"},
	)

	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_estimator_request_errors_total",
			Help: "Failed estimation requests by error code",
		},
		[]string{"code"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_estimator_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_estimator_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ReferenceCities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "price_estimator_reference_cities",
			Help: "Number of cities in the loaded reference table",
		},
	)

	ErrorSamples = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "price_estimator_error_samples",
			Help: "Size of the stored out-of-sample error distributions",
		},
		[]string{"category", "kind"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(EstimationDuration)
		prometheus.MustRegister(EstimationsTotal)
		prometheus.MustRegister(MissingFeatureColumns)
		prometheus.MustRegister(RequestErrors)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(ReferenceCities)
		prometheus.MustRegister(ErrorSamples)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
