// Package metrics exposes survey intake counters to Prometheus.
package metrics

import (
	"net/http"

	"censo/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Compile-time contract assertion.
var _ service.SurveyMetrics = (*Metrics)(nil)

// Metrics holds the survey counters registered on one registry.
type Metrics struct {
	SurveysCreated     prometheus.Counter
	MembersCreated     *prometheus.CounterVec
	MembersSkipped     prometheus.Counter
	DuplicatesRejected prometheus.Counter
	DraftTransitions   *prometheus.CounterVec
	SurveysDeleted     prometheus.Counter
}

// NewRegistry creates the application registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// New creates and registers all survey metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SurveysCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "censo_surveys_created_total",
			Help: "Total number of surveys stored as new families",
		}),
		MembersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "censo_members_created_total",
			Help: "Total number of family members stored, by kind",
		}, []string{"kind"}),
		MembersSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "censo_members_skipped_total",
			Help: "Total number of members skipped because their insert failed",
		}),
		DuplicatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "censo_duplicate_families_rejected_total",
			Help: "Total number of surveys rejected as duplicate households",
		}),
		DraftTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "censo_draft_transitions_total",
			Help: "Total number of survey draft status transitions, by target status",
		}, []string{"status"}),
		SurveysDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "censo_surveys_deleted_total",
			Help: "Total number of surveys deleted",
		}),
	}
}

// SurveyCreated records one stored survey and its member outcome.
func (m *Metrics) SurveyCreated(membersCreated, deceasedCreated, skipped int) {
	m.SurveysCreated.Inc()
	m.MembersCreated.WithLabelValues("living").Add(float64(membersCreated))
	m.MembersCreated.WithLabelValues("deceased").Add(float64(deceasedCreated))
	m.MembersSkipped.Add(float64(skipped))
}

// DuplicateRejected records a duplicate household rejection.
func (m *Metrics) DuplicateRejected() {
	m.DuplicatesRejected.Inc()
}

// DraftTransition records a draft entering status.
func (m *Metrics) DraftTransition(status string) {
	m.DraftTransitions.WithLabelValues(status).Inc()
}

// SurveyDeleted records a survey deletion.
func (m *Metrics) SurveyDeleted() {
	m.SurveysDeleted.Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Module provides the metrics FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(
		NewRegistry,
		fx.Annotate(
			func(reg *prometheus.Registry) *Metrics { return New(reg) },
			fx.As(new(service.SurveyMetrics)),
		),
	),
)
