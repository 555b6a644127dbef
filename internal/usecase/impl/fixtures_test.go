package impl

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"censo/config"
	"censo/internal/domain/catalog"
	"censo/internal/domain/service"
	"censo/internal/infra/autosave"
	"censo/internal/infra/export"
	"censo/internal/infra/persistence/memory"
	"censo/internal/infra/qrcode"
	"censo/internal/usecase"

	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSurveyEvent(ctx context.Context, event *service.SurveyEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

// publishedTypes lists the event types the publisher received, in order.
func (m *mockPublisher) publishedTypes() []string {
	var types []string
	for _, call := range m.Calls {
		if call.Method != "PublishSurveyEvent" {
			continue
		}
		types = append(types, call.Arguments.Get(1).(*service.SurveyEvent).EventType)
	}

	return types
}

type recordingMetrics struct {
	mu          sync.Mutex
	created     int
	duplicates  int
	deleted     int
	transitions []string
}

func (m *recordingMetrics) SurveyCreated(_, _, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) DuplicateRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates++
}

func (m *recordingMetrics) DraftTransition(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, status)
}

func (m *recordingMetrics) SurveyDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted++
}

type surveyFixtures struct {
	store     *memory.Store
	surveys   usecase.SurveyUsecase
	drafts    usecase.DraftUsecase
	audit     usecase.AuditUsecase
	publisher *mockPublisher
	metrics   *recordingMetrics
	autoSave  *autosave.MemoryStore
}

func newTestSurveyConfig(totalStages int) *config.Config {
	return &config.Config{
		Survey: config.SurveyConfig{
			TotalStages:         totalStages,
			IdentityMaxAttempts: 10,
			DefaultPageSize:     20,
			MaxPageSize:         100,
			ExportMaxRows:       1000,
		},
	}
}

func createTestServices(t *testing.T, totalStages int, opts ...memory.Option) *surveyFixtures {
	t.Helper()

	store := memory.NewStore(opts...)
	publisher := &mockPublisher{}
	publisher.On("PublishSurveyEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	metrics := &recordingMetrics{}
	autoSave := autosave.NewMemoryStore(time.Hour, nil)
	cfg := newTestSurveyConfig(totalStages)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &surveyFixtures{
		store: store,
		surveys: NewSurveyService(SurveyServiceParams{
			TxManager: store,
			Publisher: publisher,
			QRCode:    qrcode.NewQRCodeService(256, "M"),
			Exporter:  export.NewExcelExporter(),
			Metrics:   metrics,
			Config:    cfg,
			Logger:    logger,
		}),
		drafts: NewDraftService(DraftServiceParams{
			TxManager: store,
			AutoSave:  autoSave,
			Publisher: publisher,
			Metrics:   metrics,
			Config:    cfg,
			Logger:    logger,
		}),
		audit: NewAuditService(AuditServiceParams{
			TxManager: store,
			Logger:    logger,
		}),
		publisher: publisher,
		metrics:   metrics,
		autoSave:  autoSave,
	}
}

func rawDate(s string) json.RawMessage {
	return json.RawMessage(`"` + s + `"`)
}

func newSurveyInput(surname string) *usecase.SurveyInput {
	return &usecase.SurveyInput{
		Family: usecase.FamilyInput{
			Surname:     surname,
			Address:     "Vereda La Esperanza, casa 4",
			Phone:       "3104567890",
			HousingType: "Casa",
		},
		Disposal: catalog.DisposalFlags{Collection: true, Recycling: true},
		Water:    catalog.WaterFlags{Aqueduct: true},
		Members: []usecase.MemberInput{
			{
				FirstName:            "María",
				FirstSurname:         surname,
				BirthDate:            rawDate("1980-05-17"),
				IdentificationType:   "CC",
				IdentificationNumber: "52123456",
				Sex:                  "Femenino",
				CivilStatus:          "casada",
			},
			{
				FirstName:    "Juan",
				FirstSurname: surname,
				BirthDate:    rawDate("2010-11-02"),
				Sex:          "m",
			},
		},
		Deceased: []usecase.DeceasedInput{
			{
				FirstName:    "Pedro",
				FirstSurname: surname,
				Sex:          "Masculino",
				Anniversary:  rawDate("2019-03-08"),
				WasFather:    true,
			},
		},
		Observations: "Familia receptiva",
	}
}
