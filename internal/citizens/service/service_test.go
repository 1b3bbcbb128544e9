package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"census/internal/citizens/metrics"
	"census/internal/citizens/models"
	"census/internal/citizens/store"
	"census/internal/citizens/validation"
	dErrors "census/pkg/domain-errors"
	"census/pkg/platform/audit"
	"census/pkg/platform/audit/publisher"
	auditmemory "census/pkg/platform/audit/store/memory"
	"census/pkg/requestcontext"
)

var fixedNow = time.Date(2019, time.August, 20, 10, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	audit   *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.service = New(s.store,
		WithMetrics(s.metrics),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithClock(func() time.Time { return fixedNow }),
		WithValidationWorkers(3),
	)
}

func record(t *testing.T, doc string) validation.Record {
	t.Helper()
	var rec validation.Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return rec
}

func citizenRecord(t *testing.T, id int64, birth string, relatives ...int64) validation.Record {
	t.Helper()
	rel, _ := json.Marshal(append([]int64{}, relatives...))
	return record(t, fmt.Sprintf(`{
		"citizen_id": %d, "town": "Москва", "street": "Льва Толстого", "building": "16к7стр5",
		"apartment": 7, "name": "Иванов Иван Иванович", "birth_date": %q,
		"gender": "male", "relatives": %s
	}`, id, birth, rel))
}

// seed imports 1<->2 and an unrelated 3.
func (s *ServiceSuite) seed() int64 {
	t := s.T()
	id, err := s.service.ImportCitizens(context.Background(), []validation.Record{
		citizenRecord(t, 1, "26.12.1986", 2),
		citizenRecord(t, 2, "01.04.1997", 1),
		citizenRecord(t, 3, "23.11.1986"),
	})
	s.Require().NoError(err)
	return id
}

func (s *ServiceSuite) assertSymmetric(importID int64) {
	citizens, err := s.store.ListCitizens(context.Background(), importID)
	s.Require().NoError(err)
	byID := make(map[int64]models.Citizen, len(citizens))
	for _, c := range citizens {
		byID[c.ID] = c
	}
	for _, c := range citizens {
		for _, r := range c.Relatives {
			s.True(byID[r].HasRelative(c.ID), "%d lists %d but not the other way round", c.ID, r)
		}
	}
}

func (s *ServiceSuite) relativesOf(importID, citizenID int64) []int64 {
	c, err := s.store.GetCitizen(context.Background(), importID, citizenID)
	s.Require().NoError(err)
	return c.Relatives
}

func (s *ServiceSuite) TestImportAssignsSequentialIDs() {
	for want := int64(1); want <= 3; want++ {
		s.Equal(want, s.seed())
	}
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.ImportsCreated))
	s.Equal(float64(9), testutil.ToFloat64(s.metrics.CitizensImported))
}

func (s *ServiceSuite) TestImportRoundTrip() {
	id := s.seed()

	citizens, err := s.service.ListCitizens(context.Background(), id)
	s.Require().NoError(err)
	s.Require().Len(citizens, 3)
	s.Equal(int64(1), citizens[0].ID)
	s.Equal(models.NewDate(1986, time.December, 26), citizens[0].BirthDate)
	s.Equal([]int64{2}, citizens[0].Relatives)
	s.Equal([]int64{}, citizens[2].Relatives)
}

func (s *ServiceSuite) TestImportRejectsAsymmetricBatchWithoutWriting() {
	t := s.T()
	_, err := s.service.ImportCitizens(context.Background(), []validation.Record{
		citizenRecord(t, 1, "26.12.1986", 2),
		citizenRecord(t, 2, "01.04.1997"),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeStructural), "got %v", err)

	_, err = s.service.ListCitizens(context.Background(), 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ImportsRejected.WithLabelValues(string(dErrors.CodeStructural))))
}

func (s *ServiceSuite) TestImportAcceptsDirectedTriangle() {
	t := s.T()
	id, err := s.service.ImportCitizens(context.Background(), []validation.Record{
		citizenRecord(t, 1, "01.01.1990", 2),
		citizenRecord(t, 2, "01.01.1990", 3),
		citizenRecord(t, 3, "01.01.1990", 1),
	})
	s.Require().NoError(err)
	s.Equal(int64(1), id)
}

func (s *ServiceSuite) TestImportRejectsFutureBirthDate() {
	_, err := s.service.ImportCitizens(context.Background(), []validation.Record{
		citizenRecord(s.T(), 1, "21.08.2019"),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(validation.FieldBirthDate, dErrors.FieldOf(err))
}

func (s *ServiceSuite) TestImportEmitsAuditEvent() {
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	id, err := s.service.ImportCitizens(ctx, []validation.Record{citizenRecord(s.T(), 1, "01.01.1990")})
	s.Require().NoError(err)

	events, err := s.audit.ListByImport(context.Background(), id)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionImportCreated, events[0].Action)
	s.Equal(1, events[0].Citizens)
	s.Equal("req-1", events[0].RequestID)
}

func (s *ServiceSuite) TestPatchScalarFields() {
	id := s.seed()

	got, err := s.service.PatchCitizen(context.Background(), id, 2, record(s.T(), `{"name": "Иванова Мария Леонидовна", "town": "Керчь"}`))
	s.Require().NoError(err)
	s.Equal("Иванова Мария Леонидовна", got.Name)
	s.Equal("Керчь", got.Town)
	s.Equal([]int64{1}, got.Relatives)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Patches.WithLabelValues(patchApplied)))
}

func (s *ServiceSuite) TestPatchRelativesKeepsRelationSymmetric() {
	id := s.seed()

	got, err := s.service.PatchCitizen(context.Background(), id, 1, record(s.T(), `{"relatives": [3]}`))
	s.Require().NoError(err)
	s.Equal([]int64{3}, got.Relatives)
	s.Equal([]int64{}, s.relativesOf(id, 2))
	s.Equal([]int64{1}, s.relativesOf(id, 3))
	s.assertSymmetric(id)

	events, err := s.audit.ListByImport(context.Background(), id)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionCitizenPatched, events[1].Action)
	s.Equal(2, events[1].EdgesChanged)
	s.Equal(int64(1), *events[1].CitizenID)
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.EdgesChanged))
}

func (s *ServiceSuite) TestPatchClearsRelatives() {
	id := s.seed()

	got, err := s.service.PatchCitizen(context.Background(), id, 2, record(s.T(), `{"relatives": []}`))
	s.Require().NoError(err)
	s.Empty(got.Relatives)
	s.Equal([]int64{}, s.relativesOf(id, 1))
}

func (s *ServiceSuite) TestPatchCollapsesDuplicateRelatives() {
	id := s.seed()

	got, err := s.service.PatchCitizen(context.Background(), id, 3, record(s.T(), `{"relatives": [1, 1, 2]}`))
	s.Require().NoError(err)
	s.Equal([]int64{1, 2}, got.Relatives)
	s.ElementsMatch([]int64{2, 3}, s.relativesOf(id, 1))
	s.ElementsMatch([]int64{1, 3}, s.relativesOf(id, 2))
	s.assertSymmetric(id)
}

func (s *ServiceSuite) TestPatchRejects() {
	id := s.seed()

	cases := []struct {
		name      string
		importID  int64
		citizenID int64
		body      string
		code      dErrors.Code
	}{
		{"self relative", id, 1, `{"relatives": [1]}`, dErrors.CodeStructural},
		{"unknown relative", id, 1, `{"relatives": [42]}`, dErrors.CodeStructural},
		{"unknown citizen", id, 42, `{"name": "x"}`, dErrors.CodeNotFound},
		{"unknown import", 99, 1, `{"name": "x"}`, dErrors.CodeNotFound},
		{"citizen id", id, 1, `{"citizen_id": 5}`, dErrors.CodeValidation},
		{"null field", id, 1, `{"town": null}`, dErrors.CodeValidation},
		{"empty", id, 1, `{}`, dErrors.CodeMalformed},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.PatchCitizen(context.Background(), tc.importID, tc.citizenID, record(s.T(), tc.body))
			s.Require().Error(err)
			s.Equal(tc.code, dErrors.CodeOf(err), err.Error())
		})
	}

	s.Equal([]int64{2}, s.relativesOf(id, 1))
	s.Equal(float64(len(cases)), testutil.ToFloat64(s.metrics.Patches.WithLabelValues(patchRejected)))
}

func (s *ServiceSuite) TestConcurrentPatchesKeepRelationSymmetric() {
	t := s.T()
	records := make([]validation.Record, 0, 8)
	for i := int64(1); i <= 8; i++ {
		records = append(records, citizenRecord(t, i, "01.01.1990"))
	}
	id, err := s.service.ImportCitizens(context.Background(), records)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := int64(1); i <= 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := int64(0); round < 10; round++ {
				a := (i+round)%8 + 1
				b := (i+round+3)%8 + 1
				rel := []int64{}
				for _, r := range []int64{a, b} {
					if r != i {
						rel = append(rel, r)
					}
				}
				body, _ := json.Marshal(map[string][]int64{"relatives": rel})
				_, err := s.service.PatchCitizen(context.Background(), id, i, record(t, string(body)))
				s.NoError(err)
			}
		}()
	}
	wg.Wait()

	s.assertSymmetric(id)
}

type txStore struct {
	*store.InMemory
	mu  sync.Mutex
	txs int
}

func (s *txStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.txs++
	s.mu.Unlock()
	return fn(ctx)
}

func (s *ServiceSuite) TestPatchRunsInsideTransaction() {
	st := &txStore{InMemory: store.NewInMemory()}
	svc := New(st, WithClock(func() time.Time { return fixedNow }))
	id, err := svc.ImportCitizens(context.Background(), []validation.Record{
		citizenRecord(s.T(), 1, "01.01.1990"),
		citizenRecord(s.T(), 2, "01.01.1990"),
	})
	s.Require().NoError(err)

	_, err = svc.PatchCitizen(context.Background(), id, 1, record(s.T(), `{"relatives": [2]}`))
	s.Require().NoError(err)
	s.Equal(1, st.txs)
	s.Equal([]int64{1}, s.mustRelatives(st, id, 2))
}

func (s *ServiceSuite) mustRelatives(st Store, importID, citizenID int64) []int64 {
	c, err := st.GetCitizen(context.Background(), importID, citizenID)
	s.Require().NoError(err)
	return c.Relatives
}

func (s *ServiceSuite) TestBirthdays() {
	id := s.seed()

	report, err := s.service.Birthdays(context.Background(), id)
	s.Require().NoError(err)
	s.Len(report, 12)
	s.Equal([]models.Presents{{CitizenID: 1, Presents: 1}}, report["4"])
	s.Equal([]models.Presents{{CitizenID: 2, Presents: 1}}, report["12"])
	s.Equal([]models.Presents{}, report["11"])
}

func (s *ServiceSuite) TestTownAgePercentiles() {
	t := s.T()
	id, err := s.service.ImportCitizens(context.Background(), []validation.Record{
		citizenRecord(t, 1, "26.12.1986"),
		citizenRecord(t, 2, "01.04.1997"),
	})
	s.Require().NoError(err)

	stats, err := s.service.TownAgePercentiles(context.Background(), id)
	s.Require().NoError(err)
	s.Equal([]models.TownAgeStats{{Town: "Москва", P50: 27, P75: 29.5, P99: 31.9}}, stats)
}

func (s *ServiceSuite) TestTownAgePercentilesUsesRequestTime() {
	id, err := s.service.ImportCitizens(context.Background(), []validation.Record{
		citizenRecord(s.T(), 1, "26.12.1986"),
	})
	s.Require().NoError(err)

	ctx := requestcontext.WithTime(context.Background(), time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	stats, err := s.service.TownAgePercentiles(ctx, id)
	s.Require().NoError(err)
	s.Require().Len(stats, 1)
	s.Equal(float64(33), stats[0].P50)
}

func (s *ServiceSuite) TestReportsOnUnknownImport() {
	_, err := s.service.Birthdays(context.Background(), 7)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.TownAgePercentiles(context.Background(), 7)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.ListCitizens(context.Background(), 7)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
