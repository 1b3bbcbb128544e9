package handler_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"census/internal/citizens/handler"
	"census/internal/citizens/models"
	"census/internal/citizens/service"
	"census/internal/citizens/store"
	"census/internal/platform/middleware"
	"census/pkg/platform/middleware/requesttime"
	"census/pkg/testutil"
)

var requestTime = time.Date(2019, time.August, 20, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemory()
	svc := service.New(st, service.WithLogger(logger))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(requesttime.MiddlewareWithClock(func() time.Time { return requestTime }))
	r.Use(middleware.Recoverer(logger))
	handler.New(svc, logger, 0).Register(r)
	r.Method(http.MethodGet, "/health", handler.NewHealth(st, "memory", logger))
	return r
}

type citizenDoc struct {
	CitizenID int64   `json:"citizen_id"`
	Town      string  `json:"town"`
	Street    string  `json:"street"`
	Building  string  `json:"building"`
	Apartment int64   `json:"apartment"`
	Name      string  `json:"name"`
	BirthDate string  `json:"birth_date"`
	Gender    string  `json:"gender"`
	Relatives []int64 `json:"relatives"`
}

func sampleImport() map[string]any {
	return map[string]any{"citizens": []citizenDoc{
		{1, "Москва", "Льва Толстого", "16к7стр5", 7, "Иванов Иван Иванович", "26.12.1986", "male", []int64{2}},
		{2, "Москва", "Льва Толстого", "16к7стр5", 7, "Иванов Сергей Иванович", "01.04.1997", "male", []int64{1}},
		{3, "Керчь", "Иосифа Бродского", "2", 11, "Романова Мария Леонидовна", "23.11.1986", "female", []int64{}},
	}}
}

func postImport(t *testing.T, srv http.Handler, body any) int64 {
	t.Helper()
	rr := testutil.DoRequest(srv, testutil.NewJSONRequest(t, http.MethodPost, "/imports", body))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.UnmarshalData[models.ImportCreated](t, rr).ImportID
}

func listCitizens(t *testing.T, srv http.Handler, importID int64) []citizenDoc {
	t.Helper()
	rr := testutil.DoRequest(srv, testutil.NewJSONRequest(t, http.MethodGet, fmt.Sprintf("/imports/%d/citizens", importID), nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	return testutil.UnmarshalData[[]citizenDoc](t, rr)
}

func TestImportLifecycle(t *testing.T) {
	srv := newServer(t)

	testutil.Given(t, "an import of three citizens", func(t *testing.T) {
		importID := postImport(t, srv, sampleImport())
		require.Equal(t, int64(1), importID)

		testutil.Then(t, "listing returns them sorted by id with normalised dates", func(t *testing.T) {
			citizens := listCitizens(t, srv, importID)
			require.Len(t, citizens, 3)
			assert.Equal(t, []int64{1, 2, 3}, []int64{citizens[0].CitizenID, citizens[1].CitizenID, citizens[2].CitizenID})
			assert.Equal(t, "01.04.1997", citizens[1].BirthDate)
		})

		testutil.Then(t, "the gift report credits each side of the pair once", func(t *testing.T) {
			rr := testutil.DoRequest(srv, testutil.NewJSONRequest(t, http.MethodGet, "/imports/1/citizens/birthdays", nil))
			testutil.AssertStatus(t, rr, http.StatusOK)
			report := testutil.UnmarshalData[map[string][]models.Presents](t, rr)
			assert.Len(t, report, 12)
			assert.Equal(t, []models.Presents{{CitizenID: 1, Presents: 1}}, report["4"])
			assert.Equal(t, []models.Presents{{CitizenID: 2, Presents: 1}}, report["12"])
			assert.Empty(t, report["11"])
		})

		testutil.And(t, "age percentiles are computed per town at request time", func(t *testing.T) {
			rr := testutil.DoRequest(srv, testutil.NewJSONRequest(t, http.MethodGet, "/imports/1/towns/stat/percentile/age", nil))
			testutil.AssertStatus(t, rr, http.StatusOK)
			assert.Equal(t, []models.TownAgeStats{
				{Town: "Москва", P50: 27, P75: 29.5, P99: 31.9},
				{Town: "Керчь", P50: 32, P75: 32, P99: 32},
			}, testutil.UnmarshalData[[]models.TownAgeStats](t, rr))
		})

		testutil.When(t, "citizen 3 takes citizen 1 as a relative", func(t *testing.T) {
			rr := testutil.DoRequest(srv, testutil.NewRequestWithBody(http.MethodPatch, "/imports/1/citizens/3",
				`{"relatives": [1], "street": "Иосифа Бродского", "name": "Иванова Мария Леонидовна"}`))
			testutil.AssertStatus(t, rr, http.StatusOK)
			patched := testutil.UnmarshalData[citizenDoc](t, rr)
			assert.Equal(t, "Иванова Мария Леонидовна", patched.Name)
			assert.Equal(t, []int64{1}, patched.Relatives)

			testutil.Then(t, "citizen 1 lists citizen 3 back", func(t *testing.T) {
				citizens := listCitizens(t, srv, importID)
				assert.ElementsMatch(t, []int64{2, 3}, citizens[0].Relatives)
				assert.Equal(t, []int64{1}, citizens[1].Relatives)
			})
		})
	})

	testutil.Given(t, "a second import", func(t *testing.T) {
		testutil.Then(t, "it gets the next id", func(t *testing.T) {
			assert.Equal(t, int64(2), postImport(t, srv, sampleImport()))
		})
	})
}

func TestImportAcceptsDirectedTriangle(t *testing.T) {
	srv := newServer(t)
	body := map[string]any{"citizens": []citizenDoc{
		{1, "A", "s", "b", 1, "n", "01.01.1990", "male", []int64{2}},
		{2, "A", "s", "b", 1, "n", "01.01.1990", "male", []int64{3}},
		{3, "A", "s", "b", 1, "n", "01.01.1990", "male", []int64{1}},
	}}
	assert.Equal(t, int64(1), postImport(t, srv, body))
}

func TestRejectedRequestsAreBadRequest(t *testing.T) {
	srv := newServer(t)
	postImport(t, srv, sampleImport())

	cases := map[string]*http.Request{
		"self relative at import": testutil.NewRequestWithBody(http.MethodPost, "/imports", `{"citizens": [
			{"citizen_id": 1, "town": "A", "street": "s", "building": "b", "apartment": 1, "name": "n",
			 "birth_date": "01.01.1990", "gender": "male", "relatives": [1]}]}`),
		"unknown relative at import": testutil.NewRequestWithBody(http.MethodPost, "/imports", `{"citizens": [
			{"citizen_id": 1, "town": "A", "street": "s", "building": "b", "apartment": 1, "name": "n",
			 "birth_date": "01.01.1990", "gender": "male", "relatives": [7]}]}`),
		"empty import":              testutil.NewRequestWithBody(http.MethodPost, "/imports", `{"citizens": []}`),
		"self relative at patch":    testutil.NewRequestWithBody(http.MethodPatch, "/imports/1/citizens/1", `{"relatives": [1]}`),
		"unknown relative at patch": testutil.NewRequestWithBody(http.MethodPatch, "/imports/1/citizens/1", `{"relatives": [9]}`),
		"patch changes id":          testutil.NewRequestWithBody(http.MethodPatch, "/imports/1/citizens/1", `{"citizen_id": 4}`),
		"empty patch":               testutil.NewRequestWithBody(http.MethodPatch, "/imports/1/citizens/1", `{}`),
		"unknown import":            testutil.NewRequestWithBody(http.MethodGet, "/imports/9/citizens", ""),
		"import id not a number":    testutil.NewRequestWithBody(http.MethodGet, "/imports/x/citizens/birthdays", ""),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertBadRequest(t, testutil.DoRequest(srv, req))
		})
	}

	citizens := listCitizens(t, srv, 1)
	assert.Equal(t, []int64{2}, citizens[0].Relatives, "rejected patches leave the relation untouched")
}

func TestHealthEndpoint(t *testing.T) {
	srv := newServer(t)
	rr := testutil.DoRequest(srv, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
}
