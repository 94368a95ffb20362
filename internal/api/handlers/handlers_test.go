package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangwt/voltrend/backend/internal/aggregate"
	"github.com/zhangwt/voltrend/backend/internal/analytics"
	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/internal/importer"
	"github.com/zhangwt/voltrend/backend/internal/ingest"
	"github.com/zhangwt/voltrend/backend/internal/metadata"
	"github.com/zhangwt/voltrend/backend/internal/recalc"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
	"github.com/zhangwt/voltrend/backend/pkg/redis"
)

// memStore implements the record, summary and job repositories in
// memory for handler tests.
type memStore struct {
	mu        sync.Mutex
	records   map[string][]contracts.TradingRecord
	summaries map[string][]contracts.ConceptDailySummary
	rankings  map[string][]contracts.StockConceptRanking
	jobs      map[string]contracts.ImportJob
}

func newMemStore() *memStore {
	return &memStore{
		records:   make(map[string][]contracts.TradingRecord),
		summaries: make(map[string][]contracts.ConceptDailySummary),
		rankings:  make(map[string][]contracts.StockConceptRanking),
		jobs:      make(map[string]contracts.ImportJob),
	}
}

func key(t time.Time) string { return t.Format(contracts.DateFormat) }

func (m *memStore) ReplaceDay(ctx context.Context, date time.Time, records []contracts.TradingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key(date)] = records
	return nil
}

func (m *memStore) GetByDate(ctx context.Context, date time.Time) ([]contracts.TradingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key(date)], nil
}

func (m *memStore) CountByDate(ctx context.Context, date time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[key(date)]), nil
}

type memSummaries struct{ m *memStore }

func (s memSummaries) ReplaceDay(ctx context.Context, date time.Time, summaries []contracts.ConceptDailySummary, rankings []contracts.StockConceptRanking) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.summaries[key(date)] = summaries
	s.m.rankings[key(date)] = rankings
	return nil
}

func (s memSummaries) GetSummaries(ctx context.Context, date time.Time, filter contracts.SummaryFilter, sort contracts.SummarySort) ([]contracts.ConceptDailySummary, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []contracts.ConceptDailySummary
	for _, sum := range s.m.summaries[key(date)] {
		if filter.ConceptName != "" && sum.ConceptName != filter.ConceptName {
			continue
		}
		if sum.TotalVolume < filter.MinVolume {
			continue
		}
		out = append(out, sum)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s memSummaries) GetSummaryHistory(ctx context.Context, concept string, from, to time.Time) ([]contracts.ConceptDailySummary, error) {
	return nil, nil
}

func (s memSummaries) GetSummariesInWindow(ctx context.Context, from, to time.Time) ([]contracts.ConceptDailySummary, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []contracts.ConceptDailySummary
	for _, day := range s.m.summaries {
		for _, sum := range day {
			if !sum.TradingDate.Before(from) && !sum.TradingDate.After(to) {
				out = append(out, sum)
			}
		}
	}
	return out, nil
}

func (s memSummaries) GetRankings(ctx context.Context, concept string, date time.Time) ([]contracts.StockConceptRanking, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []contracts.StockConceptRanking
	for _, rk := range s.m.rankings[key(date)] {
		if rk.ConceptName == concept {
			out = append(out, rk)
		}
	}
	return out, nil
}

func (s memSummaries) GetStockConcepts(ctx context.Context, stockCode string, date time.Time) ([]contracts.ConceptInfo, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []contracts.ConceptInfo
	for _, rk := range s.m.rankings[key(date)] {
		if rk.StockCode == stockCode {
			out = append(out, contracts.ConceptInfo{
				ConceptName: rk.ConceptName,
				TradingDate: rk.TradingDate,
				Volume:      rk.Volume,
				ConceptRank: rk.ConceptRank,
			})
		}
	}
	return out, nil
}

type memJobs struct{ m *memStore }

func (j memJobs) Save(ctx context.Context, job *contracts.ImportJob) error {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	j.m.jobs[job.ID] = *job
	return nil
}

func (j memJobs) Load(ctx context.Context, jobID string) (*contracts.ImportJob, error) {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	job, ok := j.m.jobs[jobID]
	if !ok {
		return nil, contracts.ErrJobNotFound
	}
	return &job, nil
}

func (j memJobs) ListRecent(ctx context.Context, limit int) ([]*contracts.ImportJob, error) {
	j.m.mu.Lock()
	defer j.m.mu.Unlock()
	var jobs []*contracts.ImportJob
	for id := range j.m.jobs {
		job := j.m.jobs[id]
		jobs = append(jobs, &job)
		if len(jobs) == limit {
			break
		}
	}
	return jobs, nil
}

type testEnv struct {
	store    *memStore
	importH  *ImportHandler
	conceptH *ConceptHandler
	recalcH  *RecalcHandler
	router   *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()
	store := newMemStore()
	summaries := memSummaries{store}
	jobs := memJobs{store}

	resolver := metadata.NewStaticResolver([]contracts.StockMeta{
		{Code: "SH600000", Name: "浦发银行", Concepts: []string{"Banking"}},
		{Code: "SZ000001", Name: "平安银行", Concepts: []string{"Banking"}},
	})
	agg := aggregate.New(resolver, log)
	locks := aggregate.NewDateLocks()
	registry := ingest.NewDefaultRegistry(0.5, log)
	cache := redis.NewCache(&redis.Client{}, "test")
	detector := analytics.NewDetector(summaries, cache, 30, time.Minute, log)

	orch := importer.New(registry, agg, store, summaries, jobs, locks, 1<<20, log)
	controller := recalc.New(store, agg, summaries, detector, locks, log)

	env := &testEnv{
		store:    store,
		importH:  NewImportHandler(orch, 100, redis.NewRateLimiter(&redis.Client{}, "test"), log),
		conceptH: NewConceptHandler(summaries, detector, log),
		recalcH:  NewRecalcHandler(controller, log),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/import", env.importH.StartImport).Methods("POST")
	r.HandleFunc("/api/import/jobs", env.importH.ListJobs).Methods("GET")
	r.HandleFunc("/api/import/{jobID}", env.importH.GetProgress).Methods("GET")
	r.HandleFunc("/api/concepts/summary", env.conceptH.GetSummaries).Methods("GET")
	r.HandleFunc("/api/concepts/highs", env.conceptH.GetInnovationHighs).Methods("GET")
	r.HandleFunc("/api/concepts/{concept}/rankings", env.conceptH.GetRankings).Methods("GET")
	r.HandleFunc("/api/stocks/{code}/concepts", env.conceptH.GetStockConcepts).Methods("GET")
	r.HandleFunc("/api/recalculate", env.recalcH.Recalculate).Methods("POST")
	env.router = r

	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

const dailyFile = "600000\t2024-01-15\t1000000\n000001\t2024-01-15\t2000000\n"

func TestImportAndQueryFlow(t *testing.T) {
	env := newTestEnv(t)

	// Import a small file synchronously
	w := env.do(t, "POST", "/api/import", dailyFile)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var job contracts.ImportJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, contracts.JobCompleted, job.Status)

	// Poll the job
	w = env.do(t, "GET", "/api/import/"+job.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Query that date's summaries
	w = env.do(t, "GET", "/api/concepts/summary?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summaryResp struct {
		Summaries []contracts.ConceptDailySummary `json:"summaries"`
		Count     int                             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaryResp))
	require.Equal(t, 1, summaryResp.Count)
	assert.Equal(t, int64(3000000), summaryResp.Summaries[0].TotalVolume)

	// Concept rankings
	w = env.do(t, "GET", "/api/concepts/Banking/rankings?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rankResp struct {
		Rankings []contracts.StockConceptRanking `json:"rankings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rankResp))
	require.Len(t, rankResp.Rankings, 2)
	assert.Equal(t, "SZ000001", rankResp.Rankings[0].StockCode)

	// Reverse lookup
	w = env.do(t, "GET", "/api/stocks/SH600000/concepts?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stockResp struct {
		Concepts []contracts.ConceptInfo `json:"concepts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stockResp))
	require.Len(t, stockResp.Concepts, 1)
	assert.Equal(t, "Banking", stockResp.Concepts[0].ConceptName)
}

func TestStartImport_UnrecognizedBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/import", "nothing parseable here\n")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetProgress_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/import/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSummaries_BadParams(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/concepts/summary?date=junk", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/concepts/summary?limit=-2", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/concepts/summary?sort=sideways", "").Code)
}

func TestGetInnovationHighs(t *testing.T) {
	env := newTestEnv(t)

	// Two days of history so day two is a detectable high
	for i, text := range []string{
		"600000\t2024-01-15\t1000000\n",
		"600000\t2024-01-16\t2000000\n",
	} {
		w := env.do(t, "POST", "/api/import", text)
		require.Equal(t, http.StatusAccepted, w.Code, "import %d", i)
	}

	w := env.do(t, "GET", "/api/concepts/highs?date=2024-01-16&window=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Highs []contracts.ConceptDailySummary `json:"highs"`
		Count int                             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Banking", resp.Highs[0].ConceptName)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/concepts/highs?window=1", "").Code)
}

func TestRecalculateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/import", dailyFile)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(t, "POST", "/api/recalculate", `{"date":"2024-01-15"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Stats contracts.RecalcStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Stats.ConceptCount)
	assert.Equal(t, 2, resp.Stats.RankingCount)

	// A date with no stored records
	w = env.do(t, "POST", "/api/recalculate", `{"date":"2030-01-01"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "POST", "/api/recalculate", `{"date":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
