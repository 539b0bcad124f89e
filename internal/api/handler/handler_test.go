package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/outfitly/outfitly/internal/api/handler"
	mw "github.com/outfitly/outfitly/internal/api/middleware"
	"github.com/outfitly/outfitly/internal/closet"
	"github.com/outfitly/outfitly/internal/jobs"
	"github.com/outfitly/outfitly/internal/store"
	"github.com/outfitly/outfitly/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUserID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

// --- mocks ---

type mockStylist struct {
	lastReq models.OutfitRequest
	err     error
}

func (m *mockStylist) Trigger(_ context.Context, req models.OutfitRequest) (*models.Job, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Job{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Status:        models.JobStatusQueued,
		ExpectedCount: req.Count,
	}, nil
}

type mockMirror struct {
	status string
	found  bool
}

func (m *mockMirror) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return m.status, m.found, nil
}

type mockCloset struct {
	addErr    error
	listItems []*models.CandidateItem
	listErr   error
	outcome   *closet.Outcome
	decideErr error
	counts    *models.ClosetCounts
	countsErr error
}

func (m *mockCloset) Add(_ context.Context, userID uuid.UUID, payload models.ItemPayload) (*models.CandidateItem, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &models.CandidateItem{
		ID:      uuid.New(),
		UserID:  userID,
		Status:  models.ItemStatusConsidering,
		Payload: payload,
	}, nil
}

func (m *mockCloset) List(_ context.Context, _ uuid.UUID, status string) ([]*models.CandidateItem, error) {
	switch status {
	case "", models.ItemStatusConsidering, models.ItemStatusPassed:
	default:
		return nil, closet.ErrInvalidStatusFilter
	}
	return m.listItems, m.listErr
}

func (m *mockCloset) Decide(_ context.Context, _ uuid.UUID, _ uuid.UUID, _ string, _ string) (*closet.Outcome, error) {
	return m.outcome, m.decideErr
}

func (m *mockCloset) Counts(_ context.Context, _ uuid.UUID) (*models.ClosetCounts, error) {
	return m.counts, m.countsErr
}

// --- helpers ---

// serve routes the request through a chi router with an authenticated user
// already in context.
func serve(t *testing.T, method, pattern string, h http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := chi.NewRouter()
	r.Method(method, pattern, h)

	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(mw.SetUserID(req.Context(), testUserID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["data"].(map[string]any)
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)["code"].(string)
}

// ========================================
// POST /api/v1/outfits
// ========================================

func TestTrigger_Accepted(t *testing.T) {
	svc := &mockStylist{}
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(svc),
		"/api/v1/outfits", map[string]any{"occasion": "gallery opening", "count": 4})

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := dataBody(t, w)
	assert.NotEmpty(t, data["job_id"])
	assert.Equal(t, models.JobStatusQueued, data["status"])
	assert.Equal(t, float64(4), data["expected_count"])
	assert.Equal(t, testUserID, svc.lastReq.UserID)
	assert.Equal(t, models.ModeOccasion, svc.lastReq.Mode)
}

func TestTrigger_DefaultsCountToThree(t *testing.T) {
	svc := &mockStylist{}
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(svc),
		"/api/v1/outfits", map[string]any{"occasion": "brunch"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 3, svc.lastReq.Count)
}

func TestTrigger_ClampsCountToMax(t *testing.T) {
	svc := &mockStylist{}
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(svc),
		"/api/v1/outfits", map[string]any{"occasion": "brunch", "count": 20})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 6, svc.lastReq.Count)
}

func TestTrigger_RejectsNegativeCount(t *testing.T) {
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(&mockStylist{}),
		"/api/v1/outfits", map[string]any{"occasion": "brunch", "count": -1})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
}

func TestTrigger_OccasionModeRequiresOccasion(t *testing.T) {
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(&mockStylist{}),
		"/api/v1/outfits", map[string]any{"mode": "occasion"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrigger_AnchorModeRequiresValidUUID(t *testing.T) {
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(&mockStylist{}),
		"/api/v1/outfits", map[string]any{"mode": "anchor", "anchor_item_id": "nope"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrigger_InfersAnchorMode(t *testing.T) {
	svc := &mockStylist{}
	anchor := uuid.New()
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(svc),
		"/api/v1/outfits", map[string]any{"anchor_item_id": anchor.String()})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ModeAnchor, svc.lastReq.Mode)
	require.NotNil(t, svc.lastReq.AnchorItemID)
	assert.Equal(t, anchor, *svc.lastReq.AnchorItemID)
}

func TestTrigger_UnknownMode(t *testing.T) {
	w := serve(t, "POST", "/api/v1/outfits", handler.NewTriggerHandler(&mockStylist{}),
		"/api/v1/outfits", map[string]any{"mode": "vibes"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ========================================
// GET /api/v1/outfits/{jobID}
// ========================================

func TestPollJob_ReturnsSnapshot(t *testing.T) {
	ms := jobs.NewMemoryStore()
	job, err := ms.Create(context.Background(), testUserID, 3)
	require.NoError(t, err)
	require.NoError(t, ms.AppendOutfit(context.Background(), job.ID, models.Outfit{Title: "Look 1"}))

	h := handler.NewPollJobHandler(ms, &mockMirror{})
	w := serve(t, "GET", "/api/v1/outfits/{jobID}", h, "/api/v1/outfits/"+job.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, models.JobStatusRunning, data["status"])
	results := data["results"].([]any)
	require.Len(t, results, 1)
}

func TestPollJob_UnknownJob(t *testing.T) {
	h := handler.NewPollJobHandler(jobs.NewMemoryStore(), &mockMirror{})
	w := serve(t, "GET", "/api/v1/outfits/{jobID}", h, "/api/v1/outfits/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestPollJob_ExpiredJobDistinguished(t *testing.T) {
	mirror := &mockMirror{status: models.JobStatusComplete, found: true}
	h := handler.NewPollJobHandler(jobs.NewMemoryStore(), mirror)
	w := serve(t, "GET", "/api/v1/outfits/{jobID}", h, "/api/v1/outfits/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "JOB_EXPIRED", errCode(t, w))
}

func TestPollJob_OtherUsersJobHidden(t *testing.T) {
	ms := jobs.NewMemoryStore()
	job, err := ms.Create(context.Background(), uuid.New(), 3)
	require.NoError(t, err)

	h := handler.NewPollJobHandler(ms, &mockMirror{})
	w := serve(t, "GET", "/api/v1/outfits/{jobID}", h, "/api/v1/outfits/"+job.ID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPollJob_InvalidID(t *testing.T) {
	h := handler.NewPollJobHandler(jobs.NewMemoryStore(), &mockMirror{})
	w := serve(t, "GET", "/api/v1/outfits/{jobID}", h, "/api/v1/outfits/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ========================================
// POST /api/v1/closet/candidates
// ========================================

func TestAddItem_Created(t *testing.T) {
	h := handler.NewAddItemHandler(&mockCloset{})
	w := serve(t, "POST", "/api/v1/closet/candidates", h, "/api/v1/closet/candidates",
		map[string]any{"name": "Linen Shirt", "category": "tops", "price": 79.99, "currency": "USD"})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, models.ItemStatusConsidering, data["status"])
}

func TestAddItem_RequiresName(t *testing.T) {
	h := handler.NewAddItemHandler(&mockCloset{})
	w := serve(t, "POST", "/api/v1/closet/candidates", h, "/api/v1/closet/candidates",
		map[string]any{"category": "tops"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddItem_RequiresCategory(t *testing.T) {
	h := handler.NewAddItemHandler(&mockCloset{})
	w := serve(t, "POST", "/api/v1/closet/candidates", h, "/api/v1/closet/candidates",
		map[string]any{"name": "Linen Shirt"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ========================================
// GET /api/v1/closet/candidates
// ========================================

func TestListItems_EmptyIsArray(t *testing.T) {
	h := handler.NewListItemsHandler(&mockCloset{})
	w := serve(t, "GET", "/api/v1/closet/candidates", h, "/api/v1/closet/candidates", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body["data"].([]any)
	require.True(t, ok, "data must be an array, not null")
	assert.Empty(t, data)
}

func TestListItems_InvalidFilter(t *testing.T) {
	h := handler.NewListItemsHandler(&mockCloset{})
	w := serve(t, "GET", "/api/v1/closet/candidates", h, "/api/v1/closet/candidates?status=bought", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
}

// ========================================
// POST /api/v1/closet/candidates/{itemID}/decision
// ========================================

func TestDecideItem_Bought(t *testing.T) {
	outcome := &closet.Outcome{
		Decision:     models.DecisionBought,
		WardrobeItem: &models.WardrobeItem{ID: uuid.New(), Name: "Chelsea Boots"},
		Message:      "Added Chelsea Boots to your wardrobe",
	}
	h := handler.NewDecideItemHandler(&mockCloset{outcome: outcome})
	w := serve(t, "POST", "/api/v1/closet/candidates/{itemID}/decision", h,
		"/api/v1/closet/candidates/"+uuid.New().String()+"/decision",
		map[string]any{"decision": "bought"})

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, models.DecisionBought, data["decision"])
	assert.Equal(t, false, data["already_processed"])
	assert.NotNil(t, data["wardrobe_item"])
}

func TestDecideItem_RepeatBoughtStillOK(t *testing.T) {
	outcome := &closet.Outcome{
		Decision:         models.DecisionBought,
		WardrobeItem:     &models.WardrobeItem{ID: uuid.New(), Name: "Chelsea Boots"},
		AlreadyProcessed: true,
	}
	h := handler.NewDecideItemHandler(&mockCloset{outcome: outcome})
	w := serve(t, "POST", "/api/v1/closet/candidates/{itemID}/decision", h,
		"/api/v1/closet/candidates/"+uuid.New().String()+"/decision",
		map[string]any{"decision": "bought"})

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, true, data["already_processed"])
}

func TestDecideItem_NotFound(t *testing.T) {
	h := handler.NewDecideItemHandler(&mockCloset{decideErr: store.ErrNotFound})
	w := serve(t, "POST", "/api/v1/closet/candidates/{itemID}/decision", h,
		"/api/v1/closet/candidates/"+uuid.New().String()+"/decision",
		map[string]any{"decision": "passed"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestDecideItem_InvalidDecision(t *testing.T) {
	h := handler.NewDecideItemHandler(&mockCloset{decideErr: closet.ErrInvalidDecision})
	w := serve(t, "POST", "/api/v1/closet/candidates/{itemID}/decision", h,
		"/api/v1/closet/candidates/"+uuid.New().String()+"/decision",
		map[string]any{"decision": "returned"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecideItem_StoreFailure(t *testing.T) {
	h := handler.NewDecideItemHandler(&mockCloset{decideErr: errors.New("connection reset")})
	w := serve(t, "POST", "/api/v1/closet/candidates/{itemID}/decision", h,
		"/api/v1/closet/candidates/"+uuid.New().String()+"/decision",
		map[string]any{"decision": "bought"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ========================================
// GET /api/v1/closet/counts
// ========================================

func TestCounts_OK(t *testing.T) {
	counts := &models.ClosetCounts{
		All:         8,
		ByCategory:  map[string]int{"tops": 5, "bottoms": 3},
		Considering: 2,
	}
	h := handler.NewCountsHandler(&mockCloset{counts: counts})
	w := serve(t, "GET", "/api/v1/closet/counts", h, "/api/v1/closet/counts", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, float64(8), data["all"])
	assert.Equal(t, float64(2), data["considering"])
}

// ========================================
// GET /api/v1/health
// ========================================

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth_AllOK(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	h := handler.NewHealthHandler(ok, ok)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_DegradedCache(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	bad := pingFunc(func(context.Context) error { return errors.New("redis down") })
	h := handler.NewHealthHandler(ok, bad)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "DEGRADED", errCode(t, w))
}
