package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"taska/internal/geo"
	"taska/internal/location"
	"taska/internal/model"
	"taska/internal/repository"
	"taska/internal/service"
)

type noNearby struct{}

func (noNearby) Nearby() []model.Task { return nil }

type apiFixture struct {
	router    http.Handler
	positions *location.Latest
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	db, err := repository.NewDB(":memory:", logrus.NewEntry(log))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	members := repository.NewMemberRepository(db)
	ctx := context.Background()
	for _, m := range []model.TeamMember{
		{ID: "admin", TeamID: "team", Name: "Alex", Role: model.RoleAdmin},
		{ID: "member", TeamID: "team", Name: "Sam", Role: model.RoleMember},
		{ID: "manager", TeamID: "team", Name: "Morgan", Role: model.RoleManager},
		{ID: "outsider", TeamID: "other", Name: "Robin", Role: model.RoleAdmin},
	} {
		m := m
		if err := members.Create(ctx, &m); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	svc := service.NewTaskService(repository.NewTaskRepository(db), members, nil, log)
	positions := location.NewLatest(time.Minute)
	h := NewHandler(svc, positions, noNearby{}, log)
	return &apiFixture{router: h.Routes(), positions: positions}
}

func (f *apiFixture) do(t *testing.T, method, path, member string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if member != "" {
		req.Header.Set(MemberHeader, member)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestCreateCompleteAndList(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]interface{}{
		"title":       "Take out recycling",
		"location":    map[string]interface{}{"name": "Office - Downtown"},
		"dueDate":     "2020-04-20T00:00:00Z",
		"assigneeIds": []string{"member"},
		"recurrence":  map[string]interface{}{"type": "monthly", "interval": 1, "dayOfMonth": 20},
	}
	rec := f.do(t, http.MethodPost, "/api/tasks", "admin", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	created := decode[model.Task](t, rec)

	rec = f.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/complete", "member", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodGet, "/api/tasks?filter=active", "member", nil)
	active := decode[[]model.Task](t, rec)
	if len(active) != 1 || active[0].ParentTaskID == nil || *active[0].ParentTaskID != created.ID {
		t.Fatalf("expected the next occurrence to be the only open task, got %+v", active)
	}
	if !active[0].DueDate.Equal(time.Date(2020, 5, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected May 20, got %v", active[0].DueDate)
	}
}

func TestErrorStatuses(t *testing.T) {
	f := newAPIFixture(t)
	task := map[string]interface{}{"title": "Sweep", "location": map[string]interface{}{"name": "Home"}}

	if rec := f.do(t, http.MethodGet, "/api/tasks", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a member, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/tasks", "ghost", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unknown member, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/tasks", "member", task); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a member creating, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/tasks", "admin", map[string]interface{}{"title": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a location, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/tasks/missing", "admin", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/tasks?filter=soon", "admin", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad filter, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/tasks", "admin", task)
	created := decode[model.Task](t, rec)
	if rec := f.do(t, http.MethodDelete, "/api/tasks/"+created.ID, "outsider", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 across teams, got %d", rec.Code)
	}
}

func TestPatchCompletionUsesCompletePermission(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks", "admin", map[string]interface{}{"title": "Sweep", "location": map[string]interface{}{"name": "Home"}})
	created := decode[model.Task](t, rec)

	rec = f.do(t, http.MethodPatch, "/api/tasks/"+created.ID, "member", map[string]interface{}{"completed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a member to complete via patch, got %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodPatch, "/api/tasks/"+created.ID, "member", map[string]interface{}{"title": "Mop"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected a member edit to be denied, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPatch, "/api/tasks/"+created.ID, "manager", map[string]interface{}{"title": "Mop", "completed": false})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected a manager reopening a task to be denied, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/tasks", "admin", nil)
	for _, task := range decode[[]model.Task](t, rec) {
		if task.ID == created.ID && (task.Title != "Sweep" || !task.Completed) {
			t.Fatalf("expected the denied patch to change nothing, got %+v", task)
		}
	}
	rec = f.do(t, http.MethodPatch, "/api/tasks/"+created.ID, "manager", map[string]interface{}{"title": "Mop", "completed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a manager edit that keeps completion to pass, got %d: %s", rec.Code, rec.Body)
	}
}

func TestNearbyAndLocation(t *testing.T) {
	f := newAPIFixture(t)
	office := map[string]interface{}{
		"name":        "Office - Downtown",
		"coordinates": map[string]float64{"latitude": 40.7128, "longitude": -74.0060},
	}
	f.do(t, http.MethodPost, "/api/tasks", "admin", map[string]interface{}{"title": "Water plants", "location": office})
	f.do(t, http.MethodPost, "/api/tasks", "admin", map[string]interface{}{"title": "Buy milk", "location": map[string]interface{}{"name": "Store"}})

	rec := f.do(t, http.MethodGet, "/api/tasks/nearby?lat=40.7138&lon=-74.0060", "member", nil)
	nearby := decode[[]model.Task](t, rec)
	if len(nearby) != 1 || nearby[0].Title != "Water plants" {
		t.Fatalf("expected the office task, got %+v", nearby)
	}
	if rec := f.do(t, http.MethodGet, "/api/tasks/nearby?lat=100&lon=0", "member", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad coordinates, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/location", "member", map[string]float64{"latitude": 40.7128, "longitude": -74.0060})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	p, err := f.positions.CurrentPosition(context.Background())
	if err != nil || p != (geo.Point{Latitude: 40.7128, Longitude: -74.0060}) {
		t.Fatalf("expected the reported position, got %+v (err=%v)", p, err)
	}

	rec = f.do(t, http.MethodGet, "/api/tasks/by-location", "member", nil)
	groups := decode[[]struct {
		Name  string       `json:"name"`
		Tasks []model.Task `json:"tasks"`
	}](t, rec)
	if len(groups) != 2 || groups[0].Name != "Office - Downtown" {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestCalendarAndMembers(t *testing.T) {
	f := newAPIFixture(t)
	for _, due := range []string{"2025-04-15T10:00:00Z", "2025-04-15T11:00:00Z", "2025-05-15T10:00:00Z"} {
		f.do(t, http.MethodPost, "/api/tasks", "admin", map[string]interface{}{"title": "x", "location": map[string]interface{}{"name": "Home"}, "dueDate": due})
	}
	rec := f.do(t, http.MethodGet, "/api/calendar?month=2025-04", "admin", nil)
	days := decode[[]struct {
		Date   string `json:"date"`
		Active int    `json:"active"`
	}](t, rec)
	if len(days) != 1 || days[0].Active != 2 {
		t.Fatalf("expected two tasks on one April day, got %+v", days)
	}
	if rec := f.do(t, http.MethodGet, "/api/calendar?month=april", "admin", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad month, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/members", "member", nil)
	members := decode[[]model.TeamMember](t, rec)
	if len(members) != 3 {
		t.Fatalf("expected the three members of the team, got %+v", members)
	}
}
