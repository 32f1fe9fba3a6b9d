package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"taska/internal/geo"
	"taska/internal/model"
	"taska/internal/service"
)

// MemberHeader carries the id of the acting team member.
const MemberHeader = "Member-ID"

var errUnauthenticated = errors.New("unknown or missing " + MemberHeader)

// PositionUpdater accepts location reports.
type PositionUpdater interface {
	Update(p geo.Point, at time.Time) error
}

// NearbyLister exposes the proximity monitor's current view.
type NearbyLister interface {
	Nearby() []model.Task
}

type Handler struct {
	tasks     *service.TaskService
	positions PositionUpdater
	nearby    NearbyLister
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewHandler(tasks *service.TaskService, positions PositionUpdater, nearby NearbyLister, log logrus.FieldLogger) *Handler {
	return &Handler{tasks: tasks, positions: positions, nearby: nearby, log: log, now: time.Now}
}

// Routes registers every endpoint on a new router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tasks", h.ListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", h.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/nearby", h.Nearby).Methods(http.MethodGet)
	api.HandleFunc("/tasks/by-location", h.ByLocation).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}", h.UpdateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{taskID}", h.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{taskID}/complete", h.CompleteTask).Methods(http.MethodPost)
	api.HandleFunc("/calendar", h.Calendar).Methods(http.MethodGet)
	api.HandleFunc("/location", h.UpdateLocation).Methods(http.MethodPost)
	api.HandleFunc("/members", h.ListMembers).Methods(http.MethodGet)
	r.Use(h.logRequests)
	return r
}

type createTaskRequest struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Location    model.Location           `json:"location"`
	DueDate     *time.Time               `json:"dueDate"`
	AssigneeIDs []string                 `json:"assigneeIds"`
	Recurrence  *model.RecurrencePattern `json:"recurrence"`
	Rotation    *model.RotationPattern   `json:"rotation"`
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	filter, err := service.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tasks, err := h.teamTasks(r, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tasks = service.FilterTasks(tasks, filter)
	service.SortByDue(tasks)
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	task, err := h.tasks.CreateTask(r.Context(), actor, service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		DueDate:     req.DueDate,
		AssigneeIDs: req.AssigneeIDs,
		Recurrence:  req.Recurrence,
		Rotation:    req.Rotation,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var patch model.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var (
		task model.Task
		err  error
	)
	// Completion has its own permission, so a completed-only patch goes that way.
	if patch.Completed != nil && patch == (model.TaskPatch{Completed: patch.Completed}) {
		task, err = h.tasks.SetCompleted(r.Context(), actor, mux.Vars(r)["taskID"], *patch.Completed)
	} else {
		task, err = h.tasks.UpdateTask(r.Context(), actor, mux.Vars(r)["taskID"], patch)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.CompleteTask(r.Context(), actor, mux.Vars(r)["taskID"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	removed, err := h.tasks.DeleteTask(r.Context(), actor, mux.Vars(r)["taskID"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"removed": removed})
}

// Nearby reports the monitor's view, or an ad-hoc search when lat and lon are given.
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if q.Get("lat") == "" && q.Get("lon") == "" {
		writeJSON(w, http.StatusOK, onTeam(h.nearby.Nearby(), actor))
		return
	}

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	p := geo.Point{Latitude: lat, Longitude: lon}
	if errLat != nil || errLon != nil || !p.Valid() {
		http.Error(w, "lat and lon must be valid coordinates", http.StatusBadRequest)
		return
	}
	var radius float64
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			http.Error(w, "radius must be a positive number of meters", http.StatusBadRequest)
			return
		}
		radius = v
	}
	tasks, err := h.teamTasks(r, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.FindNearby(tasks, p, radius))
}

func (h *Handler) ByLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	tasks, err := h.teamTasks(r, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	type group struct {
		Name  string       `json:"name"`
		Tasks []model.Task `json:"tasks"`
	}
	var out []group
	for _, g := range service.GroupByLocation(service.FilterTasks(tasks, service.FilterActive)) {
		out = append(out, group{Name: g.Name, Tasks: g.Tasks})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	month := h.now()
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := time.ParseInLocation("2006-01", raw, time.Local)
		if err != nil {
			http.Error(w, "month must look like 2025-04", http.StatusBadRequest)
			return
		}
		month = m
	}
	tasks, err := h.teamTasks(r, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	type day struct {
		Date      string `json:"date"`
		Active    int    `json:"active"`
		Completed int    `json:"completed"`
	}
	out := []day{}
	for _, d := range service.CalendarMonth(tasks, month.Year(), month.Month(), month.Location()) {
		out = append(out, day{Date: d.Date.Format("2006-01-02"), Active: d.Active, Completed: d.Completed})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.positions.Update(geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}, h.now()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	members, err := h.tasks.Members(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]model.TeamMember, 0, len(members))
	for _, m := range members {
		if m.TeamID == actor.TeamID {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (model.TeamMember, bool) {
	id := r.Header.Get(MemberHeader)
	if id == "" {
		h.writeError(w, errUnauthenticated)
		return model.TeamMember{}, false
	}
	member, err := h.tasks.Member(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		err = errUnauthenticated
	}
	if err != nil {
		h.writeError(w, err)
		return model.TeamMember{}, false
	}
	return member, true
}

func (h *Handler) teamTasks(r *http.Request, actor model.TeamMember) ([]model.Task, error) {
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		return nil, err
	}
	return onTeam(tasks, actor), nil
}

func onTeam(tasks []model.Task, actor model.TeamMember) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.TeamID == actor.TeamID {
			out = append(out, t)
		}
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTask), errors.Is(err, model.ErrInvalidPattern):
		status = http.StatusBadRequest
	default:
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
