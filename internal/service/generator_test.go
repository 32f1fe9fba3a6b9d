package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"taska/internal/model"
)

func newTestGenerator() (*Generator, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	g := NewGenerator(log)
	n := 0
	g.newID = func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	return g, hook
}

func ptr[T any](v T) *T { return &v }

func template(id string, due time.Time, p model.RecurrencePattern) model.Task {
	return model.Task{
		ID:         id,
		TeamID:     "team",
		Title:      "Take out recycling",
		Location:   model.Location{Name: "Office - Downtown"},
		Completed:  true,
		CreatedAt:  due.AddDate(0, 0, -7),
		DueDate:    ptr(due),
		AssignedTo: []model.Assignee{{ID: "A", Name: "Member A"}},
		CreatedBy:  "A",
		Recurrence: &p,
	}
}

var monthly = model.RecurrencePattern{Type: model.RecurrenceMonthly, Interval: 1, DayOfMonth: 20}

func TestReconcileGeneratesNextMonthlyInstance(t *testing.T) {
	g, _ := newTestGenerator()
	now := day(2025, 4, 21)
	tpl := template("tpl", time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), monthly)

	res := g.Reconcile([]model.Task{tpl}, roster("A"), now)
	if len(res.NewTasks) != 1 {
		t.Fatalf("expected 1 new task, got %d", len(res.NewTasks))
	}
	inst := res.NewTasks[0]
	want := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	if inst.DueDate == nil || !inst.DueDate.Equal(want) {
		t.Fatalf("expected due %v, got %v", want, inst.DueDate)
	}
	if inst.ParentTaskID == nil || *inst.ParentTaskID != "tpl" {
		t.Fatalf("expected parent tpl, got %v", inst.ParentTaskID)
	}
	if inst.Completed {
		t.Fatalf("expected instance to start incomplete")
	}
	if inst.ID != "gen-1" || !inst.CreatedAt.Equal(now) {
		t.Fatalf("expected fresh id and createdAt=now, got %s %v", inst.ID, inst.CreatedAt)
	}
	if inst.Title != tpl.Title || inst.Location.Name != tpl.Location.Name || inst.TeamID != tpl.TeamID {
		t.Fatalf("expected fields copied from template, got %+v", inst)
	}
	if len(inst.AssignedTo) != 1 || inst.AssignedTo[0].ID != "A" {
		t.Fatalf("expected assignees copied verbatim, got %+v", inst.AssignedTo)
	}

	if len(res.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(res.Notifications))
	}
	n := res.Notifications[0]
	if n.TaskID != inst.ID || n.Kind != model.NotificationInstanceCreated || n.AssigneeNames[0] != "Member A" || !n.DueDate.Equal(want) {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestReconcileClampsMonthEnd(t *testing.T) {
	g, _ := newTestGenerator()
	tpl := template("tpl", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), model.RecurrencePattern{Type: model.RecurrenceMonthly, Interval: 1})

	res := g.Reconcile([]model.Task{tpl}, nil, day(2025, 2, 1))
	if len(res.NewTasks) != 1 {
		t.Fatalf("expected 1 new task, got %d", len(res.NewTasks))
	}
	want := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if !res.NewTasks[0].DueDate.Equal(want) {
		t.Fatalf("expected %v, got %v", want, res.NewTasks[0].DueDate)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	g, _ := newTestGenerator()
	now := day(2025, 4, 21)
	tasks := []model.Task{template("tpl", day(2025, 4, 20), monthly)}

	first := g.Reconcile(tasks, roster("A"), now)
	if len(first.NewTasks) != 1 {
		t.Fatalf("expected 1 new task, got %d", len(first.NewTasks))
	}
	tasks = append(tasks, first.NewTasks...)

	second := g.Reconcile(tasks, roster("A"), now)
	if len(second.NewTasks) != 0 {
		t.Fatalf("expected no new tasks on second pass, got %d", len(second.NewTasks))
	}
}

func TestReconcileSkipsWhenFutureInstancePending(t *testing.T) {
	g, _ := newTestGenerator()
	now := day(2025, 4, 21)
	tpl := template("tpl", day(2025, 4, 20), monthly)
	parent := "tpl"
	pending := model.Task{
		ID:           "inst",
		TeamID:       "team",
		Title:        tpl.Title,
		Location:     tpl.Location,
		DueDate:      ptr(day(2025, 5, 20)),
		ParentTaskID: &parent,
		Recurrence:   tpl.Recurrence,
	}

	res := g.Reconcile([]model.Task{tpl, pending}, roster("A"), now)
	if len(res.NewTasks) != 0 {
		t.Fatalf("expected no new tasks while an instance is pending, got %d", len(res.NewTasks))
	}
}

func TestReconcileChainsFromLatestOccurrence(t *testing.T) {
	g, _ := newTestGenerator()
	now := day(2025, 6, 1)
	tpl := template("tpl", day(2025, 4, 20), monthly)
	parent := "tpl"
	done := tpl.Clone()
	done.ID = "inst-may"
	done.ParentTaskID = &parent
	done.DueDate = ptr(day(2025, 5, 20))
	done.Completed = true

	res := g.Reconcile([]model.Task{tpl, done}, roster("A"), now)
	if len(res.NewTasks) != 1 {
		t.Fatalf("expected exactly 1 new task, got %d", len(res.NewTasks))
	}
	inst := res.NewTasks[0]
	if !inst.DueDate.Equal(day(2025, 6, 20)) {
		t.Fatalf("expected June occurrence, got %v", inst.DueDate)
	}
	if *inst.ParentTaskID != "tpl" {
		t.Fatalf("expected instances to point at the template, got %s", *inst.ParentTaskID)
	}
}

func TestReconcileOverdueOpenOccurrenceBlocksGeneration(t *testing.T) {
	g, _ := newTestGenerator()
	now := day(2025, 8, 1)
	tpl := template("tpl", day(2025, 4, 20), monthly)
	parent := "tpl"
	overdue := tpl.Clone()
	overdue.ID = "inst-may"
	overdue.ParentTaskID = &parent
	overdue.DueDate = ptr(day(2025, 5, 20))
	overdue.Completed = false

	for i := 0; i < 3; i++ {
		res := g.Reconcile([]model.Task{tpl, overdue}, roster("A"), now)
		if len(res.NewTasks) != 0 {
			t.Fatalf("pass %d: expected the open occurrence to block generation, got %d", i, len(res.NewTasks))
		}
	}
}

func TestReconcileSkipsWithoutDueDate(t *testing.T) {
	g, hook := newTestGenerator()
	tpl := template("tpl", day(2025, 4, 20), monthly)
	tpl.DueDate = nil

	res := g.Reconcile([]model.Task{tpl}, nil, day(2025, 4, 21))
	if len(res.NewTasks) != 0 || len(res.Errors) != 0 {
		t.Fatalf("expected a silent no-op, got %d tasks and %v", len(res.NewTasks), res.Errors)
	}
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("expected nothing logged, got %d entries", len(hook.AllEntries()))
	}
}

func TestReconcileIgnoresIncompleteAndNonRecurring(t *testing.T) {
	g, _ := newTestGenerator()
	open := template("open", day(2025, 4, 20), monthly)
	open.Completed = false
	once := template("once", day(2025, 4, 20), model.RecurrencePattern{Type: model.RecurrenceNone})
	plain := template("plain", day(2025, 4, 20), monthly)
	plain.Recurrence = nil

	res := g.Reconcile([]model.Task{open, once, plain}, nil, day(2025, 4, 21))
	if len(res.NewTasks) != 0 {
		t.Fatalf("expected no new tasks, got %d", len(res.NewTasks))
	}
}

func TestReconcileIsolatesBadTemplates(t *testing.T) {
	g, hook := newTestGenerator()
	bad := template("bad", day(2025, 4, 20), model.RecurrencePattern{Type: model.RecurrenceDaily, Interval: 0})
	good := template("good", day(2025, 4, 20), model.RecurrencePattern{Type: model.RecurrenceDaily, Interval: 1})

	res := g.Reconcile([]model.Task{bad, good}, nil, day(2025, 4, 20))
	if len(res.NewTasks) != 1 || *res.NewTasks[0].ParentTaskID != "good" {
		t.Fatalf("expected the good template to generate, got %+v", res.NewTasks)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], model.ErrInvalidPattern) {
		t.Fatalf("expected one invalid pattern error, got %v", res.Errors)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.ErrorLevel || entry.Data["task_id"] != "bad" {
		t.Fatalf("expected an error log for the bad template, got %+v", entry)
	}
}

func TestReconcileRotatesAssignee(t *testing.T) {
	g, _ := newTestGenerator()
	tpl := template("tpl", day(2025, 4, 20), model.RecurrencePattern{Type: model.RecurrenceWeekly, Interval: 1})
	tpl.Rotation = &model.RotationPattern{Enabled: true, MemberIDs: []string{"A", "B", "C"}, CurrentIndex: 0}

	tasks := []model.Task{tpl}
	now := day(2025, 4, 20)
	var names []string
	for i := 0; i < 4; i++ {
		res := g.Reconcile(tasks, roster("A", "B", "C"), now)
		if len(res.NewTasks) != 1 {
			t.Fatalf("round %d: expected 1 new task, got %d", i, len(res.NewTasks))
		}
		inst := res.NewTasks[0]
		names = append(names, inst.AssignedTo[0].ID)
		inst.Completed = true
		tasks = append(tasks, inst)
	}
	want := []string{"B", "C", "A", "B"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected rotation %v, got %v", want, names)
		}
	}
	if tpl.Rotation.CurrentIndex != 0 {
		t.Fatalf("expected template rotation to be left alone, got %d", tpl.Rotation.CurrentIndex)
	}
}

func TestReconcileRotationFallsBackWhenMemberLeft(t *testing.T) {
	g, hook := newTestGenerator()
	tpl := template("tpl", day(2025, 4, 20), model.RecurrencePattern{Type: model.RecurrenceDaily, Interval: 1})
	tpl.Rotation = &model.RotationPattern{Enabled: true, MemberIDs: []string{"A", "B"}, CurrentIndex: 0}

	res := g.Reconcile([]model.Task{tpl}, roster("A"), day(2025, 4, 20))
	if len(res.NewTasks) != 1 {
		t.Fatalf("expected 1 new task, got %d", len(res.NewTasks))
	}
	inst := res.NewTasks[0]
	if len(inst.AssignedTo) != 1 || inst.AssignedTo[0].ID != "A" {
		t.Fatalf("expected previous assignees to be kept, got %+v", inst.AssignedTo)
	}
	if inst.Rotation.CurrentIndex != 1 {
		t.Fatalf("expected the pointer to advance anyway, got %d", inst.Rotation.CurrentIndex)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning about the fallback, got %+v", entry)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("expected the fallback not to count as an error, got %v", res.Errors)
	}
}

func TestReconcileOneInstancePerSeriesPerPass(t *testing.T) {
	g, _ := newTestGenerator()
	tpl := template("tpl", day(2025, 4, 20), monthly)
	parent := "tpl"
	twin := tpl.Clone()
	twin.ID = "twin"
	twin.ParentTaskID = &parent

	res := g.Reconcile([]model.Task{tpl, twin}, nil, day(2025, 4, 21))
	if len(res.NewTasks) != 1 {
		t.Fatalf("expected one instance for the series, got %d", len(res.NewTasks))
	}
}
