package constraint

import (
	"testing"

	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/timeframe"
)

func repServing(cities ...string) *model.Representative {
	rep := &model.Representative{ID: "r1", Schedule: model.NewSchedule()}
	for i, c := range cities {
		slot := &rep.Schedule.Slots[i%len(rep.Schedule.Slots)]
		slot.Jobs = append(slot.Jobs, &model.Job{ID: c, City: c})
	}
	return rep
}

func newContext() *DispatchContext {
	s := model.DefaultSettings()
	return &DispatchContext{Settings: &s, Weekday: "monday", Parser: timeframe.Default}
}

func TestClusterConstraint_Evaluate(t *testing.T) {
	constraint := NewClusterConstraint()

	tests := []struct {
		name      string
		serving   []string
		city      string
		maxCities int
		expected  bool
	}{
		{"首个城市", nil, "Mesa", 3, true},
		{"相邻城市", []string{"Tempe"}, "Mesa", 3, true},
		{"不相邻城市", []string{"Flagstaff"}, "Mesa", 3, false},
		{"已服务城市", []string{"Flagstaff"}, "flagstaff", 1, true},
		{"达到城市上限", []string{"Tempe"}, "Mesa", 1, false},
		{"与任一城市相邻", []string{"Flagstaff", "Gilbert"}, "Mesa", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext()
			ctx.Settings.MaxCitiesPerRep = tt.maxCities
			passed, _ := constraint.Evaluate(&model.Job{City: tt.city}, repServing(tt.serving...), ctx)
			if passed != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, passed)
			}
		})
	}
}

func TestRepCapacityConstraint_Evaluate(t *testing.T) {
	constraint := NewRepCapacityConstraint()

	tests := []struct {
		name     string
		jobs     int
		expected bool
	}{
		{"未达上限", 3, true},
		{"达到上限", 4, false},
		{"无任务", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cities := make([]string, tt.jobs)
			for i := range cities {
				cities[i] = "Mesa"
			}
			passed, _ := constraint.Evaluate(&model.Job{}, repServing(cities...), newContext())
			if passed != tt.expected {
				t.Errorf("Expected %v for %d jobs, got %v", tt.expected, tt.jobs, passed)
			}
		})
	}
}

func TestSlotCapacityConstraint_Evaluate(t *testing.T) {
	constraint := NewSlotCapacityConstraint()
	full := &model.Slot{ID: "s1", Jobs: []*model.Job{{ID: "x"}}}

	ctx := newContext()
	ctx.Slot = full
	if passed, _ := constraint.Evaluate(&model.Job{}, &model.Representative{}, ctx); passed {
		t.Error("full slot should be rejected")
	}

	ctx.Settings.AllowDoubleBooking = true
	if passed, _ := constraint.Evaluate(&model.Job{}, &model.Representative{}, ctx); !passed {
		t.Error("double booking should allow a full slot")
	}
}

func TestAvailabilityConstraint_Evaluate(t *testing.T) {
	constraint := NewAvailabilityConstraint()

	partly := &model.Representative{
		Schedule:    model.NewSchedule(),
		Unavailable: map[string][]string{"monday": {"s1"}},
	}
	allDay := &model.Representative{
		Schedule:    model.NewSchedule(),
		Unavailable: map[string][]string{"monday": {"s1", "s2", "s3", "s4"}},
	}

	tests := []struct {
		name     string
		rep      *model.Representative
		slotID   string
		allow    bool
		expected bool
	}{
		{"可用时段", partly, "s2", false, true},
		{"不可用时段", partly, "s1", false, false},
		{"允许越界", partly, "s1", true, true},
		{"允许越界但全天不可用", allDay, "s1", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext()
			ctx.Settings.AllowAssignOutsideAvailability = tt.allow
			ctx.Slot = &model.Slot{ID: tt.slotID}
			passed, _ := constraint.Evaluate(&model.Job{}, tt.rep, ctx)
			if passed != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, passed)
			}
		})
	}
}

func TestStrictTimeframeConstraint_Evaluate(t *testing.T) {
	constraint := NewStrictTimeframeConstraint()
	job := &model.Job{Timeframe: "10am-12pm"}

	ctx := newContext()
	ctx.Slot = &model.Slot{ID: "s1"}
	if passed, _ := constraint.Evaluate(job, &model.Representative{}, ctx); !passed {
		t.Error("non-strict mode should accept any slot")
	}

	ctx.Settings.StrictTimeframe = true
	if passed, _ := constraint.Evaluate(job, &model.Representative{}, ctx); passed {
		t.Error("strict mode should reject a mismatched slot")
	}
	ctx.Slot = &model.Slot{ID: "s2"}
	if passed, _ := constraint.Evaluate(job, &model.Representative{}, ctx); !passed {
		t.Error("strict mode should accept the requested slot")
	}
	if passed, _ := constraint.Evaluate(&model.Job{Timeframe: "anytime"}, &model.Representative{}, ctx); !passed {
		t.Error("open timeframe should match any slot")
	}
}

func TestCheck(t *testing.T) {
	constraints := DefaultDispatchConstraints()

	names := make(map[string]bool)
	for _, c := range constraints {
		names[c.Name()] = true
	}
	for _, name := range []string{"Territory", "Cluster", "RepCapacity", "SlotCapacity", "Availability", "StrictTimeframe"} {
		if !names[name] {
			t.Errorf("Missing required constraint: %s", name)
		}
	}

	north := &model.Representative{ID: "n", Region: model.RegionNorth, Schedule: model.NewSchedule()}
	v := Check(constraints, ScopeRep, &model.Job{City: "Tucson"}, north, newContext())
	if v == nil || v.Constraint != "Territory" {
		t.Errorf("expected territory violation, got %+v", v)
	}
	if v := Check(constraints, ScopeSlot, &model.Job{City: "Tucson"}, north, newContext()); v != nil {
		t.Errorf("slot scope should ignore territory, got %+v", v)
	}
}
