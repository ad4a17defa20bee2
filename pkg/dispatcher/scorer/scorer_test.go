package scorer

import (
	"testing"

	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/timeframe"
)

func tileRep() *model.Representative {
	return &model.Representative{
		ID:          "r1",
		Name:        "Rita",
		PostalCodes: []string{"85201"},
		Skills:      map[string]int{"Tile": 3, "Shingle": 2, "Metal": 0, "Insurance": 1},
		Schedule:    model.NewSchedule(),
	}
}

func TestScore_TileSpecialistScenario(t *testing.T) {
	s := New(timeframe.Default, nil)
	settings := model.DefaultSettings()
	job := &model.Job{ID: "j1", City: "Mesa", PostalCode: "85201", Notes: "Tile roof inspection", Timeframe: "10am-12pm"}

	b := s.Score(job, tileRep(), "s2", &settings, "monday")

	if b.Disqualified {
		t.Fatalf("unexpected disqualification: %s", b.Reason)
	}
	if b.Timeframe != 100 {
		t.Errorf("Timeframe = %v, want 100", b.Timeframe)
	}
	if b.SkillRoofing != 100 {
		t.Errorf("SkillRoofing = %v, want 100", b.SkillRoofing)
	}
	if b.Final < 80 {
		t.Errorf("Final = %v, want >= 80", b.Final)
	}
	if !b.Specialist {
		t.Error("level 3 skill should flag specialist")
	}
}

func TestScore_ZeroSkillDisqualifies(t *testing.T) {
	s := New(timeframe.Default, nil)
	settings := model.DefaultSettings()

	for _, notes := range []string{"metal roof", "URGENT metal roof, 10am", "clay tile and standing seam", "commercial flat roof"} {
		t.Run(notes, func(t *testing.T) {
			job := &model.Job{ID: "j", Notes: notes, Timeframe: "10am-12pm"}
			b := s.Score(job, tileRep(), "s2", &settings, "")
			if b.Final != model.DisqualifiedScore || !b.Disqualified {
				t.Errorf("Final = %v, want disqualification sentinel", b.Final)
			}
		})
	}
}

func TestScore_UnavailabilityPenalty(t *testing.T) {
	s := New(timeframe.Default, nil)
	settings := model.DefaultSettings()
	rep := tileRep()
	rep.Unavailable = map[string][]string{"monday": {"s2"}}
	job := &model.Job{ID: "j1", Notes: "shingle", Timeframe: "10am-12pm"}

	free := s.Score(job, rep, "s2", &settings, "tuesday")
	blocked := s.Score(job, rep, "s2", &settings, "monday")

	if blocked.Penalty != UnavailablePenalty {
		t.Errorf("Penalty = %v, want %v", blocked.Penalty, UnavailablePenalty)
	}
	if blocked.Final >= free.Final {
		t.Errorf("penalised score %v should be lower than %v", blocked.Final, free.Final)
	}

	settings.UnavailabilityPenalty = 10
	floor := s.Score(job, rep, "s2", &settings, "monday")
	if floor.Final != 1 {
		t.Errorf("Final = %v, want clamp to 1", floor.Final)
	}
}

func TestScore_Distance(t *testing.T) {
	coords := geo.NewMemoryCache()
	coords.Set("85201", model.Coordinate{Lat: 33.4152, Lng: -111.8315})
	coords.Set("1 Main, Tempe, 85281", model.Coordinate{Lat: 33.4255, Lng: -111.9400})
	coords.Set("9 Oak, Flagstaff, 86001", model.Coordinate{Lat: 35.1983, Lng: -111.6513})

	s := New(timeframe.Default, coords)
	settings := model.DefaultSettings()
	rep := tileRep()

	near := s.Score(&model.Job{ID: "a", Address: "1 Main", City: "Tempe", PostalCode: "85281"}, rep, "s1", &settings, "")
	far := s.Score(&model.Job{ID: "b", Address: "9 Oak", City: "Flagstaff", PostalCode: "86001"}, rep, "s1", &settings, "")

	if near.HomeMiles == nil || far.HomeMiles == nil {
		t.Fatal("home distance should be resolved")
	}
	if near.DistanceHome <= far.DistanceHome {
		t.Errorf("near home score %v should beat far %v", near.DistanceHome, far.DistanceHome)
	}
	if near.DistanceCluster != near.DistanceHome {
		t.Error("empty schedule should reuse the home distance score")
	}

	// 已有任务时按最近任务计算
	rep.Schedule.Slots[0].Jobs = []*model.Job{{ID: "x", Address: "1 Main", City: "Tempe", PostalCode: "85281"}}
	clustered := s.Score(&model.Job{ID: "a2", Address: "1 Main", City: "Tempe", PostalCode: "85281"}, rep, "s2", &settings, "")
	if clustered.DistanceCluster != 100 || clustered.ClusterMiles == nil {
		t.Errorf("DistanceCluster = %v, want 100", clustered.DistanceCluster)
	}
}

func TestScore_UnresolvedFallbacks(t *testing.T) {
	s := New(timeframe.Default, nil)
	settings := model.DefaultSettings()
	rep := tileRep()

	match := s.Score(&model.Job{ID: "a", PostalCode: "85201"}, rep, "s1", &settings, "")
	other := s.Score(&model.Job{ID: "b", PostalCode: "99999"}, rep, "s1", &settings, "")
	if match.DistanceHome != postalMatchScore || other.DistanceHome != unresolvedScore {
		t.Errorf("home fallback = %v / %v", match.DistanceHome, other.DistanceHome)
	}
	if match.DistanceCluster != emptyClusterScore {
		t.Errorf("empty cluster without home = %v, want %v", match.DistanceCluster, emptyClusterScore)
	}

	rep.Schedule.Slots[0].Jobs = []*model.Job{{ID: "x", City: "Mesa"}}
	same := s.Score(&model.Job{ID: "c", City: "mesa"}, rep, "s2", &settings, "")
	diff := s.Score(&model.Job{ID: "d", City: "Tempe"}, rep, "s2", &settings, "")
	if same.DistanceCluster != sameCityScore || diff.DistanceCluster != unresolvedScore {
		t.Errorf("cluster fallback = %v / %v", same.DistanceCluster, diff.DistanceCluster)
	}
}

func TestScore_RepWeightOverride(t *testing.T) {
	s := New(timeframe.Default, nil)
	settings := model.DefaultSettings()
	rep := tileRep()
	job := &model.Job{ID: "j", Timeframe: "3pm"}

	rep.Weights = &model.Weights{Timeframe: 1}
	b := s.Score(job, rep, "s1", &settings, "")
	if b.Final != 20 {
		t.Errorf("timeframe-only weight Final = %v, want 20", b.Final)
	}

	rep.Weights = &model.Weights{}
	fallback := s.Score(job, rep, "s1", &settings, "")
	if fallback.Final == 20 {
		t.Error("zero override should fall back to settings weights")
	}
}
