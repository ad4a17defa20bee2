package matcher

import (
	"reflect"
	"testing"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

func TestSkillMatcher_Tags(t *testing.T) {
	m := NewSkillMatcher()

	tests := []struct {
		notes     string
		material  []string
		specialty []string
		priority  bool
	}{
		{"Concrete tile roof, hail damage", []string{"Tile"}, []string{"Insurance"}, false},
		{"URGENT: metal + flat foam", []string{"Metal", "Flat"}, nil, true},
		{"asphalt shingles, VIP customer", []string{"Shingle"}, nil, true},
		{"commercial building!!", nil, []string{"Commercial"}, true},
		{"textile warehouse", nil, nil, false},
		{"", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.notes, func(t *testing.T) {
			if got := m.MaterialTags(tt.notes); !reflect.DeepEqual(got, tt.material) {
				t.Errorf("MaterialTags() = %v, want %v", got, tt.material)
			}
			if got := m.SpecialtyTags(tt.notes); !reflect.DeepEqual(got, tt.specialty) {
				t.Errorf("SpecialtyTags() = %v, want %v", got, tt.specialty)
			}
			if got := m.IsPriority(tt.notes); got != tt.priority {
				t.Errorf("IsPriority() = %v, want %v", got, tt.priority)
			}
		})
	}
}

func TestSkillMatcher_MatchSkills(t *testing.T) {
	m := NewSkillMatcher()
	rep := &model.Representative{Skills: map[string]int{"Tile": 3, "Shingle": 1, "Metal": 0}}

	tests := []struct {
		name       string
		tags       []string
		score      float64
		missing    string
		specialist bool
	}{
		{"无标签", nil, NeutralScore, "", false},
		{"专长", []string{"Tile"}, 100, "", true},
		{"平均", []string{"Tile", "Shingle"}, 200.0 / 3, "", true},
		{"熟练度为0", []string{"Tile", "Metal"}, 0, "Metal", false},
		{"未声明", []string{"Flat"}, 0, "Flat", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := m.MatchSkills(tt.tags, rep)
			if r.Missing != tt.missing {
				t.Errorf("Missing = %q, want %q", r.Missing, tt.missing)
			}
			if diff := r.Score - tt.score; diff > 0.01 || diff < -0.01 {
				t.Errorf("Score = %v, want %v", r.Score, tt.score)
			}
			if r.Missing == "" && r.Specialist != tt.specialist {
				t.Errorf("Specialist = %v, want %v", r.Specialist, tt.specialist)
			}
		})
	}
}

func TestPerformanceMatcher_ScoreRank(t *testing.T) {
	p := NewPerformanceMatcher()

	tests := []struct {
		rank     int
		priority bool
		expected float64
	}{
		{1, true, 100},
		{3, true, 90},
		{5, true, 80},
		{9, true, 65},
		{0, true, 50},
		{1, false, 50},
		{0, false, 75},
	}

	for _, tt := range tests {
		if got := p.ScoreRank(tt.rank, tt.priority); got != tt.expected {
			t.Errorf("ScoreRank(%d, %v) = %v, want %v", tt.rank, tt.priority, got, tt.expected)
		}
	}
}

func TestTimeframeMatcher_Score(t *testing.T) {
	tm := NewTimeframeMatcher()
	s2 := model.Window{Start: 600, End: 720}

	tests := []struct {
		name      string
		requested model.Window
		has       bool
		expected  float64
	}{
		{"无要求", model.Window{}, false, NeutralScore},
		{"完全重叠", model.Window{Start: 600, End: 720}, true, 100},
		{"要求包含时段", model.Window{Start: 480, End: 720}, true, 100},
		{"部分重叠", model.Window{Start: 660, End: 780}, true, 70},
		{"无重叠", model.Window{Start: 840, End: 960}, true, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tm.Score(tt.requested, tt.has, s2); got != tt.expected {
				t.Errorf("Score() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDistanceScale_Score(t *testing.T) {
	tests := []struct {
		scale    DistanceScale
		miles    float64
		expected float64
	}{
		{HomeScale, 0, 100},
		{HomeScale, 5, 100},
		{HomeScale, 60, 20},
		{HomeScale, 100, 20},
		{ClusterScale, 21, 55},
	}

	for _, tt := range tests {
		if got := tt.scale.Score(tt.miles); got != tt.expected {
			t.Errorf("Score(%v) = %v, want %v", tt.miles, got, tt.expected)
		}
	}
}
