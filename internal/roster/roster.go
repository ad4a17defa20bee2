// Package roster 加载代表名单与派工设置，用于生成新日期的初始状态
package roster

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/history"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// Roster 名单文件内容
type Roster struct {
	Settings model.Settings          `yaml:"settings"`
	Reps     []*model.Representative `yaml:"reps"`
}

// Load 从 YAML 文件加载名单，路径为空时返回默认名单
func Load(path string) (*Roster, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "读取名单文件失败").WithField("path", path)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", path).Int("reps", len(r.Reps)).Msg("名单已加载")
	return r, nil
}

// Parse 解析 YAML 名单；未给出的设置项取默认值
func Parse(data []byte) (*Roster, error) {
	r := &Roster{Settings: model.DefaultSettings()}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "名单文件格式错误")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate 校验名单：至少一名代表、ID 唯一、设置有效
func (r *Roster) Validate() error {
	if len(r.Reps) == 0 {
		return apperrors.ErrNilRoster
	}
	ve := &apperrors.ValidationErrors{}
	seen := make(map[string]bool, len(r.Reps))
	for i, rep := range r.Reps {
		if rep == nil {
			ve.Add(fmt.Sprintf("reps[%d]", i), "empty entry")
			continue
		}
		if rep.ID == "" {
			rep.ID = model.NewID()
		}
		if seen[rep.ID] {
			ve.Add(fmt.Sprintf("reps[%d].id", i), "duplicate id "+rep.ID)
		}
		seen[rep.ID] = true
		if rep.HomePostalCode() == "" {
			ve.Add(fmt.Sprintf("reps[%d].postal_codes", i), "home postal code required")
		}
		rep.Region = rep.Region.Normalize()
	}
	if ve.HasErrors() {
		return ve.ToAppError().WithDetails(ve.Error())
	}
	return r.Settings.Validate()
}

// Seeder 返回历史簿使用的初始状态生成函数
func (r *Roster) Seeder() history.Seeder {
	return func(date string) (*model.DayState, error) {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			return nil, apperrors.InvalidInput("date", "expected YYYY-MM-DD")
		}
		return model.NewDayState(date, r.Reps, r.Settings), nil
	}
}

// Default 内置示例名单：两名都市圈代表、一名南部代表、一名仅限北部的代表
func Default() *Roster {
	return &Roster{
		Settings: model.DefaultSettings(),
		Reps: []*model.Representative{
			{
				ID:          "rep-mesa",
				Name:        "Mesa Crew",
				PostalCodes: []string{"85201", "85203", "85281"},
				Skills:      map[string]int{"Shingle": 3, "Tile": 3, "Flat": 2, "Insurance": 2},
				SalesRank:   1,
				Region:      model.RegionMetro,
			},
			{
				ID:          "rep-phoenix",
				Name:        "Phoenix Crew",
				PostalCodes: []string{"85004", "85301"},
				Skills:      map[string]int{"Shingle": 3, "Tile": 2, "Metal": 2, "Commercial": 3},
				SalesRank:   2,
				Region:      model.RegionMetro,
				Unavailable: map[string][]string{"friday": {"s4"}},
			},
			{
				ID:          "rep-tucson",
				Name:        "Tucson Crew",
				PostalCodes: []string{"85701"},
				Skills:      map[string]int{"Shingle": 2, "Tile": 3, "Flat": 3, "Insurance": 3},
				SalesRank:   3,
				Region:      model.RegionSouth,
			},
			{
				ID:          "rep-flagstaff",
				Name:        "Flagstaff Crew",
				PostalCodes: []string{"86001"},
				Skills:      map[string]int{"Shingle": 3, "Metal": 3},
				SalesRank:   4,
				Region:      model.RegionNorth,
				Territory:   &model.TerritoryRule{Region: model.RegionNorth, Strict: true},
			},
		},
	}
}
