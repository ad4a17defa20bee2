package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
)

// Weights 评分因子权重
type Weights struct {
	Timeframe       float64 `json:"timeframe" yaml:"timeframe" validate:"gte=0"`
	Performance     float64 `json:"performance" yaml:"performance" validate:"gte=0"`
	SkillRoofing    float64 `json:"skillRoofing" yaml:"skill_roofing" validate:"gte=0"`
	SkillSpecialty  float64 `json:"skillSpecialty" yaml:"skill_specialty" validate:"gte=0"`
	DistanceHome    float64 `json:"distanceHome" yaml:"distance_home" validate:"gte=0"`
	DistanceCluster float64 `json:"distanceCluster" yaml:"distance_cluster" validate:"gte=0"`
}

// Sum 返回权重之和
func (w Weights) Sum() float64 {
	return w.Timeframe + w.Performance + w.SkillRoofing + w.SkillSpecialty + w.DistanceHome + w.DistanceCluster
}

// DefaultWeights 默认权重
func DefaultWeights() Weights {
	return Weights{
		Timeframe:       30,
		Performance:     10,
		SkillRoofing:    20,
		SkillSpecialty:  10,
		DistanceHome:    10,
		DistanceCluster: 20,
	}
}

// Settings 当日派工设置
type Settings struct {
	MaxJobsPerRep   int `json:"maxJobsPerRep" yaml:"max_jobs_per_rep" validate:"gte=1"`
	MaxJobsPerSlot  int `json:"maxJobsPerSlot" yaml:"max_jobs_per_slot" validate:"gte=1"`
	MinJobsPerRep   int `json:"minJobsPerRep" yaml:"min_jobs_per_rep" validate:"gte=0,ltefield=MaxJobsPerRep"`
	MaxCitiesPerRep int `json:"maxCitiesPerRep" yaml:"max_cities_per_rep" validate:"gte=1"`

	AllowDoubleBooking             bool `json:"allowDoubleBooking" yaml:"allow_double_booking"`
	AllowAssignOutsideAvailability bool `json:"allowAssignOutsideAvailability" yaml:"allow_assign_outside_availability"`
	StrictTimeframe                bool `json:"strictTimeframe" yaml:"strict_timeframe"`
	AllowRegionalInMetro           bool `json:"allowRegionalInMetro" yaml:"allow_regional_in_metro"`

	Weights               Weights `json:"weights" yaml:"weights"`
	UnavailabilityPenalty float64 `json:"unavailabilityPenalty" yaml:"unavailability_penalty" validate:"gte=0"`
}

// DefaultSettings 默认设置
func DefaultSettings() Settings {
	return Settings{
		MaxJobsPerRep:         4,
		MaxJobsPerSlot:        1,
		MinJobsPerRep:         2,
		MaxCitiesPerRep:       3,
		Weights:               DefaultWeights(),
		UnavailabilityPenalty: 1,
	}
}

var validate = validator.New()

// Validate 校验设置，配置错误属于调用方编程错误
func (s *Settings) Validate() error {
	if s == nil {
		return apperrors.InvalidSettings("settings is nil")
	}
	ve := &apperrors.ValidationErrors{}
	if err := validate.Struct(s); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				ve.Add(fe.Namespace(), fmt.Sprintf("failed '%s' (%v)", fe.Tag(), fe.Value()))
			}
		} else {
			return apperrors.InvalidSettings(err.Error())
		}
	}
	if s.Weights.Sum() <= 0 {
		ve.Add("Settings.Weights", "weights must not all be zero")
	}
	if ve.HasErrors() {
		msgs := make([]string, 0, len(ve.Errors))
		for _, e := range ve.Errors {
			msgs = append(msgs, e.Field+": "+e.Message)
		}
		return apperrors.InvalidSettings(strings.Join(msgs, "; ")).WithCause(ve)
	}
	return nil
}
