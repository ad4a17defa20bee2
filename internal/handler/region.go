package handler

import (
	"net/http"

	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/region"
)

// CityInfo 城市的区域与相邻城市
type CityInfo struct {
	City      string       `json:"city"`
	Region    model.Region `json:"region"`
	Neighbors []string     `json:"neighbors"`
}

// Regions 返回各区域的城市表
func (h *EngineHandler) Regions(w http.ResponseWriter, r *http.Request) {
	out := make(map[model.Region][]string, 3)
	for _, reg := range []model.Region{model.RegionNorth, model.RegionSouth, model.RegionMetro} {
		out[reg] = region.Cities(reg)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"regions": out})
}

// City 返回城市的区域分类与相邻城市
func (h *EngineHandler) City(w http.ResponseWriter, r *http.Request) {
	city := model.NormalizeCity(r.PathValue("city"))
	respondJSON(w, http.StatusOK, CityInfo{
		City:      city,
		Region:    region.Classify(city),
		Neighbors: region.Neighbors(city),
	})
}
