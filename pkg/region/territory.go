package region

import "github.com/roofdispatch/roofdispatch/pkg/model"

// Eligible 检查代表能否服务该城市的任务
// 无法归类区域的任务对所有代表开放
func Eligible(rep *model.Representative, city string, allowRegionalInMetro bool) bool {
	jobRegion := Classify(city)
	if jobRegion == model.RegionUnknown {
		return true
	}

	// 严格区域规则优先于通用规则
	if rule := rep.Territory; rule != nil && rule.Strict {
		if jobRegion == rule.Region.Normalize() {
			return true
		}
		return jobRegion == model.RegionMetro && allowRegionalInMetro
	}

	repRegion := rep.Region.Normalize()
	if repRegion == model.RegionUnknown || repRegion == jobRegion {
		return true
	}
	return repRegion == model.RegionSouth && jobRegion == model.RegionMetro && allowRegionalInMetro
}
