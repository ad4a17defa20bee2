// Package region 城市区域分类与邻接关系
package region

import (
	"sort"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

var northCities = []string{
	"flagstaff", "sedona", "prescott", "prescott valley", "chino valley",
	"cottonwood", "camp verde", "clarkdale", "williams", "payson",
	"show low", "kingman", "winslow",
}

var southCities = []string{
	"tucson", "oro valley", "marana", "sahuarita", "green valley", "vail",
	"casa grande", "sierra vista", "nogales", "catalina", "benson", "eloy",
}

var metroCities = []string{
	"phoenix", "mesa", "tempe", "chandler", "gilbert", "scottsdale",
	"glendale", "peoria", "surprise", "goodyear", "avondale", "buckeye",
	"queen creek", "san tan valley", "apache junction", "fountain hills",
	"cave creek", "paradise valley", "sun city", "sun city west", "litchfield park",
	"tolleson", "laveen", "anthem", "maricopa", "gold canyon", "el mirage",
}

// regionSets 按匹配优先级排列
var regionSets = []struct {
	region model.Region
	cities map[string]bool
}{
	{model.RegionNorth, toSet(northCities)},
	{model.RegionSouth, toSet(southCities)},
	{model.RegionMetro, toSet(metroCities)},
}

func toSet(cities []string) map[string]bool {
	set := make(map[string]bool, len(cities))
	for _, c := range cities {
		set[c] = true
	}
	return set
}

// Classify 返回城市所属区域，首个命中的集合生效，未命中返回未知
func Classify(city string) model.Region {
	key := model.NormalizeCity(city)
	if key == "" {
		return model.RegionUnknown
	}
	for _, rs := range regionSets {
		if rs.cities[key] {
			return rs.region
		}
	}
	return model.RegionUnknown
}

// Cities 返回某区域的全部城市（已排序）
func Cities(r model.Region) []string {
	for _, rs := range regionSets {
		if rs.region == r {
			out := make([]string, 0, len(rs.cities))
			for c := range rs.cities {
				out = append(out, c)
			}
			sort.Strings(out)
			return out
		}
	}
	return nil
}
