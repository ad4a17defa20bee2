package region

import (
	"sort"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// edges 邻接城市（无向）
var edges = [][2]string{
	// 都市圈东部
	{"mesa", "tempe"},
	{"mesa", "gilbert"},
	{"mesa", "chandler"},
	{"mesa", "apache junction"},
	{"mesa", "queen creek"},
	{"mesa", "scottsdale"},
	{"mesa", "fountain hills"},
	{"gilbert", "chandler"},
	{"gilbert", "queen creek"},
	{"gilbert", "san tan valley"},
	{"queen creek", "san tan valley"},
	{"apache junction", "gold canyon"},
	{"apache junction", "queen creek"},
	{"apache junction", "san tan valley"},
	{"chandler", "tempe"},
	{"chandler", "phoenix"},
	{"chandler", "maricopa"},
	{"san tan valley", "maricopa"},
	{"fountain hills", "scottsdale"},
	// 都市圈中部
	{"tempe", "phoenix"},
	{"tempe", "scottsdale"},
	{"scottsdale", "phoenix"},
	{"scottsdale", "paradise valley"},
	{"scottsdale", "cave creek"},
	{"paradise valley", "phoenix"},
	{"cave creek", "phoenix"},
	{"cave creek", "anthem"},
	{"anthem", "phoenix"},
	{"phoenix", "glendale"},
	{"phoenix", "laveen"},
	{"phoenix", "tolleson"},
	// 都市圈西部
	{"glendale", "peoria"},
	{"glendale", "el mirage"},
	{"glendale", "tolleson"},
	{"peoria", "surprise"},
	{"peoria", "sun city"},
	{"peoria", "anthem"},
	{"sun city", "sun city west"},
	{"sun city", "surprise"},
	{"sun city", "el mirage"},
	{"sun city west", "surprise"},
	{"surprise", "el mirage"},
	{"el mirage", "litchfield park"},
	{"litchfield park", "goodyear"},
	{"litchfield park", "avondale"},
	{"tolleson", "avondale"},
	{"avondale", "goodyear"},
	{"avondale", "laveen"},
	{"goodyear", "buckeye"},
	// 北部
	{"flagstaff", "sedona"},
	{"flagstaff", "williams"},
	{"flagstaff", "winslow"},
	{"sedona", "cottonwood"},
	{"sedona", "camp verde"},
	{"cottonwood", "clarkdale"},
	{"cottonwood", "camp verde"},
	{"cottonwood", "prescott valley"},
	{"prescott", "prescott valley"},
	{"prescott", "chino valley"},
	{"prescott valley", "chino valley"},
	{"camp verde", "payson"},
	{"payson", "show low"},
	{"williams", "kingman"},
	// 南部
	{"tucson", "oro valley"},
	{"tucson", "marana"},
	{"tucson", "vail"},
	{"tucson", "sahuarita"},
	{"tucson", "catalina"},
	{"oro valley", "catalina"},
	{"oro valley", "marana"},
	{"sahuarita", "green valley"},
	{"green valley", "nogales"},
	{"vail", "benson"},
	{"benson", "sierra vista"},
	{"marana", "eloy"},
	{"eloy", "casa grande"},
	{"casa grande", "maricopa"},
}

var graph = buildGraph(edges)

func buildGraph(pairs [][2]string) map[string]map[string]bool {
	g := make(map[string]map[string]bool)
	link := func(a, b string) {
		if g[a] == nil {
			g[a] = make(map[string]bool)
		}
		g[a][b] = true
	}
	for _, e := range pairs {
		link(e[0], e[1])
		link(e[1], e[0])
	}
	return g
}

// IsAdjacent 检查两个城市是否相邻（不区分大小写）
func IsAdjacent(a, b string) bool {
	return graph[model.NormalizeCity(a)][model.NormalizeCity(b)]
}

// AdjacentToAny 检查城市是否与集合中任一城市相邻
func AdjacentToAny(city string, cities map[string]bool) bool {
	key := model.NormalizeCity(city)
	for c := range cities {
		if graph[key][c] {
			return true
		}
	}
	return false
}

// Neighbors 返回相邻城市（已排序）
func Neighbors(city string) []string {
	out := make([]string, 0)
	for c := range graph[model.NormalizeCity(city)] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// eastToWest 自东向西的城市排序表
var eastToWest = []string{
	"show low", "payson", "winslow", "benson", "sierra vista", "vail", "nogales",
	"green valley", "sahuarita", "tucson", "catalina", "oro valley", "marana",
	"gold canyon", "apache junction", "san tan valley", "queen creek", "fountain hills",
	"mesa", "gilbert", "eloy", "casa grande", "chandler", "maricopa", "scottsdale",
	"tempe", "cave creek", "paradise valley", "flagstaff", "camp verde", "sedona",
	"phoenix", "laveen", "anthem", "cottonwood", "clarkdale", "glendale", "prescott valley",
	"peoria", "tolleson", "prescott", "chino valley", "williams", "el mirage",
	"sun city", "avondale", "litchfield park", "surprise", "sun city west",
	"goodyear", "buckeye", "kingman",
}

var orderIndex = func() map[string]int {
	m := make(map[string]int, len(eastToWest))
	for i, c := range eastToWest {
		m[c] = i
	}
	return m
}()

// OrderIndex 返回城市在东西排序表中的位置，未收录的城市排在最后
func OrderIndex(city string) int {
	if i, ok := orderIndex[model.NormalizeCity(city)]; ok {
		return i
	}
	return len(eastToWest)
}
