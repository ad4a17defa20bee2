// Package timeframe 解析客户要求的自由文本时间段
package timeframe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// Parser 时间段解析接口
type Parser interface {
	// Window 解析时间窗口，无法解析返回 false
	Window(text string) (model.Window, bool)
	// Slot 返回与时间段重叠最多的时段ID，无重叠返回 false
	Slot(text string) (string, bool)
}

const (
	defaultLength = 120     // 单一时间点的默认窗口长度
	dayEnd        = 24 * 60 // 一天的分钟数
	workdayStart  = 8 * 60
	workdayEnd    = 17 * 60
)

// namedWindow 具名时间段，按顺序匹配
type namedWindow struct {
	keyword string
	window  model.Window
}

var namedWindows = []namedWindow{
	{"afternoon", model.Window{Start: 12 * 60, End: 17 * 60}}, // 先于 noon 匹配
	{"morning", model.Window{Start: 8 * 60, End: 12 * 60}},
	{"evening", model.Window{Start: 16 * 60, End: 19 * 60}},
	{"midday", model.Window{Start: 11 * 60, End: 13 * 60}},
	{"noon", model.Window{Start: 11 * 60, End: 13 * 60}},
	{"lunch", model.Window{Start: 11 * 60, End: 13 * 60}},
}

var openKeywords = []string{"anytime", "any time", "flexible", "all day", "whenever"}

var tokenPattern = regexp.MustCompile(`\bnoon\b|(\d{1,4})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?`)

// TextParser 基于固定时段表的解析器
type TextParser struct {
	slots []model.SlotDef
}

// New 创建解析器
func New(slots []model.SlotDef) *TextParser {
	return &TextParser{slots: slots}
}

// Default 使用默认四时段的解析器
var Default = New(model.DefaultSlots)

// token 一个时间点
type token struct {
	minutes  int
	meridiem string // "am" / "pm" / ""
}

// Window 解析时间窗口
func (p *TextParser) Window(text string) (model.Window, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return model.Window{}, false
	}
	for _, kw := range openKeywords {
		if strings.Contains(s, kw) {
			return model.Window{}, false
		}
	}

	tokens, numeric := scanTokens(s)
	if !numeric {
		return namedWindowFor(s)
	}
	switch len(tokens) {
	case 1:
		return singlePoint(s, tokens[0]), true
	default:
		start, end := inferRange(tokens[0], tokens[1])
		if end <= start {
			return singlePoint(s, tokens[0]), true
		}
		return model.Window{Start: start, End: min(end, dayEnd)}, true
	}
}

// Slot 返回重叠最多的时段，平局取最先的时段
func (p *TextParser) Slot(text string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(text))
	for _, def := range p.slots {
		if key == def.ID {
			return def.ID, true
		}
	}

	w, ok := p.Window(text)
	if !ok {
		return "", false
	}
	bestID, bestOverlap := "", 0
	for _, def := range p.slots {
		if o := def.Window.Overlap(w); o > bestOverlap {
			bestID, bestOverlap = def.ID, o
		}
	}
	return bestID, bestID != ""
}

// Hour 返回要求开始的小时
func (p *TextParser) Hour(text string) (int, bool) {
	w, ok := p.Window(text)
	if !ok {
		return 0, false
	}
	return w.StartHour(), true
}

func namedWindowFor(s string) (model.Window, bool) {
	for _, nw := range namedWindows {
		if strings.Contains(s, nw.keyword) {
			return nw.window, true
		}
	}
	switch s {
	case "am", "a.m.":
		return model.Window{Start: workdayStart, End: 12 * 60}, true
	case "pm", "p.m.":
		return model.Window{Start: 12 * 60, End: workdayEnd}, true
	}
	return model.Window{}, false
}

// singlePoint 单个时间点：after/before 修饰或默认两小时
func singlePoint(s string, t token) model.Window {
	at := resolve(t, "")
	switch {
	case strings.Contains(s, "after"):
		return model.Window{Start: at, End: min(max(at+defaultLength, workdayEnd), dayEnd)}
	case strings.Contains(s, "before"), strings.Contains(s, "by "):
		return model.Window{Start: max(min(workdayStart, at-defaultLength), 0), End: at}
	default:
		return model.Window{Start: at, End: min(at+defaultLength, dayEnd)}
	}
}

// inferRange 推断起止时间的上下午
func inferRange(a, b token) (int, int) {
	switch {
	case a.meridiem == "" && b.meridiem != "":
		end := resolve(b, "")
		start := resolve(a, b.meridiem)
		if start >= end {
			// 如 "11-1pm"：起点取上午
			start = resolve(a, "am")
		}
		return start, end
	case a.meridiem != "" && b.meridiem == "":
		start := resolve(a, "")
		end := resolve(b, a.meridiem)
		if end <= start {
			end = resolve(b, "pm")
		}
		return start, end
	default:
		start := resolve(a, "")
		end := resolve(b, "")
		if a.meridiem == "" && end <= start && end+12*60 <= dayEnd {
			end += 12 * 60
		}
		return start, end
	}
}

// resolve 将时间点转为分钟数；无上下午标记时 1-6 点视为下午，7-11 点为上午，12 点为正午
func resolve(t token, fallback string) int {
	meridiem := t.meridiem
	if meridiem == "" {
		meridiem = fallback
	}
	hour, minute := t.minutes/60, t.minutes%60
	if hour > 12 {
		return t.minutes
	}
	switch meridiem {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour != 12 {
			hour += 12
		}
	default:
		if hour >= 1 && hour <= 6 {
			hour += 12
		}
	}
	return hour*60 + minute
}

// scanTokens 提取最多两个时间点，numeric 表示是否含数字时间
func scanTokens(s string) (tokens []token, numeric bool) {
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		if m[0] == "noon" {
			tokens = append(tokens, token{minutes: 12 * 60, meridiem: "pm"})
		} else if t, ok := parseToken(m[1], m[2], m[3]); ok {
			tokens = append(tokens, t)
			numeric = true
		}
		if len(tokens) == 2 {
			break
		}
	}
	return tokens, numeric
}

func parseToken(digits, minutes, meridiem string) (token, bool) {
	var hour, minute int
	switch {
	case len(digits) >= 3 && minutes == "":
		// 如 "1030am"
		n, _ := strconv.Atoi(digits)
		hour, minute = n/100, n%100
	case len(digits) <= 2:
		hour, _ = strconv.Atoi(digits)
		if minutes != "" {
			minute, _ = strconv.Atoi(minutes)
		}
	default:
		return token{}, false
	}
	if hour > 23 || minute > 59 {
		return token{}, false
	}
	mer := ""
	if meridiem != "" {
		mer = string(meridiem[0]) + "m"
		if hour == 0 || hour > 12 {
			mer = ""
		}
	}
	return token{minutes: hour*60 + minute, meridiem: mer}, true
}
