package service

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将标准 iCalendar (RFC 5545) 内容解析为工作时段列表，供导入为工时记录。
//
//   - DTSTART/DTEND（或 DURATION）确定时段起止
//   - RRULE 仅支持 DAILY / WEEKLY 展开，其余频率按单次事件处理
//   - EXDATE 排除的日期不生成时段
//   - 全天事件（仅 DATE 值）没有起止时刻，计为跳过
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize    = 5 * 1024 * 1024 // 5MB
	icsMaxOccurrences = 366             // 单个重复事件最多展开的次数
)

// icsSession ICS 解析得到的一个工作时段
type icsSession struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// icsParseResult 解析结果；Skipped 为无法转换的事件数，Problems 记录原因
type icsParseResult struct {
	Sessions []icsSession
	Skipped  int
	Problems []string
}

// ParseICSSessions 解析 ICS 内容，浮动时间按 loc 解释
func ParseICSSessions(reader io.Reader, loc *time.Location) (*icsParseResult, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	result := &icsParseResult{}
	for _, evt := range cal.Events() {
		sessions, problem := parseSessionEvent(evt, loc)
		if problem != "" {
			result.Skipped++
			result.Problems = append(result.Problems, problem)
			continue
		}
		result.Sessions = append(result.Sessions, sessions...)
	}

	sort.SliceStable(result.Sessions, func(i, j int) bool {
		return result.Sessions[i].Start.Before(result.Sessions[j].Start)
	})
	return result, nil
}

// parseSessionEvent 解析单个 VEVENT；无法转换时返回原因
func parseSessionEvent(evt *ics.VEvent, loc *time.Location) ([]icsSession, string) {
	base := icsSession{
		UID:         propValue(evt, ics.ComponentPropertyUniqueId),
		Summary:     propValue(evt, ics.ComponentPropertySummary),
		Description: propValue(evt, ics.ComponentPropertyDescription),
		Location:    propValue(evt, ics.ComponentPropertyLocation),
	}
	label := base.Summary
	if label == "" {
		label = base.UID
	}

	start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return nil, fmt.Sprintf("事件 %q 缺少有效的开始时间", label)
	}
	if allDay {
		return nil, fmt.Sprintf("事件 %q 为全天事件，已跳过", label)
	}

	end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		durProp := evt.GetProperty(ics.ComponentPropertyDuration)
		if durProp == nil {
			return nil, fmt.Sprintf("事件 %q 缺少结束时间", label)
		}
		d, err := parseICSDuration(durProp.Value)
		if err != nil {
			return nil, fmt.Sprintf("事件 %q 的 DURATION 无效: %s", label, durProp.Value)
		}
		end = start.Add(d)
	}
	if !end.After(start) {
		return nil, fmt.Sprintf("事件 %q 的结束时间不晚于开始时间", label)
	}

	length := end.Sub(start)
	starts := expandOccurrences(evt, start, loc)
	sessions := make([]icsSession, 0, len(starts))
	for _, st := range starts {
		s := base
		s.Start = st
		s.End = st.Add(length)
		sessions = append(sessions, s)
	}
	if len(sessions) == 0 {
		return nil, fmt.Sprintf("事件 %q 的所有重复均被排除", label)
	}
	return sessions, ""
}

// expandOccurrences 根据 RRULE / EXDATE 计算每次发生的开始时间
func expandOccurrences(evt *ics.VEvent, dtStart time.Time, loc *time.Location) []time.Time {
	exDates := parseExDates(evt, loc)

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		if exDates[dtStart.In(loc).Format("20060102")] {
			return nil
		}
		return []time.Time{dtStart}
	}

	rule := parseRRule(rruleProp.Value)
	var step func(t time.Time, n int) time.Time
	switch rule.freq {
	case "DAILY":
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }
	case "WEEKLY":
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }
	default:
		// 不支持的频率 → 仅首次
		return []time.Time{dtStart}
	}

	interval := rule.interval
	if interval < 1 {
		interval = 1
	}

	var out []time.Time
	current := dtStart
	for count := 0; count < icsMaxOccurrences; count++ {
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if rule.count > 0 && count >= rule.count {
			break
		}
		if !exDates[current.In(loc).Format("20060102")] {
			out = append(out, current)
		}
		current = step(current, interval)
	}
	return out
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			if n, err := strconv.Atoi(kv[1]); err == nil {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(kv[1]); err == nil {
				r.count = n
			}
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				// 纯日期的 UNTIL 包含当天
				if d, err := time.Parse("20060102", kv[1]); err == nil {
					t = d.Add(24*time.Hour - time.Second)
				}
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE（支持逗号分隔的多个值）
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			v = strings.TrimSpace(v)
			t, err := time.Parse("20060102T150405Z", v)
			if err != nil {
				t, err = time.ParseInLocation("20060102T150405", v, loc)
				if err != nil {
					t, err = time.ParseInLocation("20060102", v, loc)
				}
			}
			if err == nil {
				exDates[t.In(loc).Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，第二个返回值表示是否为全天（DATE）值
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	val := strings.TrimSpace(prop.Value)

	// 检查 TZID 参数
	tzLoc := loc
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			if l, err := time.LoadLocation(v[0]); err == nil {
				tzLoc = l
			}
		}
	}

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.ParseInLocation("20060102T150405", val, tzLoc); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.ParseInLocation("20060102", val, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}

var icsDurationPattern = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseICSDuration 解析 RFC 5545 DURATION，如 PT8H、PT1H30M、P1D
func parseICSDuration(value string) (time.Duration, error) {
	m := icsDurationPattern.FindStringSubmatch(strings.TrimPrefix(strings.TrimSpace(value), "+"))
	if m == nil {
		return 0, fmt.Errorf("无效的 DURATION: %s", value)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		d += time.Duration(n) * unit
	}
	if d <= 0 {
		return 0, fmt.Errorf("无效的 DURATION: %s", value)
	}
	return d, nil
}

func propValue(evt *ics.VEvent, name ics.ComponentProperty) string {
	if p := evt.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

