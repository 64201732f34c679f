package feature

import (
	"strings"

	"github.com/rushteam/moviematch/pkg/conv"
	"github.com/rushteam/moviematch/pkg/logging"
)

// ParseGenres 解析数据源中的类型标签：支持列表或逗号分隔的字符串。
// 无法识别的格式记录告警并返回 ok=false，调用方按空标签处理。
func ParseGenres(raw any) ([]string, bool) {
	switch val := raw.(type) {
	case nil:
		return nil, true
	case string:
		return splitGenres(val), true
	case []byte:
		return splitGenres(string(val)), true
	}
	tags, ok := conv.ToStringSlice(raw)
	if !ok {
		logging.Warn().Str("component", "feature").
			Interface("genres", raw).
			Msg("unparseable genre data, using default diversity")
		return nil, false
	}
	return tags, true
}

func splitGenres(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "{}[]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GenreDiversity 返回不同标签的数量，没有标签时为 1。
func GenreDiversity(tags []string) int {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		seen[t] = struct{}{}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}
