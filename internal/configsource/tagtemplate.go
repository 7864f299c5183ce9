package configsource

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
)

// TagVariables builds the substitution table exposed inside tag value
// templates: {scheduler}, {year}, {month}, {day}, {hour}, {minute},
// {timezone}.
func TagVariables(now time.Time, namespace string) map[string]string {
	now = now.UTC()
	return map[string]string{
		"scheduler": namespace,
		"year":      fmt.Sprintf("%04d", now.Year()),
		"month":     fmt.Sprintf("%02d", now.Month()),
		"day":       fmt.Sprintf("%02d", now.Day()),
		"hour":      fmt.Sprintf("%02d", now.Hour()),
		"minute":    fmt.Sprintf("%02d", now.Minute()),
		"timezone":  "UTC",
	}
}

// ExpandTags parses a "Key=Value,Key2=Value2" template string and
// substitutes each {var} occurrence against vars, resolved as a single
// left-to-right pass with no re-expansion of a variable's own
// substituted value: tag templates are expanded once, not recursively.
func ExpandTags(template string, vars map[string]string) []engine.Tag {
	if strings.TrimSpace(template) == "" {
		return nil
	}

	var tags []engine.Tag
	for _, part := range strings.Split(template, ",") {
		if key, value, ok := strings.Cut(part, "="); ok {
			tags = append(tags, engine.Tag{Key: key, Value: value})
		} else if len(tags) > 0 {
			// A bare fragment with no "=" continues the previous value,
			// restoring a comma the outer Split consumed.
			last := &tags[len(tags)-1]
			last.Value = last.Value + "," + part
		}
	}

	for i, t := range tags {
		if t.Value == "" {
			continue
		}
		var b strings.Builder
		rest := t.Value
		for {
			open := strings.IndexByte(rest, '{')
			end := -1
			if open >= 0 {
				end = strings.IndexByte(rest[open:], '}')
			}
			if end < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString(rest[:open])
			if varValue, ok := vars[rest[open+1:open+end]]; ok {
				b.WriteString(varValue)
			} else {
				b.WriteString(rest[open : open+end+1])
			}
			rest = rest[open+end+1:]
		}
		tags[i].Value = b.String()
	}
	return tags
}
