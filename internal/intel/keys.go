package intel

import (
	"sort"
	"strings"
)

// CanonicalKey builds the cache key for a query: the method name with its
// parameters in sorted order, e.g. "pool_metrics(pool=0xabc,window=1h)".
// Keys never carry raw timestamps; windowed queries use the enumerated
// window labels instead.
func CanonicalKey(key string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(key)
	b.WriteByte('(')
	names := make([]string, 0, len(params))
	for name, v := range params {
		if v == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	b.WriteByte(')')
	return b.String()
}

// snapshotKey builds the compact key used in episode intel snapshots:
// the method name followed by parameter values in caller order, e.g.
// "pool_metrics:0xabc:1h".
func snapshotKey(key string, values ...string) string {
	parts := make([]string, 0, 1+len(values))
	parts = append(parts, key)
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ":")
}

// Window labels are the only vocabulary allowed in windowed query keys.
const (
	Window1h  = "1h"
	Window6h  = "6h"
	Window24h = "24h"
)

// WindowFromMinutes maps a minute lookback onto the label vocabulary,
// choosing the nearest label not larger than the input. Inputs below the
// smallest label clamp to it.
func WindowFromMinutes(minutes int) string {
	switch {
	case minutes >= 1440:
		return Window24h
	case minutes >= 360:
		return Window6h
	default:
		return Window1h
	}
}

// WindowFromHours maps an hour lookback the same way.
func WindowFromHours(hours int) string {
	return WindowFromMinutes(hours * 60)
}
