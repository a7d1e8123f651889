package metrics

import (
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

const namespace = "calloutd_"

// StatsFunc returns the current detector counters.
type StatsFunc func() detector.Stats

// Families converts st into metric families, sorted by name.
func Families(st detector.Stats) []*dto.MetricFamily {
	fams := []*dto.MetricFamily{
		counter("checks_total", "Stylesheet checks run.", float64(st.Checks)),
		counter("changed_checks_total", "Stylesheet checks that changed at least one source.", float64(st.ChangedChecks)),
		counter("registry_generation", "Registry invalidation counter.", float64(st.Generation)),
		gauge("callouts", "Callouts currently tracked.", float64(st.Callouts)),
		gauge("detected_callouts", "Theme and snippet callouts the application does not ship with.", float64(st.Detected)),
		gauge("malformed_selectors", "Snippet selectors mentioning data-callout that could not be parsed.", float64(st.Malformed)),
		gauge("stylesheets", "Stylesheets loaded into the verification resolver.", float64(st.StyleSheets)),
	}

	if !st.LastCheck.IsZero() {
		fams = append(fams, gauge("last_check_timestamp_seconds", "Unix time of the last completed check.",
			float64(st.LastCheck.UnixNano())/1e9))
	}

	bySource := &dto.MetricFamily{
		Name: proto.String(namespace + "source_callouts"),
		Help: proto.String("Callouts declared per source kind."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, kind := range []types.SourceKind{types.KindBuiltin, types.KindTheme, types.KindSnippet, types.KindCustom} {
		bySource.Metric = append(bySource.Metric, &dto.Metric{
			Label: []*dto.LabelPair{label("source", string(kind))},
			Gauge: &dto.Gauge{Value: proto.Float64(float64(st.BySource[kind]))},
		})
	}
	fams = append(fams, bySource)

	method := string(st.FetchMethod)
	if method == "" {
		method = "none"
	}
	info := gauge("builtin_fetch_info", "How the builtin stylesheet was obtained.", 1)
	info.Metric[0].Label = []*dto.LabelPair{label("method", method)}
	fams = append(fams, info)

	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// Handler serves the Prometheus exposition of stats(). The format is
// negotiated from the Accept header and defaults to text.
func Handler(stats StatsFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		format := expfmt.Negotiate(r.Header)
		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range Families(stats()) {
			if err := enc.Encode(mf); err != nil {
				slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
		if c, ok := enc.(expfmt.Closer); ok {
			c.Close() //nolint:errcheck
		}
	})
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
