package prometheus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

// ContentType is the text exposition format version written by Handler.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition
// format without touching a global registry.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *authcore.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the exposition text. Metrics that are disabled produce an
// empty 200.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = p.WriteTo(w)
	})
}

// Render returns the exposition text, or "" when metrics are disabled.
func (p *PrometheusExporter) Render() string {
	var buf bytes.Buffer
	_, _ = p.WriteTo(&buf)
	return buf.String()
}

// WriteTo writes one scrape to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: bufio.NewWriter(w)}
	for _, def := range internaldefs.CounterDefs {
		cw.counter(def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		cw.histogram(def.Name, def.Help,
			internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])),
			snapshot.Sums[def.ID].Seconds())
	}
	cw.counter(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)

	if cw.err == nil {
		cw.err = cw.w.Flush()
	}
	return cw.n, cw.err
}

// countingWriter keeps the first write error and stops writing after it.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	n, err := fmt.Fprintf(c.w, format, args...)
	c.n += int64(n)
	c.err = err
}

func (c *countingWriter) header(name, help, kind string) {
	c.printf("# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func (c *countingWriter) counter(name, help string, value uint64) {
	c.header(name, help, "counter")
	c.printf("%s %d\n", name, value)
}

func (c *countingWriter) histogram(name, help string, cumulative [8]uint64, sumSeconds float64) {
	c.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		c.printf("%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	c.printf("%s_sum %s\n", name, strconv.FormatFloat(sumSeconds, 'g', -1, 64))
	c.printf("%s_count %d\n", name, cumulative[len(cumulative)-1])
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
