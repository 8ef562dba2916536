package cleanup

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/interfaces"
)

const (
	cyan      = "\033[38;2;86;182;194m"
	dimCyan   = "\033[38;2;47;91;102m"
	dimGrey   = "\033[38;2;75;82;99m"
	white     = "\033[38;2;171;178;191m"
	dimPurple = "\033[38;2;142;87;158m"
	reset     = "\033[0m"
	bold      = "\033[1m"
)

// Reporter prints an ascii summary of the live sessions for verbose cleanup runs.
type Reporter struct {
	cache interfaces.SessionCache
	out   io.Writer
}

func NewReporter(cache interfaces.SessionCache, out io.Writer) *Reporter {
	return &Reporter{cache: cache, out: out}
}

// WriteReport writes the current report to the reporter's output.
func (r *Reporter) WriteReport() {
	fmt.Fprint(r.out, r.GenerateReport())
}

// GenerateReport renders the header and the per-dashboard session counts.
func (r *Reporter) GenerateReport() string {
	var report strings.Builder
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 MST")
	report.WriteString(fmt.Sprintf("%s%s▓ %s | Filter sessions: %s%d%s\n",
		bold, dimCyan, timestamp, white, r.cache.SessionCount(), reset))

	counts := r.cache.SessionCounts()
	dashboards := make([]string, 0, len(counts))
	for d := range counts {
		dashboards = append(dashboards, string(d))
	}
	sort.Strings(dashboards)

	var line strings.Builder
	line.WriteString(fmt.Sprintf("%s✦ dashboards:%s", cyan, reset))
	if len(dashboards) == 0 {
		line.WriteString(fmt.Sprintf(" %s--%s", dimGrey, reset))
	}
	for _, name := range dashboards {
		line.WriteString(fmt.Sprintf(" %s%s:%s%d%s", dimPurple, name, white, counts[filters.Dashboard(name)], reset))
	}
	report.WriteString(line.String() + "\n")
	return report.String()
}
