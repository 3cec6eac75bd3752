package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// statsMetrics are printed in this order.
var statsMetrics = []struct {
	name  string
	label string
}{
	{"capsteps_samples_ingested_total", "samples"},
	{"capsteps_window_samples", "window"},
	{"capsteps_queue_length", "queue"},
	{"capsteps_wal_size_bytes", "wal_bytes"},
	{"capsteps_dlq_total", "dlq"},
	{"capsteps_counter_resets_total", "resets"},
	{"capsteps_permission_requests_total", "permission_requests"},
}

var (
	statsURL      string
	statsInterval time.Duration
	statsOnce     bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Poll the Prometheus metrics endpoint and print live counters",
	Long: `Polls the metrics endpoint of a running bridge and prints its counters.

Examples:
  capsteps stats
  capsteps stats --url http://localhost:9100/metrics --interval 1s
  capsteps stats --once`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsURL, "url", "", "Prometheus metrics endpoint (default <addr>/metrics)")
	statsCmd.Flags().DurationVar(&statsInterval, "interval", 2*time.Second, "Refresh interval")
	statsCmd.Flags().BoolVar(&statsOnce, "once", false, "Print one snapshot and exit")
}

func runStats(cmd *cobra.Command, _ []string) error {
	url := statsURL
	if url == "" {
		addr, _ := cmd.Flags().GetString("addr")
		url = strings.TrimRight(addr, "/") + "/metrics"
	}
	out := cmd.OutOrStdout()

	if statsOnce {
		return printMetricsSnapshot(cmd.Context(), out, url)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, out, url); err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", warnColor.Sprint("stats error:"), err)
			}
		}
	}
}

func printMetricsSnapshot(ctx context.Context, out io.Writer, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseMetrics(resp.Body)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("[" + time.Now().Format(time.RFC3339) + "]")
	for _, m := range statsMetrics {
		fmt.Fprintf(&b, " %s=%g", keyColor.Sprint(m.label), values[m.name])
	}
	fmt.Fprintln(out, b.String())
	return nil
}

// parseMetrics reads unlabelled capsteps_* samples from the text exposition format.
func parseMetrics(r io.Reader) (map[string]float64, error) {
	values := make(map[string]float64, len(statsMetrics))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, m := range statsMetrics {
			if strings.HasPrefix(line, m.name+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, m.name+" %g", &value); err == nil {
					values[m.name] = value
				}
			}
		}
	}
	return values, scanner.Err()
}
