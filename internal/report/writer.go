package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"feelens/internal/domain/fees"
	"feelens/pkg/errors"
)

// Write persists a finished report as a timestamped JSON artifact and
// returns the file path.
func Write(dir string, rep *fees.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating results directory")
	}

	name := fmt.Sprintf("%s_data_%s.json", rep.Network, rep.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshaling report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing report file")
	}
	return path, nil
}

// Render prints a human-readable comparison table. The engine itself
// never formats output; this is the presentation edge.
func Render(w io.Writer, rep *fees.Report) error {
	fmt.Fprintf(w, "\n%s fee analysis - %s\n", rep.Network, rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Address: %s\n", rep.Address)
	fmt.Fprintf(w, "Settings: %d user tx/asset, %d examples/asset\n",
		rep.Settings.MaxMyTransactions, rep.Settings.MaxNetworkExamples)
	fmt.Fprintf(w, "Skipped: %d malformed, %d unmapped token, %d filtered; peer fetch failures: %d\n\n",
		rep.Counters.MalformedRecords, rep.Counters.UnmappedTokens,
		rep.Counters.FilteredRecords, rep.Counters.PeerFetchFailures)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tMY TX\tMY AVG FEE\tMY AVG PRICE\tNET TX\tNET AVG FEE\tNET AVG PRICE\tFEE DIFF\tPRICE DIFF")

	for _, r := range rep.Results {
		if r.NoComparisonAvailable {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t0\t-\t-\tn/a\tn/a\n",
				r.AssetKey,
				r.Mine.Count,
				meanCell(r.Mine.FeeTotal),
				meanCell(r.Mine.UnitPrice),
			)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.AssetKey,
			r.Mine.Count,
			meanCell(r.Mine.FeeTotal),
			meanCell(r.Mine.UnitPrice),
			r.Network.Count,
			meanCell(r.Network.FeeTotal),
			meanCell(r.Network.UnitPrice),
			deltaCell(r.FeeDeltaPct),
			deltaCell(r.UnitPriceDeltaPct),
		)
	}

	return tw.Flush()
}

func meanCell(m fees.Mean) string {
	if !m.Defined() {
		return "-"
	}
	return humanize.CommafWithDigits(m.Value.InexactFloat64(), 4)
}

func deltaCell(d *decimal.Decimal) string {
	if d == nil {
		return "n/a"
	}
	sign := ""
	if d.IsPositive() {
		sign = "+"
	}
	return sign + d.StringFixed(2) + "%"
}
