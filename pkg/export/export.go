package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/gridmill/gridmill/core/engine"
)

// WriteJSON writes the full run report to w in JSON format.
func WriteJSON(w io.Writer, rep *engine.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteCSV writes the per-task outcomes to w, one row per dispatched or
// cached task, for spreadsheet review of a run.
func WriteCSV(w io.Writer, rep *engine.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"task", "rule", "status", "seconds", "error"}); err != nil {
		return err
	}
	for _, tr := range rep.Executed {
		rec := []string{
			tr.Key,
			tr.Rule,
			tr.Status,
			strconv.FormatFloat(tr.Duration.Seconds(), 'f', 3, 64),
			tr.Err,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	for _, key := range rep.Cached {
		if err := cw.Write([]string{key, "", "cached", "", ""}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
