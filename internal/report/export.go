package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
)

var csvHeader = []string{
	"timestamp_unix_nanos", "worker_id", "elapsed_nanos", "request_sent", "in_flight",
	"informational_response", "successful_response", "redirection_message",
	"client_error_response", "server_error_response", "other_error_response", "timeouts",
}

// ExportCSV writes one row per worker snapshot.
func ExportCSV(r *Report, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, s := range r.WorkerStats {
		record := []string{
			strconv.FormatInt(s.TimestampUnixNanos, 10),
			strconv.FormatUint(uint64(s.WorkerID), 10),
		}
		for _, v := range []uint64{
			s.ElapsedNanos, s.RequestSent, s.InFlight,
			s.InformationalResponse, s.SuccessfulResponse, s.RedirectionMessage,
			s.ClientErrorResponse, s.ServerErrorResponse, s.OtherErrorResponse,
			s.Timeouts,
		} {
			record = append(record, strconv.FormatUint(v, 10))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ExportJSON writes the whole report as indented JSON.
func ExportJSON(r *Report, filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
