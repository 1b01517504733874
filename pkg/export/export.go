// Package export renders committed routes for external tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/fleetcore/dispatchd/core/model"
)

// WriteJSON writes the routes to w in JSON format.
func WriteJSON(w io.Writer, routes []model.Route) error {
	enc := json.NewEncoder(w)
	return enc.Encode(routes)
}

// WriteCSV writes the routes to w as one row per routed stop.
func WriteCSV(w io.Writer, routes []model.Route) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vehicle_id", "seq", "stop_id", "status", "eta", "late_seconds"}); err != nil {
		return err
	}
	for _, r := range routes {
		for i, rs := range r.Stops {
			rec := []string{
				r.VehicleID,
				strconv.Itoa(i + 1),
				rs.Stop.ID,
				rs.Stop.Status.String(),
				rs.ProjectedArrival.Format(time.RFC3339),
				strconv.Itoa(rs.TardinessSeconds),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
