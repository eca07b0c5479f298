package rank

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Columns is the header of the exported ranking table.
var Columns = []string{
	"origin", "destination", "dates", "currency",
	"flight_cost_usd", "avg_hotel_usd", "total_cost_usd",
	"weather_score", "activity_score", "travel_time_hours",
	"lat", "lon", "norm_total_cost", "norm_travel_time", "score",
}

// Row renders r as table cells in Columns order. Unavailable costs are empty.
func (r Ranked) Row() []string {
	return []string{
		r.Origin,
		r.Destination,
		r.StartDate + "/" + r.EndDate,
		r.Currency,
		r.FlightCost.String(),
		r.HotelCost.String(),
		r.TotalCost.String(),
		formatFloat(r.WeatherScore),
		formatFloat(r.ActivityScore),
		formatFloat(r.TravelTimeHours),
		formatFloat(r.Lat),
		formatFloat(r.Lon),
		formatFloat(r.NormTotalCost),
		formatFloat(r.NormTravelTime),
		formatFloat(r.Score),
	}
}

// WriteCSV writes the header and one row per ranked record, in order.
func WriteCSV(w io.Writer, ranked []Ranked) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range ranked {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Destination, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
