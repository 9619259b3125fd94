// Package export renders reservations as spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/schedule"
)

// bom makes Excel read the file as UTF-8.
var bom = []byte{0xEF, 0xBB, 0xBF}

// Header is the first CSV row.
var Header = []string{"Área", "Responsable", "Personas", "Fecha", "Hora Inicio", "Hora Fin", "Comentario", "Fecha Solicitud"}

// Style selects how dates and times are rendered.
type Style int

const (
	// StyleRaw writes dates and times as stored: YYYY-MM-DD and HH:MM:SS.
	StyleRaw Style = iota
	// StyleArchive writes DD/MM/YYYY dates and HH:MM times.
	StyleArchive
)

// WriteCSV writes the BOM, the header and one row per reservation.
func WriteCSV(w io.Writer, rows []model.Reservation, style Style) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(record(r, style)); err != nil {
			return fmt.Errorf("write reservation %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(r model.Reservation, style Style) []string {
	date, start, end := r.ReservationDate, r.StartTime, r.EndTime
	if style == StyleArchive {
		if t, err := time.Parse(schedule.DateLayout, date); err == nil {
			date = t.Format("02/01/2006")
		}
		start, end = hhmm(start), hhmm(end)
	}
	created := "N/A"
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.Format("02/01/2006")
	}
	return []string{
		r.Area,
		r.Responsible,
		strconv.Itoa(r.NumPeople),
		date,
		start,
		end,
		r.Comment,
		created,
	}
}

func hhmm(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

// DownloadName is the attachment name for an export made on day.
func DownloadName(day time.Time) string {
	return "reservas_" + day.Format(schedule.DateLayout) + ".csv"
}

// MonthName is the file name for a monthly archive.
func MonthName(year int, month time.Month) string {
	return fmt.Sprintf("reservas_%04d-%02d.csv", year, int(month))
}

// PastName is the file name for an archive of everything before at.
func PastName(at time.Time) string {
	return "reservas_hasta_" + at.Format("2006-01-02_150405") + ".csv"
}

// RangeName is the file name for an archive of an explicit date range.
func RangeName(from, to string) string {
	if from == "" {
		from = "inicio"
	}
	if to == "" {
		to = "fin"
	}
	return "reservas_" + from + "_" + to + ".csv"
}
