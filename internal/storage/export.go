package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

// Export is the JSON document written by ExportJSON.
type Export struct {
	Session    Session   `json:"session"`
	ParamNames []string  `json:"param_names"`
	Ticks      []TickRow `json:"ticks"`
}

func ExportJSON(w io.Writer, sess *Session, rows []TickRow) error {
	names := jam.ParamNames(sess.Engine)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{Session: *sess, ParamNames: names[:], Ticks: rows})
}

// ExportCSV writes one row per tick. Control and latent columns are sized
// by the widest row; shorter rows are padded with empty cells.
func ExportCSV(w io.Writer, sess *Session, rows []TickRow) error {
	nc, nz := 0, 0
	for _, r := range rows {
		nc = max(nc, len(r.Control))
		nz = max(nz, len(r.Latent))
	}

	header := []string{"tick", "time"}
	for i := 0; i < nc; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	for i := 0; i < nz; i++ {
		header = append(header, fmt.Sprintf("z%d", i))
	}
	header = append(header, "label")
	for _, n := range jam.ParamNames(sess.Engine) {
		header = append(header, n)
	}
	header = append(header, "density_bias", "tension_bias", "tempo", "fill", "peak", "latency_ms", "overrun")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, r := range rows {
		rec := []string{strconv.FormatInt(r.Tick, 10), f(r.Time.Seconds())}
		rec = appendPadded(rec, r.Control, nc, f)
		rec = appendPadded(rec, r.Latent, nz, f)
		rec = append(rec, string(r.Label))
		for _, p := range r.Params {
			rec = append(rec, f(p))
		}
		rs := r.Response
		rec = append(rec, f(rs.DensityBias), f(rs.TensionBias), f(rs.TempoHint), f(rs.FillProbability),
			f(r.Peak), f(float64(r.Latency)/float64(time.Millisecond)), strconv.FormatBool(r.Overrun))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func appendPadded(rec []string, v []float64, n int, f func(float64) string) []string {
	for i := 0; i < n; i++ {
		if i < len(v) {
			rec = append(rec, f(v[i]))
		} else {
			rec = append(rec, "")
		}
	}
	return rec
}

// SeriesNames lists the names Series accepts for engine.
func SeriesNames(engine jam.EngineKind) []string {
	names := []string{"u0..uN", "z0..zN", "tempo", "density_bias", "tension_bias", "fill", "peak", "latency_ms"}
	for _, p := range jam.ParamNames(engine) {
		names = append(names, p)
	}
	return names
}

// Series extracts one named column from rows. Control and latent components
// are addressed as u<i> and z<i>; parameters by their engine field name.
func Series(engine jam.EngineKind, rows []TickRow, name string) ([]float64, error) {
	pick, err := picker(engine, name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i := range rows {
		out[i] = pick(&rows[i])
	}
	return out, nil
}

func picker(engine jam.EngineKind, name string) (func(*TickRow) float64, error) {
	switch name {
	case "tempo":
		return func(r *TickRow) float64 { return r.Response.TempoHint }, nil
	case "density_bias":
		return func(r *TickRow) float64 { return r.Response.DensityBias }, nil
	case "tension_bias":
		return func(r *TickRow) float64 { return r.Response.TensionBias }, nil
	case "fill":
		return func(r *TickRow) float64 { return r.Response.FillProbability }, nil
	case "peak":
		return func(r *TickRow) float64 { return r.Peak }, nil
	case "latency_ms":
		return func(r *TickRow) float64 { return float64(r.Latency) / float64(time.Millisecond) }, nil
	}
	for i, p := range jam.ParamNames(engine) {
		if p == name {
			return func(r *TickRow) float64 { return r.Params[i] }, nil
		}
	}
	if len(name) > 1 && (name[0] == 'u' || name[0] == 'z') {
		idx, err := strconv.Atoi(name[1:])
		if err == nil && idx >= 0 {
			latent := name[0] == 'z'
			return func(r *TickRow) float64 {
				v := r.Control
				if latent {
					v = r.Latent
				}
				if idx < len(v) {
					return v[idx]
				}
				return 0
			}, nil
		}
	}
	return nil, fmt.Errorf("unknown series %q (have %s)", name, strings.Join(SeriesNames(engine), ", "))
}
