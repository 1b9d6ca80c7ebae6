package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testFrame(tick int64, label jam.Behavior) *jam.Frame {
	x := float64(tick) / 10
	return &jam.Frame{
		Tick:     tick,
		Time:     time.Duration(tick) * 100 * time.Millisecond,
		Control:  jam.ControlVector{x, 1 - x, 0.5},
		Latent:   jam.LatentVector{x, 0.25},
		Label:    label,
		Response: jam.AgentResponse{DensityBias: 0.2, TensionBias: 0.1, TempoHint: 70, FillProbability: 0.05},
		Params:   jam.NewSynthParams(jam.EngineAdditive, [4]float64{x, 0.3, 0.6, 0.1}),
		Timing:   jam.Timing{Total: 2 * time.Millisecond},
		Peak:     0.4,
		Overrun:  tick == 3,
	}
}

func record(t *testing.T, st *Store, n int) Session {
	t.Helper()
	rec, err := NewRecorder(st, Session{Engine: jam.EngineAdditive, Shaper: "temporal", Source: "mock",
		Seed: 7, Tick: 100 * time.Millisecond, SampleRate: 44100}, 4, nil)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	for i := 0; i < n; i++ {
		label := jam.Calm
		if i >= n/2 {
			label = jam.Active
		}
		rec.OnTick(testFrame(int64(i), label))
	}
	if err := rec.Close(map[string]float64{"peak": 0.4}); err != nil {
		t.Fatalf("close: %v", err)
	}
	return rec.Session()
}

func TestRecorder_RoundTrip(t *testing.T) {
	st := openStore(t)
	sess := record(t, st, 10)

	got, err := st.Load(sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Ticks != 10 || got.FinalLabel != jam.Active || got.Seed != 7 {
		t.Errorf("session = %+v", got)
	}
	if got.Tick != 100*time.Millisecond || got.Metrics["peak"] != 0.4 {
		t.Errorf("tick %v metrics %v", got.Tick, got.Metrics)
	}
	if got.EndedAt.IsZero() || !strings.HasPrefix(got.Name, "additive-") {
		t.Errorf("ended %v name %q", got.EndedAt, got.Name)
	}

	rows, err := st.LoadTicks(sess.ID)
	if err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[3]
	if r.Tick != 3 || r.Time != 300*time.Millisecond || !r.Overrun || r.Label != jam.Calm {
		t.Errorf("row 3 = %+v", r)
	}
	if len(r.Control) != 3 || r.Control[0] != 0.3 || r.Latent[1] != 0.25 || r.Params[0] != 0.3 {
		t.Errorf("vectors = %v %v %v", r.Control, r.Latent, r.Params)
	}
	if r.Response.TempoHint != 70 || r.Latency != 2*time.Millisecond {
		t.Errorf("response %+v latency %v", r.Response, r.Latency)
	}
}

func TestStore_ListAndPrefix(t *testing.T) {
	st := openStore(t)
	a := record(t, st, 2)
	record(t, st, 2)

	list, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("sessions = %d", len(list))
	}
	got, err := st.Load(a.ID[:13])
	if err != nil || got.ID != a.ID {
		t.Errorf("prefix load = %v, %v", got, err)
	}
}

func TestStore_NotFound(t *testing.T) {
	st := openStore(t)
	if _, err := st.Load("missing"); !errors.Is(err, jam.ErrSessionNotFound) {
		t.Errorf("load err = %v", err)
	}
	if err := st.Finish("missing", 0, "", nil); !IsNotFound(err) {
		t.Errorf("finish err = %v", err)
	}
	sess := record(t, st, 3)
	if err := st.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.Delete(sess.ID); !IsNotFound(err) {
		t.Errorf("second delete err = %v", err)
	}
	if rows, _ := st.LoadTicks(sess.ID); len(rows) != 0 {
		t.Errorf("ticks survived delete: %d", len(rows))
	}
}

func TestExport(t *testing.T) {
	st := openStore(t)
	sess := record(t, st, 4)
	rows, _ := st.LoadTicks(sess.ID)

	var buf bytes.Buffer
	if err := ExportCSV(&buf, &sess, rows); err != nil {
		t.Fatalf("csv: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("csv rows = %d", len(recs))
	}
	want := "tick,time,u0,u1,u2,z0,z1,label,tempo_density,harmonic_tension,spectral_brightness,noise_balance"
	if got := strings.Join(recs[0][:12], ","); got != want {
		t.Errorf("header = %s", got)
	}

	buf.Reset()
	if err := ExportJSON(&buf, &sess, rows); err != nil {
		t.Fatalf("json: %v", err)
	}
	var doc Export
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Session.ID != sess.ID || len(doc.Ticks) != 4 || doc.ParamNames[0] != "tempo_density" {
		t.Errorf("doc = %+v", doc.Session)
	}
}

func TestSeries(t *testing.T) {
	rows := []TickRow{
		{Control: []float64{0.1}, Latent: []float64{0.2, 0.3}, Params: [4]float64{0.4}, Response: jam.AgentResponse{TempoHint: 90}},
	}
	tests := []struct {
		name string
		want float64
	}{
		{"u0", 0.1},
		{"z1", 0.3},
		{"z5", 0},
		{"tempo", 90},
		{"tempo_density", 0.4},
	}
	for _, tt := range tests {
		got, err := Series(jam.EngineAdditive, rows, tt.name)
		if err != nil || got[0] != tt.want {
			t.Errorf("%s = %v, %v", tt.name, got, err)
		}
	}
	if _, err := Series(jam.EngineAdditive, rows, "pitch"); err == nil {
		t.Error("harmonic noise field accepted for additive session")
	}
}
