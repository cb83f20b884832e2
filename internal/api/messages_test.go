package api

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/skobkin/phoenixrec/internal/sample"
	"github.com/skobkin/phoenixrec/internal/store"
)

func TestNewEntriesResponsePaging(t *testing.T) {
	t.Parallel()

	entries := []store.Entry{
		store.Comment("a"),
		store.Record(10, sample.Distance{Value: 3}),
		store.Comment("b"),
	}

	testCases := []struct {
		name      string
		from      int
		limit     int
		wantFrom  int
		wantCount int
	}{
		{"All", 0, 0, 0, 3},
		{"Limited", 0, 2, 0, 2},
		{"Offset", 1, 5, 1, 2},
		{"PastEnd", 9, 5, 3, 0},
		{"Negative", -4, 1, 0, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := NewEntriesResponse(entries, tc.from, tc.limit)
			if resp.Total != 3 {
				t.Fatalf("unexpected total %d", resp.Total)
			}
			if resp.From != tc.wantFrom || len(resp.Entries) != tc.wantCount {
				t.Fatalf("got from=%d count=%d, want from=%d count=%d", resp.From, len(resp.Entries), tc.wantFrom, tc.wantCount)
			}
		})
	}
}

func TestNewEntryView(t *testing.T) {
	t.Parallel()

	record := NewEntryView(store.Record(250, sample.RGB{
		Right: sample.RGBValue{R: 1, G: 2, B: 3},
		Left:  sample.RGBValue{R: 4, G: 5, B: 6},
	}))
	if record.Kind != "record" || record.ElapsedMS != 250 || record.Text != "" {
		t.Fatalf("unexpected record view %+v", record)
	}
	if len(record.Samples) != 1 || record.Samples[0].Values != "1, 2, 3, 4, 5, 6" {
		t.Fatalf("unexpected samples %+v", record.Samples)
	}
	if record.Samples[0].Kind != uint8(sample.KindRGB) {
		t.Fatalf("unexpected sample kind %d", record.Samples[0].Kind)
	}

	comment := NewEntryView(store.Comment("note"))
	data, err := json.Marshal(comment)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "samples") || strings.Contains(string(data), "elapsed_ms") {
		t.Fatalf("comment view must omit record fields: %s", data)
	}
}

func TestNewSessionInfo(t *testing.T) {
	t.Parallel()

	st := store.New()
	info := NewSessionInfo(st, false)
	if info.StartedAt != nil || info.ElapsedMS != nil || info.Entries != 0 {
		t.Fatalf("unexpected empty session info %+v", info)
	}

	st.AppendCommand(store.Turn{Angle: 90})
	if _, err := st.AppendRecord(sample.SyncError{Value: 1}); err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	info = NewSessionInfo(st, true)
	if info.Entries != 2 || info.Records != 1 || info.Comments != 1 || !info.Connected {
		t.Fatalf("unexpected session info %+v", info)
	}
	if info.Name != "data_Turn(90)" || info.StartedAt == nil || info.ElapsedMS == nil {
		t.Fatalf("unexpected session info %+v", info)
	}
}

func TestCatalogCoversKinds(t *testing.T) {
	t.Parallel()

	catalog := Catalog()
	for i, k := range sample.Kinds() {
		if catalog[i].ID != uint8(k) || catalog[i].Name != k.String() {
			t.Fatalf("catalog entry %d mismatch: %+v", i, catalog[i])
		}
	}
}
