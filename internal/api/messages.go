package api

import (
	"time"

	"github.com/skobkin/phoenixrec/internal/sample"
	"github.com/skobkin/phoenixrec/internal/store"
)

// KindInfo describes one sample kind of the catalog.
type KindInfo struct {
	ID          uint8  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Arity       uint8  `json:"arity"`
}

// Catalog lists every known sample kind.
func Catalog() []KindInfo {
	kinds := sample.Kinds()
	out := make([]KindInfo, 0, len(kinds))
	for _, k := range kinds {
		arity, _ := sample.ArityOf(k)
		out = append(out, KindInfo{
			ID:          uint8(k),
			Name:        k.String(),
			Description: k.Description(),
			Arity:       arity,
		})
	}
	return out
}

// SessionInfo summarises the recording held by a store.
type SessionInfo struct {
	Name       string     `json:"name"`
	Entries    int        `json:"entries"`
	Records    int        `json:"records"`
	Comments   int        `json:"comments"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	ElapsedMS  *int64     `json:"elapsed_ms,omitempty"`
	RightTotal float32    `json:"right_total"`
	LeftTotal  float32    `json:"left_total"`
	Connected  bool       `json:"connected"`
}

// NewSessionInfo builds a summary of st.
func NewSessionInfo(st *store.Store, connected bool) SessionInfo {
	entries := st.Entries()
	info := SessionInfo{
		Name:      st.SessionName(),
		Entries:   len(entries),
		Connected: connected,
	}
	for _, e := range entries {
		if e.IsComment() {
			info.Comments++
		} else {
			info.Records++
		}
	}
	if start := st.StartTime(); !start.IsZero() {
		info.StartedAt = &start
	}
	if elapsed, ok := st.Elapsed(); ok {
		ms := elapsed.Milliseconds()
		info.ElapsedMS = &ms
	}
	info.RightTotal, info.LeftTotal = st.Totals()
	return info
}

// SampleView is the JSON form of a sample.
type SampleView struct {
	Kind   uint8  `json:"kind"`
	Name   string `json:"name"`
	Values string `json:"values"`
}

// EntryView is the JSON form of an entry.
type EntryView struct {
	Kind      string       `json:"kind"`
	ElapsedMS uint64       `json:"elapsed_ms,omitempty"`
	Text      string       `json:"text,omitempty"`
	Samples   []SampleView `json:"samples,omitempty"`
}

// NewEntryView converts e for transport.
func NewEntryView(e store.Entry) EntryView {
	view := EntryView{Kind: e.Kind.String()}
	if e.IsComment() {
		view.Text = e.Text
		return view
	}
	view.ElapsedMS = e.ElapsedMS
	view.Samples = make([]SampleView, 0, len(e.Samples))
	for _, s := range e.Samples {
		view.Samples = append(view.Samples, SampleView{
			Kind:   uint8(s.Kind()),
			Name:   s.Kind().String(),
			Values: sample.EncodeText(s),
		})
	}
	return view
}

// HelloMessage is the initial payload sent on WebSocket connection.
type HelloMessage struct {
	Type    string      `json:"type"`
	Session SessionInfo `json:"session"`
	Kinds   []KindInfo  `json:"kinds"`
}

// NewHelloMessage constructs a hello payload.
func NewHelloMessage(session SessionInfo) HelloMessage {
	return HelloMessage{
		Type:    "hello",
		Session: session,
		Kinds:   Catalog(),
	}
}

// EntryMessage carries one appended entry.
type EntryMessage struct {
	Type  string    `json:"type"`
	Entry EntryView `json:"entry"`
}

// NewEntryMessage constructs an entry payload.
func NewEntryMessage(e store.Entry) EntryMessage {
	return EntryMessage{
		Type:  "entry",
		Entry: NewEntryView(e),
	}
}

// EntriesResponse is a page of stored entries. It is returned by the
// entries endpoint and, with Type set to "backlog", over WebSocket.
type EntriesResponse struct {
	Type    string      `json:"type,omitempty"`
	From    int         `json:"from"`
	Total   int         `json:"total"`
	Entries []EntryView `json:"entries"`
}

// NewEntriesResponse pages entries starting at from, returning at most
// limit entries when limit > 0.
func NewEntriesResponse(entries []store.Entry, from, limit int) EntriesResponse {
	if from < 0 {
		from = 0
	}
	if from > len(entries) {
		from = len(entries)
	}
	end := len(entries)
	if limit > 0 && from+limit < end {
		end = from + limit
	}
	views := make([]EntryView, 0, end-from)
	for _, e := range entries[from:end] {
		views = append(views, NewEntryView(e))
	}
	return EntriesResponse{From: from, Total: len(entries), Entries: views}
}

// ErrorMessage communicates an error condition to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientMessage is a generic envelope used for decoding inbound client messages.
type ClientMessage struct {
	Type string `json:"type"`
}

// BacklogMessage asks for entries starting at From.
type BacklogMessage struct {
	Type string `json:"type"`
	From int    `json:"from"`
}

// PongMessage is the response to a ping.
type PongMessage struct {
	Type string `json:"type"`
}
