// Package export renders a recording as a sparse comma-separated log.
//
// Columns exist only for sample kinds that appear in at least one record.
// A record that lacks a used kind gets "null" placeholders in that kind's
// slots, unless the kind lies past the last kind the record holds.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/skobkin/phoenixrec/internal/sample"
	"github.com/skobkin/phoenixrec/internal/store"
)

const (
	separator = ", "
	// Title is the marker line written after the header.
	Title = "Phoenix data"
	// FileExt is appended to session names by FileName.
	FileExt = ".txt"
)

// Metadata is written into the comment block following the header.
type Metadata struct {
	CreatedAt   time.Time
	User        string
	Host        string
	SessionName string
}

type row struct {
	comment   bool
	text      string
	elapsedMS uint64
	slots     []sample.Sample
}

// Write renders entries to w.
func Write(w io.Writer, entries []store.Entry, meta Metadata) error {
	rows, used := pivot(entries)

	bw := bufio.NewWriter(w)
	writeHeader(bw, used)
	writeMetadata(bw, meta)
	for _, r := range rows {
		if r.comment {
			bw.WriteString("# " + r.text + "\n")
			continue
		}
		writeRecord(bw, r, used)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// WriteFile truncates path and writes the entries of st to it. An empty
// meta.SessionName is taken from st.
func WriteFile(path string, st *store.Store, meta Metadata) (err error) {
	if meta.SessionName == "" {
		meta.SessionName = st.SessionName()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return Write(f, st.Entries(), meta)
}

// FileName builds the export file name for a session.
func FileName(sessionName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, sessionName)
	return name + FileExt
}

// pivot places every record's samples at their kind index and collects
// the sorted set of kinds used anywhere.
func pivot(entries []store.Entry) ([]row, []bool) {
	rows := make([]row, 0, len(entries))
	var used []bool
	for _, e := range entries {
		if e.IsComment() {
			rows = append(rows, row{comment: true, text: e.Text})
			continue
		}
		r := row{elapsedMS: e.ElapsedMS}
		for _, s := range e.Samples {
			idx := int(s.Kind())
			for len(r.slots) <= idx {
				r.slots = append(r.slots, nil)
			}
			r.slots[idx] = s
			for len(used) <= idx {
				used = append(used, false)
			}
			used[idx] = true
		}
		rows = append(rows, r)
	}
	return rows, used
}

func writeHeader(w *bufio.Writer, used []bool) {
	descs := make([]string, 0, len(used))
	for i, ok := range used {
		if !ok {
			continue
		}
		if d := sample.Kind(i).Description(); d != "" {
			descs = append(descs, d)
		}
	}
	w.WriteString("time" + separator + strings.Join(descs, separator) + "\n")
}

func writeMetadata(w *bufio.Writer, meta Metadata) {
	created := meta.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	w.WriteString("# " + Title + "\n")
	fmt.Fprintf(w, "# Created on %s at %s by %s on %s\n",
		created.Format("02-01-2006"), created.Format("15:04:05"), meta.User, meta.Host)
	w.WriteString("# " + meta.SessionName + "\n")
}

func writeRecord(w *bufio.Writer, r row, used []bool) {
	cells := make([]string, 0, len(r.slots))
	for i, s := range r.slots {
		var cell string
		switch {
		case s != nil:
			cell = sample.EncodeText(s)
		case i < len(used) && used[i]:
			// Kinds in the slot range are always in the catalog.
			placeholder, _ := sample.Placeholder(sample.Kind(i))
			cell = sample.EncodeText(placeholder)
		}
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	w.WriteString(strconv.FormatUint(r.elapsedMS, 10) + separator + strings.Join(cells, separator) + "\n")
}
