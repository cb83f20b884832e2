package store

import "github.com/skobkin/phoenixrec/internal/sample"

// EntryKind distinguishes records from comments.
type EntryKind uint8

const (
	EntryRecord EntryKind = iota
	EntryComment
	// EntryCommand is a comment naming an issued robot command. It counts
	// toward the session name.
	EntryCommand
)

func (k EntryKind) String() string {
	switch k {
	case EntryRecord:
		return "record"
	case EntryComment:
		return "comment"
	case EntryCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Entry is one element of a recording: either a timestamped record of
// samples with distinct kinds, or a free-form comment.
type Entry struct {
	Kind      EntryKind
	ElapsedMS uint64
	Samples   []sample.Sample
	Text      string
}

// Batch is an ordered sequence of entries.
type Batch []Entry

// Record builds a record entry.
func Record(elapsedMS uint64, samples ...sample.Sample) Entry {
	return Entry{Kind: EntryRecord, ElapsedMS: elapsedMS, Samples: samples}
}

// Comment builds a comment entry.
func Comment(text string) Entry {
	return Entry{Kind: EntryComment, Text: text}
}

// CommandEntry builds a command entry carrying the command text.
func CommandEntry(text string) Entry {
	return Entry{Kind: EntryCommand, Text: text}
}

// IsComment reports whether e renders as a comment. Command entries do.
func (e Entry) IsComment() bool {
	return e.Kind == EntryComment || e.Kind == EntryCommand
}

// IsCommand reports whether e names an issued command.
func (e Entry) IsCommand() bool {
	return e.Kind == EntryCommand
}

func (e Entry) clone() Entry {
	if e.Samples != nil {
		e.Samples = append([]sample.Sample(nil), e.Samples...)
	}
	return e
}
