package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/skobkin/phoenixrec/internal/sample"
	"github.com/skobkin/phoenixrec/internal/store"
)

// DefaultMaxBatchBytes bounds the decompressed size of one batch.
const DefaultMaxBatchBytes int64 = 512 << 20

// encMode uses Core Deterministic Encoding so the same batch always
// produces the same bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// Batches are unbounded on the sending side.
		MaxArrayElements: 1 << 26,
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

type wireEntry struct {
	_         struct{} `cbor:",toarray"`
	Kind      store.EntryKind
	ElapsedMS uint64
	Text      string
	Samples   []sample.Fields
}

// EncodeBatch serialises entries to CBOR.
func EncodeBatch(batch store.Batch) ([]byte, error) {
	out := make([]wireEntry, len(batch))
	for i, e := range batch {
		we := wireEntry{Kind: e.Kind, ElapsedMS: e.ElapsedMS, Text: e.Text}
		if len(e.Samples) > 0 {
			we.Samples = make([]sample.Fields, len(e.Samples))
			for j, s := range e.Samples {
				we.Samples[j] = sample.EncodeFields(s)
			}
		}
		out[i] = we
	}
	data, err := encMode.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

// DecodeBatch parses a CBOR batch produced by EncodeBatch.
func DecodeBatch(data []byte) (store.Batch, error) {
	var in []wireEntry
	if err := decMode.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: decode batch: %v", ErrProtocolViolation, err)
	}
	batch := make(store.Batch, len(in))
	for i, we := range in {
		switch we.Kind {
		case store.EntryRecord:
			samples := make([]sample.Sample, len(we.Samples))
			for j, f := range we.Samples {
				s, err := sample.DecodeFields(f)
				if err != nil {
					return nil, fmt.Errorf("%w: entry %d sample %d: %w", ErrProtocolViolation, i, j, err)
				}
				samples[j] = s
			}
			batch[i] = store.Record(we.ElapsedMS, samples...)
		case store.EntryComment:
			batch[i] = store.Comment(we.Text)
		case store.EntryCommand:
			batch[i] = store.CommandEntry(we.Text)
		default:
			return nil, fmt.Errorf("%w: entry %d has unknown kind %d", ErrProtocolViolation, i, we.Kind)
		}
	}
	return batch, nil
}

// Codec turns batches into frame payloads and back.
type Codec struct {
	compressor    Compressor
	maxBatchBytes int64
}

// NewCodec builds a Codec. A nil compressor selects LZ4 and a
// non-positive limit selects DefaultMaxBatchBytes.
func NewCodec(c Compressor, maxBatchBytes int64) *Codec {
	if c == nil {
		c = LZ4()
	}
	if maxBatchBytes <= 0 {
		maxBatchBytes = DefaultMaxBatchBytes
	}
	return &Codec{compressor: c, maxBatchBytes: maxBatchBytes}
}

// Compression returns the name of the configured compressor.
func (c *Codec) Compression() string {
	return c.compressor.Name()
}

// Marshal encodes and compresses batch.
func (c *Codec) Marshal(batch store.Batch) ([]byte, error) {
	raw, err := EncodeBatch(batch)
	if err != nil {
		return nil, err
	}
	return c.compressor.Compress(raw)
}

// Unmarshal decompresses and decodes a frame payload.
func (c *Codec) Unmarshal(payload []byte) (store.Batch, error) {
	raw, err := c.compressor.Decompress(payload, c.maxBatchBytes)
	if err != nil {
		return nil, err
	}
	return DecodeBatch(raw)
}
