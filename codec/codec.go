// Package codec implements the binary postings record format shared by
// bucket spill files and the final postings file (spec §4.C):
//
//	termLength : u32 (LE)
//	termBytes  : termLength bytes (UTF-8)
//	df         : u32 (LE)
//	repeated df times:
//	  docGap   : u32 (LE)   // docId - previousDocId (0 initially)
//	  tf       : u32 (LE)   // number of positions
//	  repeated tf times:
//	    posGap : u32 (LE)   // position - previousPosition (0 initially)
//
// Encoding and decoding share this file the way the teacher's
// serialization.go paired an indexEncoder/indexDecoder around one byte
// buffer; here the payload is gap-encoded postings rather than skip-list
// tower pointers.
package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mzieve/spindex/errs"
	"github.com/mzieve/spindex/posting"
)

// Record is a single term's decoded postings, as returned by Decode.
type Record struct {
	Term     string
	Postings []posting.Posting
}

// Encode serializes term and its postings list in the format above.
// postings must already be sorted ascending by DocID (spec invariant);
// Encode rejects unsorted input rather than silently re-sorting it, per
// the §4.C encoder contract. An empty postings list is rejected too: a
// term with zero postings must never be written (spec §4.E tie-breaks).
func Encode(w io.Writer, term string, postings []posting.Posting) error {
	if len(postings) == 0 {
		return &errs.ProtocolError{Detail: fmt.Sprintf("encode %q: empty postings list", term)}
	}
	for i := 1; i < len(postings); i++ {
		if postings[i].DocID <= postings[i-1].DocID {
			return &errs.ProtocolError{Detail: fmt.Sprintf("encode %q: postings not strictly sorted by docId at index %d", term, i)}
		}
	}

	buf := make([]byte, 0, 64)
	buf = appendU32(buf, uint32(len(term)))
	buf = append(buf, term...)
	buf = appendU32(buf, uint32(len(postings)))

	var prevDoc posting.DocId
	for _, p := range postings {
		buf = appendU32(buf, uint32(p.DocID-prevDoc))
		prevDoc = p.DocID

		if len(p.Positions) == 0 {
			return &errs.ProtocolError{Detail: fmt.Sprintf("encode %q: posting for doc %d has no positions", term, p.DocID)}
		}
		buf = appendU32(buf, uint32(len(p.Positions)))

		var prevPos posting.Position
		for j, pos := range p.Positions {
			if j > 0 && pos <= p.Positions[j-1] {
				return &errs.ProtocolError{Detail: fmt.Sprintf("encode %q: positions not strictly ascending for doc %d", term, p.DocID)}
			}
			buf = appendU32(buf, uint32(pos-prevPos))
			prevPos = pos
		}
	}

	_, err := w.Write(buf)
	if err != nil {
		return &errs.ResourceError{Op: "codec.Encode write", Err: err}
	}
	return nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// reader is a minimal wrapper so both Decode and DecodeSkip
// can report "truncated record" precisely instead of returning a bare
// io.ErrUnexpectedEOF from deep inside a loop.
type reader struct {
	r   io.Reader
	buf [4]byte
}

func (rd *reader) u32(field string) (uint32, error) {
	if _, err := io.ReadFull(rd.r, rd.buf[:]); err != nil {
		return 0, &errs.IndexCorruption{Detail: fmt.Sprintf("truncated record reading %s", field), Err: err}
	}
	return binary.LittleEndian.Uint32(rd.buf[:]), nil
}

// AtEnd reports whether br is cleanly exhausted — no bytes left to read —
// which callers sequencing back-to-back records (bucket files, the final
// postings file) use to distinguish a legitimate end of stream from a
// truncated record. A non-empty remainder means the next byte begins a
// new record; Decode/DecodeSkip are responsible for treating any failure
// partway through that record as corruption.
func AtEnd(br *bufio.Reader) (bool, error) {
	_, err := br.Peek(1)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, &errs.ResourceError{Op: "codec.AtEnd peek", Err: err}
	}
	return false, nil
}

func (rd *reader) bytes(n uint32, field string) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(rd.r, out); err != nil {
		return nil, &errs.IndexCorruption{Detail: fmt.Sprintf("truncated record reading %s", field), Err: err}
	}
	return out, nil
}

func (rd *reader) skip(n int64, field string) error {
	if seeker, ok := rd.r.(io.Seeker); ok {
		if n == 0 {
			return nil
		}
		// Seeking past the end succeeds on files and section readers, so
		// seek to the last skipped byte and read it to detect truncation.
		if _, err := seeker.Seek(n-1, io.SeekCurrent); err != nil {
			return &errs.IndexCorruption{Detail: fmt.Sprintf("truncated record skipping %s", field), Err: err}
		}
		if _, err := io.ReadFull(rd.r, rd.buf[:1]); err != nil {
			return &errs.IndexCorruption{Detail: fmt.Sprintf("truncated record skipping %s", field), Err: err}
		}
		return nil
	}
	if _, err := io.CopyN(io.Discard, rd.r, n); err != nil {
		return &errs.IndexCorruption{Detail: fmt.Sprintf("truncated record skipping %s", field), Err: err}
	}
	return nil
}

// readTermPrefix reads the termLength/termBytes prefix shared by both
// decode paths. Returns the term.
func readTermPrefix(rd *reader) (string, error) {
	termLen, err := rd.u32("termLength")
	if err != nil {
		return "", err
	}
	termBytes, err := rd.bytes(termLen, "termBytes")
	if err != nil {
		return "", err
	}
	return string(termBytes), nil
}

// Decode reads one full record — term, df, and every posting with its
// ordered positions — from r.
func Decode(r io.Reader) (Record, error) {
	rd := &reader{r: r}
	term, err := readTermPrefix(rd)
	if err != nil {
		return Record{}, err
	}
	df, err := rd.u32("df")
	if err != nil {
		return Record{}, err
	}

	postings := make([]posting.Posting, 0, df)
	var prevDoc posting.DocId
	for i := uint32(0); i < df; i++ {
		docGap, err := rd.u32("docGap")
		if err != nil {
			return Record{}, err
		}
		prevDoc += posting.DocId(docGap)

		tf, err := rd.u32("tf")
		if err != nil {
			return Record{}, err
		}

		positions := make([]posting.Position, tf)
		var prevPos posting.Position
		for j := uint32(0); j < tf; j++ {
			posGap, err := rd.u32("posGap")
			if err != nil {
				return Record{}, err
			}
			prevPos += posting.Position(posGap)
			positions[j] = prevPos
		}

		postings = append(postings, posting.Posting{DocID: prevDoc, Positions: positions})
	}

	return Record{Term: term, Postings: postings}, nil
}

// DecodeSkip reads df and, for every posting, docGap and tf — then
// advances the stream by 4*tf bytes without materializing positions.
// This is the required fast path for non-phrase queries (spec §4.C).
func DecodeSkip(r io.Reader) (Record, error) {
	rd := &reader{r: r}
	term, err := readTermPrefix(rd)
	if err != nil {
		return Record{}, err
	}
	df, err := rd.u32("df")
	if err != nil {
		return Record{}, err
	}

	postings := make([]posting.Posting, 0, df)
	var prevDoc posting.DocId
	for i := uint32(0); i < df; i++ {
		docGap, err := rd.u32("docGap")
		if err != nil {
			return Record{}, err
		}
		prevDoc += posting.DocId(docGap)

		tf, err := rd.u32("tf")
		if err != nil {
			return Record{}, err
		}
		if err := rd.skip(int64(tf)*4, "positions"); err != nil {
			return Record{}, err
		}

		postings = append(postings, posting.WithSkipTermFrequency(prevDoc, int(tf)))
	}

	return Record{Term: term, Postings: postings}, nil
}

// PeekTerm reads just the term prefix and rewinds, used by readers that
// need to validate the term before committing to a full/skip decode. rs
// must be an io.ReadSeeker positioned at the start of a record.
func PeekTerm(rs io.ReadSeeker) (string, error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", &errs.ResourceError{Op: "codec.PeekTerm seek", Err: err}
	}
	rd := &reader{r: rs}
	term, err := readTermPrefix(rd)
	if err != nil {
		return "", err
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return "", &errs.ResourceError{Op: "codec.PeekTerm rewind", Err: err}
	}
	return term, nil
}

// EncodeToBytes is a convenience wrapper returning the encoded record as
// a standalone byte slice, used by the builder's merge step, which writes
// each record in one call and advances its postings-file offset by the
// record's length.
func EncodeToBytes(term string, postings []posting.Posting) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, term, postings); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
