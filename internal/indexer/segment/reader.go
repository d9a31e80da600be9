package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

// Reader serves lookups from a snapshot file without loading every
// postings record.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []DictEntry
	postBase int64
}

// OpenReader validates the header and loads the term dictionary.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading snapshot header: %w: %w", apperrors.ErrCorruptState, err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("bad magic bytes %x: %w", magic, apperrors.ErrCorruptState)
	}
	header := Header{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		DocsSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported snapshot version %d: %w", header.Version, apperrors.ErrCorruptState)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if err := header.check(info.Size() - int64(FooterSize)); err != nil {
		f.Close()
		return nil, err
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w: %w", apperrors.ErrCorruptState, err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w: %w", apperrors.ErrCorruptState, err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// check rejects sections that do not lie between the header and the
// footer. The header is not covered by the checksum.
func (h Header) check(limit int64) error {
	postEnd := h.PostOffset + h.PostSize
	switch {
	case h.PostOffset < int64(HeaderSize) || !fits(h.PostOffset, h.PostSize, limit):
		return fmt.Errorf("postings section out of range: %w", apperrors.ErrCorruptState)
	case !fits(postEnd, h.DocsSize, limit):
		return fmt.Errorf("document section out of range: %w", apperrors.ErrCorruptState)
	case h.DictOffset < postEnd || !fits(h.DictOffset, h.DictSize, limit):
		return fmt.Errorf("dictionary out of range: %w", apperrors.ErrCorruptState)
	}
	return nil
}

// fits reports whether [off, off+size) lies within [0, limit).
func fits(off, size, limit int64) bool {
	return off >= 0 && size >= 0 && off <= limit && size <= limit-off
}

// Search returns the postings for term, or a zero TermEntry when the term is
// not in the dictionary.
func (r *Reader) Search(term string) (index.TermEntry, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return index.TermEntry{}, nil
	}
	rec, err := r.readPostings(r.dict[idx])
	if err != nil {
		return index.TermEntry{}, err
	}
	return index.TermEntry{Term: term, Skip: rec.Skip, Positional: rec.Positional}, nil
}

func (r *Reader) readPostings(entry DictEntry) (postingsRecord, error) {
	var rec postingsRecord
	if entry.PostLen < 0 || !fits(entry.PostOffset, int64(entry.PostLen), r.header.PostSize) {
		return rec, fmt.Errorf("postings for %q out of bounds: %w", entry.Term, apperrors.ErrCorruptState)
	}
	data := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(data, r.postBase+entry.PostOffset); err != nil {
		return rec, fmt.Errorf("reading postings for %q: %w", entry.Term, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parsing postings for %q: %w: %w", entry.Term, apperrors.ErrCorruptState, err)
	}
	return rec, nil
}

// Load verifies the checksum and materialises the full index.
func (r *Reader) Load() (*index.Index, error) {
	info, err := r.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	bodySize := info.Size() - int64(HeaderSize) - int64(FooterSize)
	if bodySize < 0 {
		return nil, fmt.Errorf("snapshot truncated: %w", apperrors.ErrCorruptState)
	}
	footer := make([]byte, FooterSize)
	if _, err := r.file.ReadAt(footer, info.Size()-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	body := make([]byte, bodySize)
	if _, err := r.file.ReadAt(body, int64(HeaderSize)); err != nil {
		return nil, fmt.Errorf("reading snapshot body: %w", err)
	}
	if want := binary.LittleEndian.Uint32(footer[0:4]); crc32.ChecksumIEEE(body) != want {
		return nil, fmt.Errorf("snapshot checksum mismatch: %w", apperrors.ErrCorruptState)
	}

	docsStart := r.header.PostOffset + r.header.PostSize - int64(HeaderSize)
	if docsStart < 0 || docsStart+r.header.DocsSize > bodySize {
		return nil, fmt.Errorf("document section out of bounds: %w", apperrors.ErrCorruptState)
	}
	var docs []docRecord
	if err := json.Unmarshal(body[docsStart:docsStart+r.header.DocsSize], &docs); err != nil {
		return nil, fmt.Errorf("parsing documents: %w: %w", apperrors.ErrCorruptState, err)
	}

	x := &index.Index{
		Skip:       make(map[string]index.SkipList, len(r.dict)),
		Positional: make(map[string]index.PositionalList, len(r.dict)),
		TF:         make(map[int]map[string]int, len(docs)),
		IDF:        make(map[string]float64, len(r.dict)),
		DocLen:     make(map[int]int, len(docs)),
		DocCount:   int(r.header.DocCount),
		Docs:       make(map[int]index.DocMeta, len(docs)),
		BuiltAt:    time.Unix(0, r.header.CreatedAt).UTC(),
	}
	var total int64
	for _, d := range docs {
		x.Docs[d.ID] = d.Meta
		x.DocLen[d.ID] = d.Len
		x.TF[d.ID] = d.TF
		if x.TF[d.ID] == nil {
			x.TF[d.ID] = map[string]int{}
		}
		total += int64(d.Len)
	}
	if x.DocCount > 0 {
		x.AvgDocLen = float64(total) / float64(x.DocCount)
	}

	postBody := body[r.postBase-int64(HeaderSize):]
	for _, entry := range r.dict {
		end := entry.PostOffset + int64(entry.PostLen)
		if entry.PostLen < 0 || !fits(entry.PostOffset, int64(entry.PostLen), r.header.PostSize) {
			return nil, fmt.Errorf("postings for %q out of bounds: %w", entry.Term, apperrors.ErrCorruptState)
		}
		var rec postingsRecord
		if err := json.Unmarshal(postBody[entry.PostOffset:end], &rec); err != nil {
			return nil, fmt.Errorf("parsing postings for %q: %w: %w", entry.Term, apperrors.ErrCorruptState, err)
		}
		if err := rec.Skip.Validate(); err != nil {
			return nil, fmt.Errorf("postings for %q: %w", entry.Term, err)
		}
		x.Skip[entry.Term] = rec.Skip
		x.Positional[entry.Term] = rec.Positional
		x.IDF[entry.Term] = entry.IDF
	}
	return x, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) CreatedAt() time.Time {
	return time.Unix(0, r.header.CreatedAt).UTC()
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Read opens path, loads the whole index and closes the file.
func Read(path string) (*index.Index, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Load()
}
