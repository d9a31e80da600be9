// Package segment persists a built index as a single snapshot file: a
// fixed 64-byte header, per-term postings records, a document section, a
// term dictionary and a 32-byte footer carrying a CRC32 of everything in
// between.
package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/atomicfile"
)

// MagicBytes identifies a valid .tsix snapshot file.
const (
	MagicBytes    uint32 = 0x54534958
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// Header is the 64-byte header written at the start of every snapshot.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	DocsSize   int64
}

// DictEntry maps a term to its postings record and corpus statistics.
type DictEntry struct {
	Term       string  `json:"t"`
	PostOffset int64   `json:"o"`
	PostLen    int     `json:"l"`
	DocFreq    int     `json:"d"`
	IDF        float64 `json:"i"`
}

type postingsRecord struct {
	Skip       index.SkipList       `json:"s"`
	Positional index.PositionalList `json:"p"`
}

type docRecord struct {
	ID   int            `json:"id"`
	Meta index.DocMeta  `json:"m"`
	Len  int            `json:"n"`
	TF   map[string]int `json:"tf"`
}

// Write atomically replaces path with a snapshot of x.
func Write(path string, x *index.Index) error {
	entries := x.Entries()
	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderSize))

	postingsStart := int64(buf.Len())
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		offset := int64(buf.Len()) - postingsStart
		data, err := json.Marshal(postingsRecord{Skip: entry.Skip, Positional: entry.Positional})
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		buf.Write(data)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(data),
			DocFreq:    len(entry.Skip),
			IDF:        x.IDF[entry.Term],
		})
	}
	postingsSize := int64(buf.Len()) - postingsStart

	docs := make([]docRecord, 0, len(x.Docs))
	for id, meta := range x.Docs {
		docs = append(docs, docRecord{ID: id, Meta: meta, Len: x.DocLen[id], TF: x.TF[id]})
	}
	docsData, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshaling documents: %w", err)
	}
	buf.Write(docsData)

	dictStart := int64(buf.Len())
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	buf.Write(dictData)
	dictSize := int64(buf.Len()) - dictStart

	body := buf.Bytes()[HeaderSize:]
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(body))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(x.DocCount))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	buf.Write(footer)

	out := buf.Bytes()
	h := out[:HeaderSize]
	binary.LittleEndian.PutUint32(h[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(h[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(h[8:12], uint32(len(entries)))
	binary.LittleEndian.PutUint32(h[12:16], uint32(x.DocCount))
	binary.LittleEndian.PutUint64(h[16:24], uint64(x.BuiltAt.UnixNano()))
	binary.LittleEndian.PutUint64(h[24:32], uint64(dictStart))
	binary.LittleEndian.PutUint64(h[32:40], uint64(dictSize))
	binary.LittleEndian.PutUint64(h[40:48], uint64(postingsStart))
	binary.LittleEndian.PutUint64(h[48:56], uint64(postingsSize))
	binary.LittleEndian.PutUint64(h[56:64], uint64(len(docsData)))

	if err := atomicfile.Write(path, out); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
