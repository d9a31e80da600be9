package index

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

// NoSkip marks a SkipEntry without a forward pointer.
const NoSkip = -1

// SkipEntry is one element of a skip-pointer postings list. It serialises
// as the triple [doc_id, skip_index|null, skip_doc_id|null].
type SkipEntry struct {
	DocID     int
	SkipIndex int
	SkipDocID int
}

// HasSkip reports whether the entry carries a forward pointer.
func (e SkipEntry) HasSkip() bool {
	return e.SkipIndex != NoSkip
}

func (e SkipEntry) MarshalJSON() ([]byte, error) {
	if !e.HasSkip() {
		return json.Marshal([3]any{e.DocID, nil, nil})
	}
	return json.Marshal([3]any{e.DocID, e.SkipIndex, e.SkipDocID})
}

func (e *SkipEntry) UnmarshalJSON(data []byte) error {
	var raw []*int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 || raw[0] == nil {
		return fmt.Errorf("skip entry %s: %w", data, apperrors.ErrCorruptState)
	}
	e.DocID = *raw[0]
	e.SkipIndex, e.SkipDocID = NoSkip, 0
	if raw[1] != nil && raw[2] != nil {
		e.SkipIndex, e.SkipDocID = *raw[1], *raw[2]
	}
	return nil
}

// SkipList is a postings list ordered by strictly increasing doc_id.
type SkipList []SkipEntry

// BuildSkipList attaches skip pointers to sorted doc ids. Every
// ceil(sqrt(n))-th entry points that many entries ahead, clamped to the last
// index; a pointer that would land on its own entry is omitted.
func BuildSkipList(docIDs []int) SkipList {
	n := len(docIDs)
	list := make(SkipList, n)
	if n == 0 {
		return list
	}
	freq := int(math.Ceil(math.Sqrt(float64(n))))
	for i, id := range docIDs {
		list[i] = SkipEntry{DocID: id, SkipIndex: NoSkip}
		if i%freq != 0 {
			continue
		}
		target := min(i+freq, n-1)
		if target > i {
			list[i].SkipIndex = target
			list[i].SkipDocID = docIDs[target]
		}
	}
	return list
}

// DocIDs returns the plain doc id sequence.
func (l SkipList) DocIDs() []int {
	ids := make([]int, len(l))
	for i, e := range l {
		ids[i] = e.DocID
	}
	return ids
}

// Validate checks ordering and that every pointer moves forward to the entry
// whose doc_id it records.
func (l SkipList) Validate() error {
	for i, e := range l {
		if i > 0 && e.DocID <= l[i-1].DocID {
			return fmt.Errorf("doc ids not increasing at %d: %w", i, apperrors.ErrCorruptState)
		}
		if !e.HasSkip() {
			continue
		}
		if e.SkipIndex <= i || e.SkipIndex >= len(l) || l[e.SkipIndex].DocID != e.SkipDocID {
			return fmt.Errorf("bad skip pointer at %d: %w", i, apperrors.ErrCorruptState)
		}
	}
	return nil
}

// PositionalEntry lists the token offsets of a term inside one document. It
// serialises as [doc_id, [positions...]].
type PositionalEntry struct {
	DocID     int
	Positions []int
}

func (e PositionalEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.DocID, e.Positions})
}

func (e *PositionalEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("positional entry %s: %w", data, apperrors.ErrCorruptState)
	}
	if err := json.Unmarshal(raw[0], &e.DocID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Positions)
}

// PositionalList is ordered by doc_id.
type PositionalList []PositionalEntry

// Find returns the positions recorded for docID.
func (l PositionalList) Find(docID int) ([]int, bool) {
	i := sort.Search(len(l), func(i int) bool {
		return l[i].DocID >= docID
	})
	if i >= len(l) || l[i].DocID != docID {
		return nil, false
	}
	return l[i].Positions, true
}

// TermEntry carries both postings forms for a single term.
type TermEntry struct {
	Term       string
	Skip       SkipList
	Positional PositionalList
}
