package core

import (
	"github.com/tidwall/gjson"
)

// SortKeyField is the metadata field peers attach to every document of a
// sorted stream. For a compound sort it holds an array with one element per
// sort component; when the whole-key comparison mode is in effect it holds
// the bare scalar itself.
const SortKeyField = "$sortKey"

// Document is a single result document as received from a peer: raw JSON
// bytes. Documents are treated as immutable after receipt.
type Document []byte

// SortKey extracts the materialized sort key attached by the peer. The
// second return value reports whether the document carries one.
func (d Document) SortKey() (gjson.Result, bool) {
	key := gjson.GetBytes(d, SortKeyField)
	return key, key.Exists()
}

// SortField names one component of a requested sort order together with its
// direction. Only the direction participates in comparisons: peers ship the
// already-extracted key values in document order under SortKeyField.
type SortField struct {
	Name string
	Desc bool
}

// Sort is an ordered sort specification. An empty Sort means results are
// merged in arrival order with no cross-peer ordering guarantee.
type Sort []SortField

// IsSorted reports whether the sort has any fields, i.e. whether results
// should be merged in order rather than by arrival.
func (s Sort) IsSorted() bool { return len(s) > 0 }

// QueryResult is the value produced by one successful NextReady call. It
// distinguishes three cases callers must not collapse:
//
//   - a document (Doc != nil)
//   - an empty placeholder: the stream is open but has nothing yet, only
//     produced for tailable streams (Doc == nil, EOF == false)
//   - end-of-stream: every peer is exhausted (EOF == true)
type QueryResult struct {
	Doc Document
	EOF bool
}

// IsEmptyMarker reports whether the result is the "stream open, nothing yet"
// placeholder.
func (r QueryResult) IsEmptyMarker() bool { return r.Doc == nil && !r.EOF }
