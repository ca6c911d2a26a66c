package core

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// TailableMode selects how the merged stream behaves once the initial result
// set is drained.
type TailableMode int

const (
	// TailableNone is the default: every cursor terminates once its peer has
	// no further results.
	TailableNone TailableMode = iota

	// Tailable keeps cursors open past the initial result set; getMores may
	// legitimately return empty batches while the underlying data grows.
	Tailable

	// TailableAwaitData additionally asks peers to block for up to the
	// configured await-data timeout before returning an empty batch, and
	// enables promised-minimum-sort-key tracking for sorted streams.
	TailableAwaitData
)

// String returns the wire name of the mode.
func (m TailableMode) String() string {
	switch m {
	case Tailable:
		return "tailable"
	case TailableAwaitData:
		return "tailableAwaitData"
	default:
		return "none"
	}
}

// RemoteCursorSpec describes one peer cursor participating in a merge: the
// peer's identity and address, the namespace the cursor was opened against,
// the cursor id returned by the peer, and an optional first batch already
// received during cursor establishment.
type RemoteCursorSpec struct {
	PeerID     string
	Addr       string
	Namespace  string
	CursorID   int64
	FirstBatch []Document
}

// CursorResponse is the parsed form of one peer reply to a getMore. CursorID
// is the id under which the cursor remains open; zero means the peer declared
// the cursor exhausted. MinSortKey, when present, is the peer's promise that
// no future document from it will sort below that value. Partial is set by a
// peer that itself returned an incomplete result set.
type CursorResponse struct {
	Batch      []Document
	CursorID   int64
	MinSortKey gjson.Result
	Partial    bool
}

// HasMinSortKey reports whether the reply carried a promised minimum sort key.
func (r CursorResponse) HasMinSortKey() bool { return r.MinSortKey.Exists() }

// ParseCursorResponse decodes a raw peer reply:
//
//	{"ok":true,"cursor":{"id":17,"ns":"db.coll","batch":[...],"minSortKey":...},"partial":false}
//
// A reply with "ok":false is converted into a *RemoteError carrying the
// peer-reported code and message.
func ParseCursorResponse(raw []byte) (CursorResponse, error) {
	if !gjson.ValidBytes(raw) {
		return CursorResponse{}, fmt.Errorf("%w: reply is not valid JSON", ErrMalformedResponse)
	}

	if ok := gjson.GetBytes(raw, "ok"); !ok.Exists() || !ok.Bool() {
		return CursorResponse{}, &RemoteError{
			Code:    int(gjson.GetBytes(raw, "code").Int()),
			Message: gjson.GetBytes(raw, "errmsg").String(),
		}
	}

	cursor := gjson.GetBytes(raw, "cursor")
	if !cursor.IsObject() {
		return CursorResponse{}, fmt.Errorf("%w: reply has no cursor document", ErrMalformedResponse)
	}

	resp := CursorResponse{
		CursorID:   cursor.Get("id").Int(),
		MinSortKey: cursor.Get("minSortKey"),
		Partial:    gjson.GetBytes(raw, "partial").Bool(),
	}
	for _, doc := range cursor.Get("batch").Array() {
		resp.Batch = append(resp.Batch, Document(doc.Raw))
	}

	return resp, nil
}
