// Package mtproto is the upstream collaborator boundary: it owns
// everything spec §6 describes as "consumed only" from the wire protocol
// (resolve_file, upload_get_file, export/import authorization), plus the
// components built directly on top of it (session pool, file-property
// cache, client selector, chunk fetcher — spec §4.A-D).
package mtproto

import "fmt"

// FileDescriptor is the immutable per-file-version record resolved from a
// (chat_id, msg_id) pair (spec §3). It is only ever used together with a
// session bound to DCID — callers must route chunk fetches through the
// pool's session for this DC, never any other.
type FileDescriptor struct {
	DCID     int
	Size     int64
	UniqueID string
	Location Location
	FileName string
	MimeType string
	ChatID   int64
	MsgID    int64
}

// Location is the opaque upload.getFile location blob, passed verbatim to
// the chunk-fetch RPC. It is a small sum type over the handful of Telegram
// file-location kinds the gateway can stream.
type Location struct {
	Kind          LocationKind
	ID            int64
	AccessHash    int64
	FileReference []byte
	ThumbSize     string
}

type LocationKind int

const (
	LocationDocument LocationKind = iota
	LocationPhoto
)

// HashPrefix returns the first 6 characters of UniqueID, the value the HTTP
// surface compares against the URL-carried secure_hash (spec §4.H).
func (f *FileDescriptor) HashPrefix() string {
	if len(f.UniqueID) < 6 {
		return f.UniqueID
	}
	return f.UniqueID[:6]
}

func (f *FileDescriptor) String() string {
	return fmt.Sprintf("FileDescriptor{dc=%d size=%d unique=%s name=%q}", f.DCID, f.Size, f.UniqueID, f.FileName)
}
