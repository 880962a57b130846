package mtproto

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// Session is a bound, authorized RPC handle for one (client, dc) pair. It is
// deliberately opaque outside this package: callers obtain one from
// SessionPool.SessionFor and pass it straight back into FetchChunk.
type Session struct {
	dc  int
	api *tg.Client
}

// Upstream is the wire-protocol collaborator boundary (spec §1's "assumed
// provided by a client library"): file-property lookup, chunk fetch by
// (location, offset, limit) and cross-DC authorisation export/import.
// Per-DC session establishment is not part of it; SessionPool dials those
// connections itself. The gotd-backed implementation lives in gotdUpstream;
// tests substitute a fake.
type Upstream interface {
	// ResolveFile looks up the file referenced by (chatID, msgID) on the
	// given home session and returns its descriptor.
	ResolveFile(ctx context.Context, home Session, chatID, msgID int64) (*FileDescriptor, error)

	// FetchChunk performs a single upload.getFile call against sess.
	FetchChunk(ctx context.Context, sess Session, loc Location, offset int64, limit int) ([]byte, error)

	// ExportAuthorization asks the home DC for a bearer usable to import an
	// authorized session on a foreign DC.
	ExportAuthorization(ctx context.Context, home Session, dc int) (id int64, bytes []byte, err error)

	// ImportAuthorization redeems an exported authorization on sess, which
	// must have been produced by SessionPool.dialForeign against the same dc passed to
	// ExportAuthorization.
	ImportAuthorization(ctx context.Context, sess Session, id int64, bytes []byte) error
}

// gotdUpstream adapts Upstream onto github.com/gotd/td, following the RPC
// call shapes the teacher's extractor/telegram package already uses
// (extractor.go, media.go) for document/photo attribute extraction.
type gotdUpstream struct {
	homeDC int

	mu         sync.Mutex
	accessHash map[int64]int64 // channel id -> access hash, resolved lazily
}

func NewGotdUpstream(homeDC int) Upstream {
	return &gotdUpstream{
		homeDC:     homeDC,
		accessHash: make(map[int64]int64),
	}
}

func (g *gotdUpstream) resolveAccessHash(ctx context.Context, home Session, channelID int64) (int64, error) {
	g.mu.Lock()
	if hash, ok := g.accessHash[channelID]; ok {
		g.mu.Unlock()
		return hash, nil
	}
	g.mu.Unlock()

	// Mirrors the teacher's getAllChannels/resolveChannel pattern
	// (internal/core/extractor/telegram/download.go): scan the dialog list
	// once and cache every channel's access hash for later lookups, since
	// Telegram requires the hash on every subsequent reference.
	dialogs, err := home.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return 0, fmt.Errorf("mtproto: get dialogs: %w", err)
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range chats {
		if ch, ok := c.(*tg.Channel); ok {
			g.accessHash[ch.ID] = ch.AccessHash
		}
	}
	if hash, ok := g.accessHash[channelID]; ok {
		return hash, nil
	}
	return 0, fmt.Errorf("mtproto: channel %d not found in dialog list", channelID)
}

func (g *gotdUpstream) ResolveFile(ctx context.Context, home Session, chatID, msgID int64) (*FileDescriptor, error) {
	hash, err := g.resolveAccessHash(ctx, home, chatID)
	if err != nil {
		return nil, err
	}

	res, err := home.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: &tg.InputChannel{ChannelID: chatID, AccessHash: hash},
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: int(msgID)}},
	})
	if err != nil {
		return nil, fmt.Errorf("mtproto: get messages: %w", err)
	}

	var msgs []tg.MessageClass
	switch m := res.(type) {
	case *tg.MessagesChannelMessages:
		msgs = m.Messages
	case *tg.MessagesMessages:
		msgs = m.Messages
	}
	if len(msgs) == 0 {
		return nil, ErrFileNotFound
	}

	msg, ok := msgs[0].(*tg.Message)
	if !ok || msg.Media == nil {
		return nil, ErrFileNotFound
	}

	desc := &FileDescriptor{DCID: g.homeDC, ChatID: chatID, MsgID: msgID}

	switch media := msg.Media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return nil, ErrFileNotFound
		}
		desc.DCID = doc.DCID
		desc.Size = doc.Size
		desc.UniqueID = fmt.Sprintf("doc:%d", doc.ID)
		desc.MimeType = doc.MimeType
		desc.Location = Location{
			Kind:          LocationDocument,
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}
		for _, attr := range doc.Attributes {
			if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
				desc.FileName = fn.FileName
			}
		}
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.(*tg.Photo)
		if !ok {
			return nil, ErrFileNotFound
		}
		largest := largestPhotoSize(photo.Sizes)
		desc.DCID = photo.DCID
		desc.UniqueID = fmt.Sprintf("photo:%d", photo.ID)
		desc.MimeType = "image/jpeg"
		desc.Location = Location{
			Kind:          LocationPhoto,
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     largest,
		}
	default:
		return nil, ErrFileNotFound
	}

	return desc, nil
}

// largestPhotoSize mirrors the teacher's FindLargestPhotoSize
// (internal/core/extractor/telegram/media.go): pick the biggest area among
// the concrete photo sizes.
func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	best := ""
	bestArea := -1
	for _, s := range sizes {
		var w, h int
		var typ string
		switch ps := s.(type) {
		case *tg.PhotoSize:
			w, h, typ = ps.W, ps.H, ps.Type
		case *tg.PhotoSizeProgressive:
			w, h, typ = ps.W, ps.H, ps.Type
		case *tg.PhotoCachedSize:
			w, h, typ = ps.W, ps.H, ps.Type
		default:
			continue
		}
		if area := w * h; area > bestArea {
			bestArea = area
			best = typ
		}
	}
	return best
}

func (g *gotdUpstream) FetchChunk(ctx context.Context, sess Session, loc Location, offset int64, limit int) ([]byte, error) {
	var inputLoc tg.InputFileLocationClass
	switch loc.Kind {
	case LocationDocument:
		inputLoc = &tg.InputDocumentFileLocation{
			ID:            loc.ID,
			AccessHash:    loc.AccessHash,
			FileReference: loc.FileReference,
		}
	case LocationPhoto:
		inputLoc = &tg.InputPhotoFileLocation{
			ID:            loc.ID,
			AccessHash:    loc.AccessHash,
			FileReference: loc.FileReference,
			ThumbSize:     loc.ThumbSize,
		}
	default:
		return nil, fmt.Errorf("mtproto: unsupported location kind %v", loc.Kind)
	}

	res, err := sess.api.UploadGetFile(ctx, &tg.UploadGetFileRequest{
		Location: inputLoc,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	f, ok := res.(*tg.UploadFile)
	if !ok {
		return nil, fmt.Errorf("mtproto: unexpected upload.getFile response %T", res)
	}
	return f.Bytes, nil
}

func (g *gotdUpstream) ExportAuthorization(ctx context.Context, home Session, dc int) (int64, []byte, error) {
	exported, err := home.api.AuthExportAuthorization(ctx, dc)
	if err != nil {
		return 0, nil, fmt.Errorf("mtproto: export authorization: %w", err)
	}
	return exported.ID, exported.Bytes, nil
}

func (g *gotdUpstream) ImportAuthorization(ctx context.Context, sess Session, id int64, bytes []byte) error {
	_, err := sess.api.AuthImportAuthorization(ctx, &tg.AuthImportAuthorizationRequest{
		ID:    id,
		Bytes: bytes,
	})
	if err != nil {
		return fmt.Errorf("mtproto: import authorization: %w", err)
	}
	return nil
}
