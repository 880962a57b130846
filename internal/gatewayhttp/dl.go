package gatewayhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tgstream/gateway/internal/config"
	"github.com/tgstream/gateway/internal/mtproto"
	"github.com/tgstream/gateway/internal/pipeline"
	"github.com/tgstream/gateway/internal/quota"
	"github.com/tgstream/gateway/internal/registry"
)

// copyBufferSize is the buffer io.CopyBuffer uses to move pipeline output
// onto the response writer.
const copyBufferSize = 64 * 1024

// skipHashCheck is the documented bypass value (spec §4.H): an id minted
// with this as its Hash skips the secure_hash comparison entirely.
const skipHashCheck = "SKIP_HASH_CHECK"

// handleDownload implements GET|HEAD /dl/:token/:id/:name, the sole
// streaming route, mirroring stream_handler/media_streamer in the original
// implementation.
func (s *Server) handleDownload(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.Param("token")
	if _, err := quota.Verify(ctx, s.store, token); err != nil {
		if errors.Is(err, quota.ErrUnknownToken) {
			writeError(c, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		s.log.Error("token verify failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "token lookup failed")
		return
	}

	ref, err := s.codec.Decode(c.Param("id"))
	if err != nil || ref.MsgID == 0 {
		writeError(c, http.StatusBadRequest, "invalid id")
		return
	}

	desc, err := s.resolveFile(ctx, ref.ChatID, ref.MsgID)
	if err != nil {
		if errors.Is(err, mtproto.ErrFileNotFound) {
			writeError(c, http.StatusNotFound, "file not found")
			return
		}
		s.log.Error("resolve file failed", zap.Int64("chat_id", ref.ChatID), zap.Int64("msg_id", ref.MsgID), zap.Error(err))
		writeError(c, http.StatusBadGateway, "upstream error")
		return
	}

	if ref.Hash != skipHashCheck && ref.Hash != desc.HashPrefix() {
		writeError(c, http.StatusBadRequest, "Invalid hash")
		return
	}

	rangeHeader := c.Request.Header.Get("Range")
	start, end, err := pipeline.ParseRange(rangeHeader, desc.Size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", desc.Size))
		writeError(c, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable")
		return
	}

	align := pipeline.Align(start, end, config.DefaultChunkSize)

	client := mtproto.SelectClient(s.pool.Clients(), s.pool.Workload, desc.DCID)
	if client == nil {
		writeError(c, http.StatusServiceUnavailable, "no upstream clients available")
		return
	}

	streamID, err := registry.NewStreamID()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "could not allocate stream id")
		return
	}

	rec := &registry.Record{
		StreamID:    streamID,
		ChatID:      desc.ChatID,
		MsgID:       desc.MsgID,
		DCID:        desc.DCID,
		ClientIndex: client.Index,
		PartCount:   align.PartCount,
		Prefetch:    s.cfg.Parallel,
		Parallelism: s.cfg.PreFetch,
		Meta: map[string]string{
			"request_path": c.Request.URL.Path,
			"client_host":  c.ClientIP(),
		},
	}
	s.reg.Start(rec)
	s.pool.Workload.Inc(client.Index)
	s.tracker.Track(ctx, streamID, token)

	reader := pipeline.NewReader(ctx, s.fetchFunc(client, desc), pipeline.Params{
		Offset:       align.Offset,
		ChunkSize:    config.DefaultChunkSize,
		PartCount:    align.PartCount,
		FirstPartCut: align.FirstPartCut,
		LastPartCut:  align.LastPartCut,
		QueueCap:     s.cfg.Parallel,
		InFlight:     s.cfg.PreFetch,
	}, func(n int, elapsed time.Duration) {
		s.reg.Observe(streamID, n, elapsed)
	})

	mimeType := resolveMimeType(desc)
	fileName := resolveFilename(desc, mimeType)
	reqLength := end - start + 1

	w := c.Writer
	header := w.Header()
	header.Set("Content-Type", mimeType)
	header.Set("Content-Length", strconv.FormatInt(reqLength, 10))
	header.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, fileName))
	header.Set("Accept-Ranges", "bytes")
	header.Set("Cache-Control", "public, max-age=3600, immutable")
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
	header.Set("X-Stream-Id", streamID)

	status := http.StatusOK
	if rangeHeader != "" {
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, desc.Size))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if c.Request.Method == http.MethodHead {
		s.finishStream(streamID, client.Index, nil, ctx)
		reader.Close()
		return
	}

	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(w, reader, buf)
	reader.Close()
	s.finishStream(streamID, client.Index, copyErr, ctx)
}

// finishStream settles a stream's terminal status and releases its
// workload slot, distinguishing a client-side cancellation (ctx done) from
// a genuine upstream error.
func (s *Server) finishStream(streamID string, clientIndex int, copyErr error, ctx context.Context) {
	status := registry.StatusFinished
	switch {
	case copyErr != nil && ctx.Err() != nil:
		status = registry.StatusCancelled
	case copyErr != nil:
		status = registry.StatusError
		s.log.Warn("stream copy failed", zap.String("stream_id", streamID), zap.Error(copyErr))
	}
	s.reg.Finish(streamID, status)
	s.pool.Workload.Dec(clientIndex)
}

// fetchFunc closes over the resolved descriptor and selected client so the
// pipeline's FetchFunc signature stays generic.
func (s *Server) fetchFunc(client *mtproto.Client, desc *mtproto.FileDescriptor) pipeline.FetchFunc {
	return func(ctx context.Context, seq int, offset int64) ([]byte, error) {
		return s.fetcher.Fetch(ctx, client, desc, offset, config.DefaultChunkSize)
	}
}

// resolveFile looks up a file's properties through the shared cache,
// resolving against the least-loaded client on a cache miss. The resolving
// client need not be the one that ultimately streams the file — only its
// home session is used, to learn which DC actually holds the file.
func (s *Server) resolveFile(ctx context.Context, chatID, msgID int64) (*mtproto.FileDescriptor, error) {
	return s.cache.Resolve(ctx, chatID, msgID, func(ctx context.Context) (*mtproto.FileDescriptor, error) {
		client := mtproto.SelectClient(s.pool.Clients(), s.pool.Workload, -1)
		if client == nil {
			return nil, mtproto.ErrNoClients
		}
		sess, err := s.pool.SessionFor(ctx, client, client.HomeDC)
		if err != nil {
			return nil, err
		}
		return s.upstream.ResolveFile(ctx, sess, chatID, msgID)
	})
}
