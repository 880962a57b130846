package gatewayhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tgstream/gateway/internal/registry"
)

// streamView is the JSON shape of one stream in /stream/stats, matching
// get_stream_stats' per-record field selection (a subset of Record, since
// the endpoint's consumers don't need the internal rolling window).
type streamView struct {
	StreamID    string  `json:"stream_id"`
	ChatID      int64   `json:"chat_id"`
	MsgID       int64   `json:"msg_id"`
	ClientIndex int     `json:"client_index"`
	DCID        int     `json:"dc_id"`
	Status      string  `json:"status"`
	TotalBytes  int64   `json:"total_bytes"`
	InstantMbps float64 `json:"instant_mbps"`
	AvgMbps     float64 `json:"avg_mbps"`
	PeakMbps    float64 `json:"peak_mbps"`
	StartTS     int64   `json:"start_ts"`
	EndTS       int64   `json:"end_ts,omitempty"`
}

func newStreamView(rec registry.Record) streamView {
	v := streamView{
		StreamID:    rec.StreamID,
		ChatID:      rec.ChatID,
		MsgID:       rec.MsgID,
		ClientIndex: rec.ClientIndex,
		DCID:        rec.DCID,
		Status:      string(rec.Status),
		TotalBytes:  rec.TotalBytes,
		InstantMbps: round3(rec.InstantMbps),
		AvgMbps:     round3(rec.AvgMbps),
		PeakMbps:    round3(rec.PeakMbps),
		StartTS:     rec.StartTS.Unix(),
	}
	if !rec.EndTS.IsZero() {
		v.EndTS = rec.EndTS.Unix()
	}
	return v
}

func round3(f float64) float64 {
	const scale = 1000
	return float64(int64(f*scale+0.5)) / scale
}

// handleStats implements GET /stream/stats: a snapshot of every active and
// recently-finished stream, plus the pool's per-client DC assignment and
// workload, matching get_stream_stats.
func (s *Server) handleStats(c *gin.Context) {
	s.reg.Prune()

	active := make([]streamView, 0)
	for _, rec := range s.reg.Snapshot() {
		active = append(active, newStreamView(rec))
	}

	recent := make([]streamView, 0)
	for _, rec := range s.reg.Recent() {
		recent = append(recent, newStreamView(rec))
	}

	clientDCMap := make(map[int]int)
	for _, cl := range s.pool.Clients() {
		clientDCMap[cl.Index] = cl.HomeDC
	}

	c.JSON(http.StatusOK, gin.H{
		"active_streams": active,
		"recent_streams": recent,
		"client_dc_map":  clientDCMap,
		"work_loads":     s.pool.Workload.Snapshot(),
	})
}

// handleStreamDetail implements GET /stream/stats/:stream_id, searching
// active streams first and recent history second, matching
// get_stream_detail.
func (s *Server) handleStreamDetail(c *gin.Context) {
	s.reg.Prune()

	rec, ok := s.reg.Lookup(c.Param("stream_id"))
	if !ok {
		writeError(c, http.StatusNotFound, "stream not found")
		return
	}
	c.JSON(http.StatusOK, newStreamView(rec))
}
