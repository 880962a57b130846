// Package quota is the Token/Quota Manager (spec §4.G): it answers whether
// a bearer token is known, annotates it with any limit it has crossed, and
// tracks usage in the background as streams progress. It is grounded on
// Backend/fastapi/security/tokens.py's verify_token and
// Backend/fastapi/routes/stream_routes.py's track_usage_from_stats.
package quota

import (
	"context"
	"errors"
)

// LimitKind names which quota a token has exceeded. Enforcement is
// advisory only: the gateway's HTTP surface does not refuse a stream on
// either kind, matching verify_token's behavior of annotating rather than
// rejecting.
type LimitKind string

const (
	LimitNone    LimitKind = ""
	LimitDaily   LimitKind = "daily"
	LimitMonthly LimitKind = "monthly"
)

// Help links surfaced alongside an exceeded limit, carried verbatim from
// the original implementation's DAILY_LIMIT_VIDEO/MONTHLY_LIMIT_VIDEO.
const (
	DailyLimitVideo   = "https://bit.ly/3YZFKT5"
	MonthlyLimitVideo = "https://bit.ly/4rfjtgd"
)

// ErrUnknownToken is returned by Verify when the store has no record of the
// token, the advisory-free case that DOES block the request (spec §7: 401).
var ErrUnknownToken = errors.New("quota: unknown or expired token")

// Usage is one time-window's accumulated byte count.
type Usage struct {
	Bytes int64
}

// TokenData is everything Verify needs about a token, read from and
// written back to the Store.
type TokenData struct {
	Token          string
	DailyLimitGB   float64
	MonthlyLimitGB float64
	Daily          Usage
	Monthly        Usage

	LimitExceeded LimitKind
	LimitVideo    string
}

// Store is the persistence boundary for tokens, equivalent to db.py's
// get_api_token/update_token_usage in the original implementation. The
// default implementation is file-backed (store.go); a real deployment is
// expected to swap in a database-backed one without changing Verify or
// Tracker.
type Store interface {
	GetAPIToken(ctx context.Context, token string) (*TokenData, error)
	UpdateTokenUsage(ctx context.Context, token string, deltaBytes int64) error
}

// Verify looks up token and annotates it with any exceeded limit. It never
// blocks a stream for exceeding a limit — only for the token not existing
// at all, mirroring verify_token raising 401 solely on a missing token.
func Verify(ctx context.Context, store Store, token string) (*TokenData, error) {
	data, err := store.GetAPIToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrUnknownToken
	}

	data.LimitExceeded = LimitNone
	data.LimitVideo = ""

	const bytesPerGB = 1024 * 1024 * 1024

	if data.DailyLimitGB > 0 {
		if float64(data.Daily.Bytes)/bytesPerGB >= data.DailyLimitGB {
			data.LimitExceeded = LimitDaily
			data.LimitVideo = DailyLimitVideo
			return data, nil
		}
	}
	if data.MonthlyLimitGB > 0 {
		if float64(data.Monthly.Bytes)/bytesPerGB >= data.MonthlyLimitGB {
			data.LimitExceeded = LimitMonthly
			data.LimitVideo = MonthlyLimitVideo
			return data, nil
		}
	}

	return data, nil
}
