package quota

import (
	"context"
	"errors"
	"testing"
)

type memStore struct {
	tokens map[string]*TokenData
	calls  int
}

func (m *memStore) GetAPIToken(ctx context.Context, token string) (*TokenData, error) {
	return m.tokens[token], nil
}

func (m *memStore) UpdateTokenUsage(ctx context.Context, token string, deltaBytes int64) error {
	m.calls++
	data, ok := m.tokens[token]
	if !ok {
		return errors.New("unknown token")
	}
	data.Daily.Bytes += deltaBytes
	data.Monthly.Bytes += deltaBytes
	return nil
}

func TestVerifyUnknownToken(t *testing.T) {
	store := &memStore{tokens: map[string]*TokenData{}}
	_, err := Verify(context.Background(), store, "nope")
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("Verify() error = %v, want ErrUnknownToken", err)
	}
}

func TestVerifyWithinLimits(t *testing.T) {
	store := &memStore{tokens: map[string]*TokenData{
		"tok": {Token: "tok", DailyLimitGB: 10, MonthlyLimitGB: 100},
	}}
	data, err := Verify(context.Background(), store, "tok")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if data.LimitExceeded != LimitNone {
		t.Errorf("LimitExceeded = %q, want none", data.LimitExceeded)
	}
}

func TestVerifyDoesNotBlockOnExceededLimit(t *testing.T) {
	const bytesPerGB = 1024 * 1024 * 1024
	store := &memStore{tokens: map[string]*TokenData{
		"tok": {
			Token:        "tok",
			DailyLimitGB: 1,
			Daily:        Usage{Bytes: 2 * bytesPerGB},
		},
	}}
	data, err := Verify(context.Background(), store, "tok")
	if err != nil {
		t.Fatalf("Verify() unexpected error = %v, exceeding a limit must not block", err)
	}
	if data.LimitExceeded != LimitDaily {
		t.Errorf("LimitExceeded = %q, want %q", data.LimitExceeded, LimitDaily)
	}
	if data.LimitVideo != DailyLimitVideo {
		t.Errorf("LimitVideo = %q, want %q", data.LimitVideo, DailyLimitVideo)
	}
}

func TestVerifyMonthlyOverridesOnlyWhenDailyFine(t *testing.T) {
	const bytesPerGB = 1024 * 1024 * 1024
	store := &memStore{tokens: map[string]*TokenData{
		"tok": {
			Token:          "tok",
			MonthlyLimitGB: 5,
			Monthly:        Usage{Bytes: 6 * bytesPerGB},
		},
	}}
	data, err := Verify(context.Background(), store, "tok")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if data.LimitExceeded != LimitMonthly {
		t.Errorf("LimitExceeded = %q, want %q", data.LimitExceeded, LimitMonthly)
	}
}
