package mtproto

import (
	"context"
	"errors"
	"testing"
)

// fakeUpstream lets fetch_test drive FetchChunk without a real connection.
type fakeUpstream struct {
	fetchCalls int
	failTimes  int
	fetchErr   error
	data       []byte
}

func (f *fakeUpstream) ResolveFile(ctx context.Context, home Session, chatID, msgID int64) (*FileDescriptor, error) {
	return nil, errors.New("not used in this test")
}

func (f *fakeUpstream) FetchChunk(ctx context.Context, sess Session, loc Location, offset int64, limit int) ([]byte, error) {
	f.fetchCalls++
	if f.fetchCalls <= f.failTimes {
		return nil, f.fetchErr
	}
	return f.data, nil
}

func (f *fakeUpstream) ExportAuthorization(ctx context.Context, home Session, dc int) (int64, []byte, error) {
	return 1, []byte("bytes"), nil
}

func (f *fakeUpstream) ImportAuthorization(ctx context.Context, sess Session, id int64, bytes []byte) error {
	return nil
}

func newTestPoolClient(index, dc int) (*SessionPool, *Client) {
	c := &Client{Index: index, HomeDC: dc, sessions: map[int]Session{dc: {dc: dc}}}
	pool := &SessionPool{clients: []*Client{c}, Workload: newWorkloadTable([]int{index})}
	return pool, c
}

func TestFetcherRetriesTransientFailures(t *testing.T) {
	up := &fakeUpstream{failTimes: 2, fetchErr: errors.New("temporary"), data: []byte("chunk")}
	pool, c := newTestPoolClient(0, 2)
	f := NewFetcher(pool, up)

	desc := &FileDescriptor{DCID: 2}
	got, err := f.Fetch(context.Background(), c, desc, 0, 1024)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != "chunk" {
		t.Fatalf("Fetch() = %q, want %q", got, "chunk")
	}
	if up.fetchCalls != 3 {
		t.Fatalf("fetchCalls = %d, want 3", up.fetchCalls)
	}
}

func TestFetcherGivesUpAfterMaxAttempts(t *testing.T) {
	up := &fakeUpstream{failTimes: fetchAttempts, fetchErr: errors.New("permanent")}
	pool, c := newTestPoolClient(0, 2)
	f := NewFetcher(pool, up)

	desc := &FileDescriptor{DCID: 2}
	_, err := f.Fetch(context.Background(), c, desc, 0, 1024)
	if err == nil {
		t.Fatal("Fetch() expected error after exhausting retries, got nil")
	}
	if up.fetchCalls != fetchAttempts {
		t.Fatalf("fetchCalls = %d, want %d", up.fetchCalls, fetchAttempts)
	}
}

func TestFetcherRespectsCancellation(t *testing.T) {
	up := &fakeUpstream{failTimes: fetchAttempts, fetchErr: errors.New("permanent")}
	pool, c := newTestPoolClient(0, 2)
	f := NewFetcher(pool, up)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	desc := &FileDescriptor{DCID: 2}
	_, err := f.Fetch(ctx, c, desc, 0, 1024)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}
}
