package mtproto

import "testing"

func TestSelectClientPrefersDCAffinity(t *testing.T) {
	clients := []*Client{
		{Index: 0, HomeDC: 2},
		{Index: 1, HomeDC: 4},
		{Index: 2, HomeDC: 4},
	}
	workload := newWorkloadTable([]int{0, 1, 2})
	workload.Inc(1) // client 1 more loaded than client 2, both home DC 4

	got := SelectClient(clients, workload, 4)
	if got == nil || got.Index != 2 {
		t.Fatalf("SelectClient() = %v, want client 2 (least loaded, DC-affine)", got)
	}
}

func TestSelectClientFallsBackToGlobalMinimum(t *testing.T) {
	clients := []*Client{
		{Index: 0, HomeDC: 2},
		{Index: 1, HomeDC: 4},
	}
	workload := newWorkloadTable([]int{0, 1})
	workload.Inc(0)
	workload.Inc(0)

	got := SelectClient(clients, workload, 5) // no client is home to DC 5
	if got == nil || got.Index != 1 {
		t.Fatalf("SelectClient() = %v, want client 1 (globally least loaded)", got)
	}
}

func TestSelectClientEmpty(t *testing.T) {
	workload := newWorkloadTable(nil)
	if got := SelectClient(nil, workload, 2); got != nil {
		t.Fatalf("SelectClient() on empty client list = %v, want nil", got)
	}
}

func TestWorkloadTableDecNeverNegative(t *testing.T) {
	w := newWorkloadTable([]int{0})
	w.Dec(0)
	if got := w.Snapshot()[0]; got != 0 {
		t.Fatalf("Snapshot()[0] = %d, want 0 after Dec below zero", got)
	}
}
