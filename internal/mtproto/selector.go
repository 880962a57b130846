package mtproto

// SelectClient is the Client Selector (spec §4.C). It mirrors
// select_best_client in the original implementation, keeping the DC-affinity
// branch live rather than commented out: prefer a client whose home DC
// matches the file's DC, and among those pick the least-loaded one; only
// fall back to a global minimum-workload pick when no client shares the
// file's DC.
func SelectClient(clients []*Client, workload *WorkloadTable, dcID int) *Client {
	if len(clients) == 0 {
		return nil
	}

	loads := workload.Snapshot()

	var affineBest *Client
	affineLoad := -1
	var globalBest *Client
	globalLoad := -1

	// Ties break toward the first client at the lowest load, i.e. toward
	// clients earlier in SessionPool.Clients(), which returns them in
	// configuration order.
	for _, c := range clients {
		load := loads[c.Index]
		if globalBest == nil || load < globalLoad {
			globalBest = c
			globalLoad = load
		}
		if c.HomeDC == dcID {
			if affineBest == nil || load < affineLoad {
				affineBest = c
				affineLoad = load
			}
		}
	}

	if affineBest != nil {
		return affineBest
	}
	return globalBest
}
