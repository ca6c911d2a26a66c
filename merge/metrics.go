package merge

// Metrics counts the work a merger has performed since construction or since
// the last TakeMetrics call.
type Metrics struct {
	GetMoresScheduled      int64
	KillCursorsScheduled   int64
	ReleaseMemoryScheduled int64
	BatchesReceived        int64
	DocsReceived           int64
	DocsReturned           int64
	RemoteErrors           int64
}

// TakeMetrics returns the counters accumulated so far and resets them.
func (m *Merger) TakeMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.metrics
	m.metrics = Metrics{}
	return out
}
