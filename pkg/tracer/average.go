package tracer

// Average reduces trace results for one target into a single
// representative breakdown. Phase fields and total are arithmetic means;
// identity fields (URL, method, status, peer, TLS version) come from the
// first sample and size from the last, since those are categorical, not
// additive. Errored samples are not excluded: their partial numeric
// values enter the mean as-is, which can drag the average down. An empty
// input yields a zero-valued breakdown.
func Average(results []*TimingBreakdown) *TimingBreakdown {
	if len(results) == 0 {
		return &TimingBreakdown{}
	}

	n := float64(len(results))
	avg := &TimingBreakdown{
		URL:          results[0].URL,
		Method:       results[0].Method,
		StatusCode:   results[0].StatusCode,
		IPAddress:    results[0].IPAddress,
		TLSVersion:   results[0].TLSVersion,
		ResponseSize: results[len(results)-1].ResponseSize,
	}
	for _, r := range results {
		avg.DNSMs += r.DNSMs
		avg.TCPConnectMs += r.TCPConnectMs
		avg.TLSHandshakeMs += r.TLSHandshakeMs
		avg.ServerProcessingMs += r.ServerProcessingMs
		avg.ContentTransferMs += r.ContentTransferMs
		avg.TotalMs += r.TotalMs
	}
	avg.DNSMs /= n
	avg.TCPConnectMs /= n
	avg.TLSHandshakeMs /= n
	avg.ServerProcessingMs /= n
	avg.ContentTransferMs /= n
	avg.TotalMs /= n
	return avg
}
