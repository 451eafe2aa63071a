package metrics

// CompositionDurationBuckets defines default latency buckets (in seconds)
// for composition run-duration metrics. Benchmark compositions run JVMs
// to completion rather than serving requests, so the range is widened
// from a typical HTTP-latency histogram (sub-second to tens-of-seconds)
// out to tens of minutes.
var CompositionDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600}
