//go:build !prometheus

package dispatch

// Metric hooks compile to nothing unless the prometheus build tag is set.

func metricAccepted()     {}
func metricRequest()      {}
func metricTimeout()      {}
func metricSlabHit()      {}
func metricSlabMiss()     {}
func metricParseFailed()  {}
func metricDisconnected() {}
