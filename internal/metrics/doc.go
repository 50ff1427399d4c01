// Package metrics exposes relayview activity as Prometheus metrics.
//
// Metrics implements the fetch observer (one sample per relay attempt) and
// the pipeline recorder (one sample per finished navigation), and provides
// a gin middleware for the serve command's own HTTP traffic.
//
//	m := metrics.New()
//	fetcher, _ := fetch.NewFetcher(fetch.WithObserver(m))
//	controller := pipeline.NewController(fetcher, pipeline.WithRecorder(m))
//	router.GET("/metrics", gin.WrapH(m.Handler()))
package metrics
