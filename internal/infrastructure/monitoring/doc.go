/*
Package monitoring provides Prometheus metrics for the profile daemon.

# Overview

Collectors are registered on an injected prometheus.Registerer so that
several daemons (or tests) can coexist in one process. All Record methods
are safe to call on a nil *Metrics, which lets loaders run without
instrumentation.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "list_assistants")
	// ... call the control plane ...
	timer.Stop("success")
*/
package monitoring
