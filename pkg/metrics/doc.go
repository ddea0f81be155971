/*
Package metrics provides Prometheus metrics collection and exposition for
the librarian.

The metrics package defines and registers catalog, store, task, and
replication metrics using the Prometheus client library. The Collector
polls the catalog, task manager, and store registry on a timer and
republishes their current state as gauges. pkg/rpc's dispatcher updates
the RPC counter and histogram around every operation. The task,
replication, search, offload and staging counters and histograms are
registered and exported, but no code in this module updates them, so
they stay at zero.

# Metrics Catalog

Catalog cardinality:

librarian_files_total, librarian_observations_total,
librarian_sessions_total, librarian_standing_orders_total:
  - Type: Gauge
  - Polled every Collector tick from the catalog's List* operations.

librarian_instances_total{store}:
  - Type: Gauge
  - FileInstance count per store name.

Store health:

librarian_store_available{store}:
  - Type: Gauge (1 available, 0 not)

librarian_store_free_bytes{store}:
  - Type: Gauge
  - Mirrors the same DFCache reading (under 30s old) that
    recommended-store selection and the M&C snapshot use, so dashboards
    and code never disagree about a store's free space.

Task manager:

librarian_tasks_in_flight:
  - Type: Gauge - count of submitted-but-not-yet-wrapped-up tasks.

librarian_tasks_total{kind,outcome}:
  - Type: Counter - registered only; nothing increments it.

librarian_task_wait_seconds, librarian_task_runtime_seconds{kind}:
  - Type: Histogram - registered only; nothing observes into them.

Replication:

librarian_standing_order_evaluations_total:
  - Type: Counter - registered only; MaybeLaunchCopies does not
    increment it.

librarian_copies_launched_total{order}, librarian_copies_finished_total{outcome}:
  - Type: Counter - registered only; nothing increments them.

RPC surface:

librarian_rpc_requests_total{operation,outcome}, librarian_rpc_request_duration_seconds{operation}:
  - Type: Counter / Histogram - recorded by pkg/rpc's dispatcher around
    every operation.

# Usage

	timer := metrics.NewTimer()
	// ... run a search ...
	timer.ObserveDuration(metrics.SearchCompileDuration)

	metrics.RPCRequestsTotal.WithLabelValues("search", "success").Inc()

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
