package asadm

// DefaultCommands is the compact set run by the upload pipeline. Kept small
// so the combined output stays within the extraction oracle's context window.
var DefaultCommands = []string{
	"info",
	"show stat like client_write",
	"summary",
}

// CriticalCommands cover the metrics that decide whether a cluster is
// healthy. Used by the report subcommand.
var CriticalCommands = []string{
	// internal health check
	"health",
	"health -v",

	// cluster summary
	"summary -l",
	"summary",

	// performance metrics
	"show stat like client_write client_proxy busy sprig cache_read_pct compression client_read_timeout client_write_timeout evicted_objects stop_write -flip",
	"show stat like dead unav re_repl busy big lost -flip",
	"show stat like heap_efficiency_pct -flip",

	// configuration
	"show config like proto-fd-max -flip",
	"show config like min-cluster-size conflict-resolution-policy -flip",
	"show config like prefer-uniform-balance read-page-cache -flip",

	"show best-practices",
	"show latencies",
}

// DetailedCommands collect the comprehensive picture for offline review.
var DetailedCommands = []string{
	// general information
	"info",
	"info network",
	"info namespace",
	"info set",
	"info sindex",
	"features",

	// configuration
	"show config diff",
	"show config -flip",

	// performance statistics
	"show stat like batch_index_complete batch_sub_read_success batch_sub_read_not_found -flip",
	"show stat like expi master_tombstones client_delete_success -flip",
	"show stat like nsup_cycle nsup-period -flip",

	// distribution analysis
	"show distribution object_size -b",
	"show distribution time_to_live",

	// namespace and service statistics
	"show statistics namespace like migrate_tx_partitions_initial -flip",
	"show statistics service like batch -t",

	// XDR
	"show statistics xdr dc",
	"show statistics xdr namespace",

	// system information
	"show sindex",
	"show udfs",
	"show racks",
	"show roster",
	"show stop-writes",
	"show jobs",
	"show users",
	"show users stat",
}
