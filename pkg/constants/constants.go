package constants

import "time"

const (
	// DEFAULT_ASADM_BINARY is the diagnostic CLI invoked against collectinfo bundles.
	DEFAULT_ASADM_BINARY = "asadm"
	// DEFAULT_COMMAND_TIMEOUT is the bounded wait for a single asadm command.
	DEFAULT_COMMAND_TIMEOUT = 120 * time.Second
	// DEFAULT_ORACLE_TIMEOUT is the bounded wait for a semantic-extraction call.
	DEFAULT_ORACLE_TIMEOUT = 90 * time.Second
	// DEFAULT_WORKERS caps concurrent per-file pipelines in a batch upload.
	DEFAULT_WORKERS = 4

	// StoreNamespace is the Aerospike namespace holding health-check records.
	StoreNamespace = "test"
	// JobSet holds one record per health-check job.
	JobSet = "healthchecks"
	// ResultSet holds one record per uploaded cluster file.
	ResultSet = "cluster_results"

	// ScratchPrefix names per-pipeline scratch directories.
	ScratchPrefix = "aerohealth"
	// LogsDirName is where the backend log file lives.
	LogsDirName = "logs"
	// BackendLogFile is truncated on every startup.
	BackendLogFile = "backend.log"
)
