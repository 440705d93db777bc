package extract

import (
	"fmt"
	"time"
)

// promptTemplate describes the exact field schema the oracle must fill. The
// per-node client-write counters are demanded as arrays, not sums, so the
// metrics engine controls the aggregation.
const promptTemplate = `Parse this Aerospike cluster data and return ONLY valid JSON (no markdown formatting, no code blocks, just pure JSON) with these fields.

IMPORTANT: For clientWrites data, look for the 'show stat like client_write' section which contains node-by-node statistics:
1. Find the rows for 'client_write_success' and 'xdr_client_write_success'
2. Extract the individual values for each node as arrays (do NOT sum them)
3. Also extract the corresponding node names/addresses
4. The backend will handle the aggregation

Example:
- If you see: client_write_success |23095|32213|215400|69448|249390
- Extract as: clientWriteSuccessPerNode: [23095, 32213, 215400, 69448, 249390]
- Extract nodeNames: ["node1_address", "node2_address", "node3_address", "node4_address", "node5_address"]

Fields to extract:

{
  "clusterInfo": {
    "name": "cluster name",
    "version": "server version",
    "size": "number of nodes",
    "namespaces": "number of namespaces",
    "memory": {
      "total": "total memory",
      "used": "used memory",
      "usedPercent": "usage percentage"
    },
    "license": {
      "usage": "license usage amount",
      "usagePercent": "license usage percentage",
      "total": "total license capacity"
    }
  },
  "nodes": [
    {
      "node": "node address",
      "status": "node status",
      "uptime": "uptime",
      "connections": "client connections"
    }
  ],
  "namespaces": [
    {
      "name": "namespace name",
      "objects": "total objects",
      "memoryUsed": "memory used",
      "memoryUsedPercent": "memory usage %%",
      "replicationFactor": "replication factor",
      "usageInfo": {
        "evictions": "eviction count",
        "stopWrites": "stop writes status",
        "systemMemory": "system memory available %%",
        "primaryIndex": {
          "type": "index type",
          "used": "index memory used"
        },
        "secondaryIndex": {
          "type": "secondary index type",
          "used": "secondary index memory used"
        },
        "storageEngine": {
          "used": "storage engine memory used",
          "availablePercent": "available percentage",
          "evictPercent": "eviction percentage"
        }
      },
      "objectInfo": {
        "totalRecords": "total records",
        "masterObjects": "master objects count",
        "proleObjects": "prole objects count",
        "nonReplicaObjects": "non-replica objects count",
        "expirations": "expiration count",
        "tombstones": {
          "master": "master tombstones",
          "prole": "prole tombstones",
          "nonReplica": "non-replica tombstones"
        },
        "pendingMigrates": {
          "tx": "transmit count",
          "rx": "receive count"
        }
      },
      "license": {
        "usage": "namespace license usage",
        "usagePercent": "namespace license usage percentage"
      },
      "clientWrites": {
        "clientWriteSuccessPerNode": "array of client_write_success values for each node from 'show stat like client_write' output",
        "xdrClientWriteSuccessPerNode": "array of xdr_client_write_success values for each node from 'show stat like client_write' output",
        "nodeNames": "array of node names/addresses corresponding to the values"
      }
    }
  ],
  "networkInfo": {
    "nodes": [
      {
        "node": "node address",
        "nodeId": "node ID",
        "ip": "IP address",
        "build": "build version",
        "migrations": "migration count",
        "cluster": {
          "size": "cluster size",
          "key": "cluster key",
          "integrity": "integrity status",
          "principal": "principal node"
        },
        "clientConnections": "client connections",
        "uptime": "uptime"
      }
    ]
  },
  "health": {
    "overall": "overall health status",
    "passed": "number of passed checks",
    "failed": "number of failed checks",
    "skipped": "number of skipped checks",
    "issues": ["list of issues"]
  },
  "lastUpdated": "%s"
}

Data to parse:
%s`

func buildPrompt(combined string) string {
	return fmt.Sprintf(promptTemplate, time.Now().Format(time.RFC3339), combined)
}
