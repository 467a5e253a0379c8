/*
Package types defines the records persisted and broadcast by riskfeed.

The three persisted kinds are Case, Alert and Transaction. They are append-only from
the point of view of the feed: the synthesizer creates them and the query layer reads
them. JSON field names are snake_case column names, so exported demo database rows
load as seed files unchanged.

# Relationships

	Transaction (always created)
	     │ same cycle, risk >= 0.65
	     ▼
	Alert ──case_id──▶ Case (risk >= 0.85)

Every Alert has exactly one Transaction created in the same synthesis cycle. Most
Transactions have no Alert. An Alert's CaseID, once set, is never changed.

# Metrics

Metrics is a snapshot computed on demand from the store. It is never cached.
AvgResponseMinutes, FPRate and LatencyMsP95 are fixed values, not derived from data.
*/
package types
