/*
Package storage provides BoltDB-backed persistence for cases, alerts and transactions.

The Store interface is implemented by BoltStore, which keeps each record kind in
its own bucket as JSON keyed by id. Alerts and transactions are also indexed by
creation time so the newest-first listings read a bounded number of records
with a reverse cursor instead of scanning and sorting the whole bucket.

# Bucket Structure

	┌──────────────────────── riskfeed.db ────────────────────────┐
	│  cases                  id -> Case JSON                      │
	│  alerts                 id -> Alert JSON                     │
	│  transactions           id -> Transaction JSON               │
	│  alerts_by_time         be64(unix nanos) + id -> id          │
	│  transactions_by_time   be64(unix nanos) + id -> id          │
	└─────────────────────────────────────────────────────────────┘

Cases are few and can change status out of band, so ListCases sorts them by
updated_at in memory rather than maintaining an index.

# Inserts

Create* operations never overwrite: an id that is already present fails with
ErrAlreadyExists and the whole write transaction is rolled back, index entry
included. Callers generate collision-resistant ids.

# Seeding

Initialize opens the database (creating the data directory if needed) and then
calls SeedIfEmpty. The alert count is the idempotence key: when at least one
alert exists the seed loader is not consulted at all. Otherwise every seed
record is inserted inside one bolt transaction, so a missing file
(ErrSeedMissing), a decode failure (ErrSeedMalformed) or a colliding id leaves
the store exactly as empty as it was.

	store, err := storage.Initialize(cfg.DBPath(), storage.SeedFromFile(cfg.SeedPath()))
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer store.Close()

# Seed Format

	{
	  "cases":        [{"id": "CASE-1", "title": "...", "status": "open", ...}],
	  "alerts":       [{"id": "ALERT-1", "risk_score": 0.91, "case_id": "CASE-1", ...}],
	  "transactions": [{"id": "TXN-1", "merchant": "Electronics Hub", "case_id": null, ...}]
	}
*/
package storage
