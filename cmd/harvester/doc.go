// Command harvester fetches the per-year weather history table for every day
// of the configured months and writes one JSON file per date into the cache
// directory.
//
// Usage:
//
//	harvester -config harvester.yaml -env .env
//
// Every key can be overridden from the environment with the HARVESTER_
// prefix, for example HARVESTER_RETRY_MAX_RETRIES=5. Variables in the
// dotenv file are exported first and never override the real environment. The exit code is
// non-zero when any day failed after its retries.
package main
