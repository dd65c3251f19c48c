// Package harvest defines the core types shared across the harvester:
// calendar targets, per-year day records, raw page tables, the collaborator
// interfaces wired together by the scheduler, and the error taxonomy used to
// report per-day failures.
package harvest
