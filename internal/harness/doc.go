// Package harness runs predicate scenarios against a real database.
//
// A scenario declares a model in CUE, seeds its table and runs a list of
// cases in order. Each case is a select or a delete written in the textual
// predicate language, and checks the rows it sees.
//
// # Scenario Format
//
//	name: people_filters
//	description: "What this scenario validates"
//	cue: |
//	  model: Person: {
//	    table: "people"
//	    field: { id: int, name: string, age: int, nickname?: string }
//	  }
//	seed:
//	  - {id: 1, name: Ann, age: 30}
//	cases:
//	  - name: adults
//	    where: age >= :min
//	    params: {min: 18}
//	    sort: age:desc
//	    limit: 10
//	    expect:
//	      - {name: Ann}
//	  - name: purge
//	    where: age < 18
//	    delete: true
//	    expect_deleted: 0
//	  - name: typo
//	    where: agee > 1
//	    error: unknown field
//
// Expected rows are subset matches. Without a sort, expected rows may
// appear in any order.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite database, and cases are numbered
// by a testutil.Sequence. Snapshot renders the SQL, bindings and rows of
// every case so RunWithGolden can compare them against a golden file, once
// per IN-list convention.
package harness
