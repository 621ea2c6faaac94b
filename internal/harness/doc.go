// Package harness runs repository conformance scenarios.
//
// A scenario names a CUE schema, loads fixture rows into a fresh in-memory
// SQLite database, and drives one entity manager through a sequence of
// repository operations, checking each outcome.
//
// # Scenario Format
//
//	name: find_by_status
//	description: "Users are filtered by status, NULL included"
//	schema: ../schema
//	fixtures:
//	  - entity: CmsUser
//	    rows:
//	      - {id: 1, name: Roman, username: romanb, status: freak}
//	steps:
//	  - op: findBy
//	    entity: CmsUser
//	    criteria: {status: [dev, null]}
//	    order: [{field: username, dir: ASC}]
//	    save: devs
//	    expect:
//	      count: 3
//	      field: username
//	      values: [asm89, beberlei, gblanco]
//	  - op: matching
//	    entity: CmsUser
//	    order: [{field: username, dir: ASC}]
//	    where:
//	      or:
//	        - {field: status, op: eq, value: dev}
//	        - {field: status, op: isNull}
//	    expect: {same_as: devs, queries: 1}
//	  - op: call
//	    entity: CmsUser
//	    method: countByStatus
//	    args: [dev]
//	    expect: {count: 2}
//
// # Operations
//
//   - find: id (scalar or map), optional lock and lock_version
//   - findAll, findBy, findOneBy: criteria, refs, order, limit, offset
//   - count: criteria and refs
//   - matching: where tree, order, limit, offset
//   - call: a dynamic shortcut name and positional args; {ref: label}
//     passes a saved entity, any other map is an order map
//   - clear: empties the identity map
//
// # Expectations
//
//   - count: returned entities, or the counted value
//   - field + values: one field across the returned entities, in order
//   - null: find/findOneBy returned nothing
//   - error: the ormerr code the step fails with
//   - same_as: the returned entities are the instances saved under a label
//   - queries: the number of queries the step issued
//
// # Deterministic Testing
//
// The unit of work uses a fixed id and every executed plan is recorded, so
// RunWithGolden can compare the query log against a goldie snapshot.
package harness
