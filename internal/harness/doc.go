// Package harness runs conformance scenarios against the streak service.
//
// A Scenario is a list of cases; each case is a short sequence of steps:
//
//	simulate  inject a synthetic streak through the debug control endpoint
//	grace     backfill a missed day through the progress endpoint
//	check     fetch progress and compare it with an Expect clause
//
// Checks compare each field independently, so one case can contribute several
// failures. With Oracle set, currentRank and nextRankInfo are derived from
// the expected streak through a rank.Table rather than spelled out.
//
// Scenarios come from two places: the built-ins (Sweep, Grace, Idempotence)
// and YAML files loaded with LoadScenario:
//
//	name: member_boundary
//	description: "streak 4 promotes to member"
//	cases:
//	  - name: streak 4
//	    steps:
//	      - action: simulate
//	        streak: 4
//	      - action: check
//	        expect:
//	          streakCount: 4
//	          oracle: true
//
// The Runner never stops at the first failure. A failed simulate or
// progress fetch ends the current case only; everything is collected into a
// Result for reporting.
package harness
