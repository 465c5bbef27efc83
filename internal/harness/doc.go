// Package harness runs end-to-end API scenarios.
//
// # Scenario Format
//
// Scenarios are YAML files, one request each:
//
//	name: bands_by_name
//	description: "First page of bands sorted by name"
//	url: /api/bands?fields=id,name&sort=name&limit=2
//	expect:
//	  status: 200
//	  total: 5
//	  ids: [4, 1]
//	assertions:
//	  - type: field
//	    path: bands.0.name
//	    value: Green River
//	  - type: length
//	    path: bands
//	    count: 2
//
// # Assertion Types
//
//   - field: the value at path equals value
//   - absent: nothing is present at path
//   - length: the array at path has count elements
//   - error_code: the first listed error has code
//   - warning_code: some warning has code
//
// Paths are dot-separated keys; numeric parts index arrays.
//
// # Golden Snapshots
//
// RunWithGolden compares the response status and body with
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
