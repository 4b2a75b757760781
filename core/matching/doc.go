// Package matching compares one planning day of expected solar against
// expected demand. It reports daily energy feasibility, contiguous surplus
// and deficit windows, whether critical loads are covered by solar alone,
// a risk level and one advisory per appliance template.
//
// The battery is not part of the comparison.
package matching
