// Package flowtrack tracks network flows over a fixed-capacity recency
// arena and aggregates per-flow traffic statistics from capture records.
package flowtrack

import "github.com/pcaplab/flowtrack/logging"

var logger = logging.New("flowtrack")
