package flowtrack

import (
	"os"

	"github.com/bytedance/sonic"
)

// CDFTable is the serialized form of a CDF: parallel value and cumulative
// probability arrays, values ascending.
type CDFTable struct {
	Values        []uint64  `json:"values"`
	Probabilities []float64 `json:"probabilities"`
}

func tableOf(c *CDF) CDFTable {
	v, p := c.Table()
	return CDFTable{Values: v, Probabilities: p}
}

// Report is the JSON document summarizing one capture.
type Report struct {
	StartUTCNs int64  `json:"start_utc_ns"`
	EndUTCNs   int64  `json:"end_utc_ns"`
	TotalPkts  uint64 `json:"total_pkts"`
	TCPUDPPkts uint64 `json:"tcpudp_pkts"`

	PktBytesAvg   float64  `json:"pkt_bytes_avg"`
	PktBytesStdev float64  `json:"pkt_bytes_stdev"`
	PktBytesCDF   CDFTable `json:"pkt_bytes_cdf"`

	TotalFlows     uint64 `json:"total_flows"`
	TotalSymmFlows uint64 `json:"total_symm_flows"`

	LiveFlowsAvg   float64  `json:"live_flows_per_epoch_avg"`
	LiveFlowsStdev float64  `json:"live_flows_per_epoch_stdev"`
	LiveFlowsCDF   CDFTable `json:"live_flows_per_epoch_cdf"`

	PktsPerFlowAvg   float64  `json:"pkts_per_flow_avg"`
	PktsPerFlowStdev float64  `json:"pkts_per_flow_stdev"`
	PktsPerFlowCDF   CDFTable `json:"pkts_per_flow_cdf"`

	FlowDurationUsAvg   float64  `json:"flow_duration_us_avg"`
	FlowDurationUsStdev float64  `json:"flow_duration_us_stdev"`
	FlowDurationUsCDF   CDFTable `json:"flow_duration_us_cdf"`

	FlowDtsUsAvg   float64  `json:"flow_dts_us_avg"`
	FlowDtsUsStdev float64  `json:"flow_dts_us_stdev"`
	FlowDtsUsCDF   CDFTable `json:"flow_dts_us_cdf"`

	TopKFlowsCDF      CDFTable `json:"top_k_flows_cdf"`
	TopKFlowsBytesCDF CDFTable `json:"top_k_flows_bytes_cdf"`
}

// Marshal renders the report as indented JSON.
func (r *Report) Marshal() ([]byte, error) {
	return sonic.MarshalIndent(r, "", "  ")
}

// WriteFile dumps the report to a JSON file.
func (r *Report) WriteFile(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
