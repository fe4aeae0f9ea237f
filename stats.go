package flowtrack

import (
	"cmp"
	"slices"

	"github.com/tidwall/hashmap"
	"go.uber.org/zap"
)

// progressStep is how often Feed logs a progress line.
const progressStep = 1_000_000

const thousand = 1_000

// flowTimes carries the per-flow timing state needed for the duration and
// inter-arrival distributions. Inter-arrival gaps are accumulated in whole
// microseconds, one truncation per gap.
type flowTimes struct {
	first, last int64
	dtSumUs     int64
	dtCount     uint64
}

// Stats aggregates traffic statistics over one capture. Records must be fed
// in capture order by a single caller.
type Stats struct {
	options Options
	clock   epochClock
	tracker *Tracker[Flow]

	start, end int64
	totalPkts  uint64
	tcpudpPkts uint64

	pktSizes  *CDF
	liveFlows *CDF

	flows     hashmap.Set[Flow]
	symmFlows hashmap.Set[uint64]
	pktsPer   hashmap.Map[Flow, uint64]
	bytesPer  hashmap.Map[Flow, uint64]
	times     hashmap.Map[Flow, *flowTimes]
}

// NewStats creates a stats pipeline.
func NewStats(options Options) (*Stats, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}
	s := &Stats{
		options:   options,
		clock:     epochClock{epoch: int64(options.EpochDuration)},
		tracker:   NewTracker[Flow](options.MaxFlows),
		pktSizes:  NewCDF(),
		liveFlows: NewCDF(),
	}
	s.tracker.OnEvict = options.OnEvict
	return s, nil
}

// Tracker returns the live-flow tracker driven by Feed.
func (s *Stats) Tracker() *Tracker[Flow] { return s.tracker }

// Feed consumes one record.
func (s *Stats) Feed(pkt Packet) {
	s.end = pkt.TS
	if s.start == 0 {
		s.start = pkt.TS
	}

	s.totalPkts++
	s.pktSizes.Add(uint64(pkt.WireLen))

	if !pkt.HasFlow {
		return
	}

	if s.clock.tick(pkt.TS) {
		expired := s.tracker.ExpireAging(pkt.TS, int64(s.options.FlowMaxAge))
		s.liveFlows.Add(uint64(s.tracker.Len()))
		if expired > 0 {
			logger.Debug("expired aged flows",
				zap.Int("count", expired),
				zap.Int("live", s.tracker.Len()))
		}
	}

	if s.totalPkts%progressStep == 0 {
		logger.Info("processed packets",
			zap.Uint64("count", s.totalPkts),
			zap.Int64("ts", pkt.TS))
	}

	s.tcpudpPkts++
	flow := pkt.Flow
	s.flows.Insert(flow)
	s.symmFlows.Insert(flow.SymmetricDigest())

	if !s.tracker.Touch(flow, pkt.TS) {
		if err := s.tracker.Insert(flow, pkt.TS); err != nil {
			logger.Warn("flow tracker full, flow not tracked",
				zap.Stringer("flow", flow),
				zap.Error(err))
		}
	}

	pkts, _ := s.pktsPer.Get(flow)
	s.pktsPer.Set(flow, pkts+1)
	bytes, _ := s.bytesPer.Get(flow)
	s.bytesPer.Set(flow, bytes+uint64(pkt.WireLen))

	if ft, ok := s.times.Get(flow); ok {
		dt := pkt.TS - ft.last
		ft.last = pkt.TS
		ft.dtSumUs += dt / thousand
		ft.dtCount++
	} else {
		s.times.Set(flow, &flowTimes{first: pkt.TS, last: pkt.TS})
	}
}

// Report folds the accumulated state into a report document.
func (s *Stats) Report() *Report {
	pktsPerFlow := NewCDF()
	pktsValues := make([]uint64, 0, s.pktsPer.Len())
	s.pktsPer.Scan(func(_ Flow, n uint64) bool {
		pktsPerFlow.Add(n)
		pktsValues = append(pktsValues, n)
		return true
	})

	bytesValues := make([]uint64, 0, s.bytesPer.Len())
	s.bytesPer.Scan(func(_ Flow, n uint64) bool {
		bytesValues = append(bytesValues, n)
		return true
	})

	// Heaviest flows first: rank k weighted by the traffic it carried.
	desc := func(a, b uint64) int { return cmp.Compare(b, a) }
	slices.SortFunc(pktsValues, desc)
	slices.SortFunc(bytesValues, desc)

	topK, topKBytes := NewCDF(), NewCDF()
	for i, n := range pktsValues {
		topK.AddN(uint64(i+1), n)
	}
	for i, n := range bytesValues {
		topKBytes.AddN(uint64(i+1), n)
	}

	duration, dts := NewCDF(), NewCDF()
	s.times.Scan(func(_ Flow, ft *flowTimes) bool {
		duration.Add(uint64((ft.last - ft.first) / thousand))
		if ft.dtCount > 0 {
			dts.Add(uint64(ft.dtSumUs) / ft.dtCount)
		}
		return true
	})

	return &Report{
		StartUTCNs:          s.start,
		EndUTCNs:            s.end,
		TotalPkts:           s.totalPkts,
		TCPUDPPkts:          s.tcpudpPkts,
		PktBytesAvg:         s.pktSizes.Avg(),
		PktBytesStdev:       s.pktSizes.Stdev(),
		PktBytesCDF:         tableOf(s.pktSizes),
		TotalFlows:          uint64(s.flows.Len()),
		TotalSymmFlows:      uint64(s.symmFlows.Len()),
		LiveFlowsAvg:        s.liveFlows.Avg(),
		LiveFlowsStdev:      s.liveFlows.Stdev(),
		LiveFlowsCDF:        tableOf(s.liveFlows),
		PktsPerFlowAvg:      pktsPerFlow.Avg(),
		PktsPerFlowStdev:    pktsPerFlow.Stdev(),
		PktsPerFlowCDF:      tableOf(pktsPerFlow),
		FlowDurationUsAvg:   duration.Avg(),
		FlowDurationUsStdev: duration.Stdev(),
		FlowDurationUsCDF:   tableOf(duration),
		FlowDtsUsAvg:        dts.Avg(),
		FlowDtsUsStdev:      dts.Stdev(),
		FlowDtsUsCDF:        tableOf(dts),
		TopKFlowsCDF:        tableOf(topK),
		TopKFlowsBytesCDF:   tableOf(topKBytes),
	}
}
