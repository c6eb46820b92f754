// Package tcpmetrics exports per-connection counters from a [tcp.Stack] as
// Prometheus gauges, in the same Collect-on-scrape shape as the rest of the
// ecosystem's socket exporters: no background goroutine, no push path, just
// a Describe/Collect pair evaluated whenever the registry is scraped.
package tcpmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soypat/tcpstack/tcp"
)

// Collector adapts a [tcp.Stack] to [prometheus.Collector]. Register it with
// a prometheus.Registry; every Collect call walks the stack's live
// connection table and emits one sample per gauge per connection, labeled
// by the connection's xid and its current TCP state.
type Collector struct {
	stack *tcp.Stack

	rto       *prometheus.Desc
	srtt      *prometheus.Desc
	rttvar    *prometheus.Desc
	nrtx      *prometheus.Desc
	expired   *prometheus.Desc
	txUnacked *prometheus.Desc
	sent      *prometheus.Desc
	sndwnd    *prometheus.Desc
	rcvwnd    *prometheus.Desc
	mss       *prometheus.Desc
}

// NewCollector builds a Collector over stack. constLabels is applied to
// every descriptor, following the same process-wide-label convention the
// pack's other socket exporters use.
func NewCollector(stack *tcp.Stack, constLabels prometheus.Labels) *Collector {
	labels := []string{"conn_id", "state"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("tcpstack_"+name, help, labels, constLabels)
	}
	return &Collector{
		stack:     stack,
		rto:       desc("rto_seconds", "current retransmission timeout"),
		srtt:      desc("smoothed_rtt_seconds", "smoothed round-trip time estimate"),
		rttvar:    desc("rtt_variance_seconds", "smoothed round-trip time deviation"),
		nrtx:      desc("retransmits_inflight", "retransmit count on the oldest in-flight WRB"),
		expired:   desc("wrb_expired_total", "write buffers dropped after exhausting MaxRTX"),
		txUnacked: desc("tx_unacked_bytes", "bytes transmitted but not yet acknowledged"),
		sent:      desc("sent_bytes", "cumulative bytes queued past the initial send sequence number"),
		sndwnd:    desc("send_window_bytes", "peer's last advertised receive window"),
		rcvwnd:    desc("recv_window_bytes", "window currently advertised to the peer"),
		mss:       desc("mss_bytes", "negotiated maximum segment size"),
	}
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rto
	ch <- c.srtt
	ch <- c.rttvar
	ch <- c.nrtx
	ch <- c.expired
	ch <- c.txUnacked
	ch <- c.sent
	ch <- c.sndwnd
	ch <- c.rcvwnd
	ch <- c.mss
}

// Collect implements [prometheus.Collector]: it snapshots every live
// connection under the stack's network lock, then emits gauges outside it.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.stack.Snapshot() {
		labels := []string{st.ID.String(), st.State.String()}
		ch <- prometheus.MustNewConstMetric(c.rto, prometheus.GaugeValue, st.RTO.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.srtt, prometheus.GaugeValue, st.SmoothedRTT.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.rttvar, prometheus.GaugeValue, st.RTTVariance.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.nrtx, prometheus.GaugeValue, float64(st.NumRetransmits), labels...)
		ch <- prometheus.MustNewConstMetric(c.expired, prometheus.GaugeValue, float64(st.Expired), labels...)
		ch <- prometheus.MustNewConstMetric(c.txUnacked, prometheus.GaugeValue, float64(st.TxUnacked), labels...)
		ch <- prometheus.MustNewConstMetric(c.sent, prometheus.GaugeValue, float64(st.Sent), labels...)
		ch <- prometheus.MustNewConstMetric(c.sndwnd, prometheus.GaugeValue, float64(st.SndWnd), labels...)
		ch <- prometheus.MustNewConstMetric(c.rcvwnd, prometheus.GaugeValue, float64(st.RcvWnd), labels...)
		ch <- prometheus.MustNewConstMetric(c.mss, prometheus.GaugeValue, float64(st.MSS), labels...)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
