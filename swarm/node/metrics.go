package node

import "github.com/prometheus/client_golang/prometheus"

var (
	bytesSentDesc = prometheus.NewDesc("lanchat_bytes_sent_total",
		"Bytes of message envelopes written to peers.", nil, nil)
	bytesReceivedDesc = prometheus.NewDesc("lanchat_bytes_received_total",
		"Bytes of message envelopes accepted from peers.", nil, nil)
	messagesSentDesc = prometheus.NewDesc("lanchat_messages_sent_total",
		"Messages successfully delivered to peers.", nil, nil)
	messagesReceivedDesc = prometheus.NewDesc("lanchat_messages_received_total",
		"Messages accepted from peers.", nil, nil)
	peersDesc = prometheus.NewDesc("lanchat_peers",
		"Peers currently in the registry.", nil, nil)
)

// collector exports a Node's counters and registry size. Values are read at scrape time.
type collector struct {
	node *Node
}

var _ prometheus.Collector = (*collector)(nil)

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- bytesSentDesc
	ch <- bytesReceivedDesc
	ch <- messagesSentDesc
	ch <- messagesReceivedDesc
	ch <- peersDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.node.Stats()
	ch <- prometheus.MustNewConstMetric(bytesSentDesc, prometheus.CounterValue, float64(s.BytesSent))
	ch <- prometheus.MustNewConstMetric(bytesReceivedDesc, prometheus.CounterValue, float64(s.BytesReceived))
	ch <- prometheus.MustNewConstMetric(messagesSentDesc, prometheus.CounterValue, float64(s.MessagesSent))
	ch <- prometheus.MustNewConstMetric(messagesReceivedDesc, prometheus.CounterValue, float64(s.MessagesReceived))
	ch <- prometheus.MustNewConstMetric(peersDesc, prometheus.GaugeValue, float64(c.node.peers.Len()))
}

// Collector returns a prometheus.Collector for this node's traffic counters and peer count.
func (n *Node) Collector() prometheus.Collector {
	return &collector{node: n}
}
