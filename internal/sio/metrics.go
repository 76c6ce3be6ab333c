package sio

import (
	gometrics "github.com/rcrowley/go-metrics"
)

const (
	metricSent       = "sio.packets.sent"
	metricRecv       = "sio.packets.recv"
	metricPending    = "sio.acks.pending"
	metricReconnects = "sio.reconnects"
	metricBroadcasts = "sio.broadcasts"
)

type metrics struct {
	reg gometrics.Registry
}

func (m metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m metrics) decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}
