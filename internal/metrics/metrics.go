package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_appended_total",
		Help: "Messages appended to the log",
	}, []string{"scope"})

	AttachmentsLinked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_attachments_linked_total",
		Help: "Attachments registered in the file catalog",
	})

	Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_polls_total",
		Help: "Poll requests by outcome",
	}, []string{"outcome"})

	AccessDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_access_denied_total",
		Help: "Requests refused by the access gate",
	}, []string{"action"})

	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})
)

var once sync.Once

// Init registers the collectors with the default registry
func Init() {
	once.Do(func() {
		prometheus.MustRegister(MessagesAppended, AttachmentsLinked, Polls, AccessDenied, Connections)
	})
}

// Scope labels a group for the appended counter without exploding cardinality
func Scope(isDefault bool) string {
	if isDefault {
		return "default"
	}
	return "group"
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
