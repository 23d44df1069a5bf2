package payments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airpay_payments_settled_total",
		Help: "Count of successfully settled payments.",
	})
	paymentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airpay_payments_failed_total",
		Help: "Count of payment attempts aborted without effect.",
	})
)
