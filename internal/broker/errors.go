package broker

const (
	KindTxFailed     = "broker.tx_failed"
	KindQueryFailed  = "broker.query_failed"
	KindWriteFailed  = "broker.write_failed"
	KindNotClaimable = "broker.not_claimable"
	KindNotFound     = "broker.not_found"
)
