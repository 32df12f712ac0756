package realtime

// Named realtime streams.
const (
	// StreamPOS carries transaction events for POS terminals.
	StreamPOS = "pos"
	// StreamCatalog carries product, paytype and status changes.
	StreamCatalog = "catalog"
)

// Events published on the POS streams.
const (
	EventTransactionCreated     = "transaction.created"
	EventTransactionInvalidated = "transaction.invalidated"
	EventCatalogChanged         = "catalog.changed"
)
