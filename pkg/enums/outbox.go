package enums

// OutboxEventType names the domain events written to the outbox.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderPaid      OutboxEventType = "order.paid"
	EventOrderCancelled OutboxEventType = "order.cancelled"
	EventOrderUpdated   OutboxEventType = "order.updated"
	EventOrderRefunded  OutboxEventType = "order.refunded"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
