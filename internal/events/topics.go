package events

// Topic constants for domain events emitted by the order desk.
const (
	TopicSessionCreated   = "session.created"
	TopicSessionClosed    = "session.closed"
	TopicCompanySelected  = "session.company_selected"
	TopicCustomerSelected = "order.customer_selected"
	TopicItemSelected     = "order.item_selected"
	TopicOrderSubmitted   = "order.submitted"
	TopicOrderFailed      = "order.submit_failed"
	TopicLotsAllocated    = "lots.allocated"
	TopicLotsSubmitted    = "lots.submitted"
	TopicLotsFailed       = "lots.submit_failed"
)
