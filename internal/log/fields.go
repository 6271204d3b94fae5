package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOrgID       = "org_id"
	FieldRuleID      = "rule_id"
	FieldEntryID     = "entry_id"
	FieldClientID    = "client_id"
	FieldOccurrence  = "occurrence"
	FieldAmountCents = "amount_cents"
	FieldFrequency   = "frequency"
	FieldAsOf        = "as_of"
	FieldCreated     = "created"
	FieldFailed      = "failed"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentMaterializer = "materializer"
	ComponentProjection   = "projection"
	ComponentDefaulters   = "defaulters"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentExport       = "export"
	ComponentBackend      = "backend"
	ComponentCLI          = "cli"
)

// Operations defines standard operation names
const (
	OpMaterialize = "materialize"
	OpProject     = "project"
	OpDefaulters  = "defaulters"
	OpExport      = "export"
	OpMarkOverdue = "mark_overdue"
	OpStartup     = "startup"
	OpShutdown    = "shutdown"
)
