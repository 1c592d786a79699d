package consts

// Team participants, in speaking order.
const (
	CodeGenerator = "Code_Generator"
	CodeExecutor  = "Code_Executor"
	ReportAgent   = "Report_Agent"
)

// TaskSource tags the task message that opens every conversation.
const TaskSource = "user"

// Tool names exposed to the participants.
const (
	ToolPythonExecution = "python_code_execution"
	ToolMarketData      = "get_market_data"
	ToolStockNews       = "get_stock_news"
)
