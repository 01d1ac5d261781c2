package consts

// Component names for norns.
const (
	COMP_DAO_STOCK_BASIC = "dao_stock_basic"
	COMP_DAO_INDUSTRY    = "dao_industry"

	COMP_SOURCE_AKTOOLS = "source_aktools"

	COMP_SVC_SNAPSHOT_STORE   = "snapshot_store_service"
	COMP_SVC_SNAPSHOT_BUILDER = "snapshot_builder_service"

	COMP_CTRL_SNAPSHOT = "snapshot_ctrl"
	COMP_CTRL_QUERY    = "query_ctrl"
)

// Build kinds, also accepted by `-run`.
const (
	BUILD_BASIC_INFO = "basic_info"
	BUILD_INDUSTRY   = "industry"
)

const (
	COLLECTION_STOCK_BASIC = "stock_basic"
	COLLECTION_INDUSTRY    = "industry"

	RESULT_INSERTED = "inserted"
	RESULT_UPDATED  = "updated"
	RESULT_EXISTING = "existing"
	RESULT_SKIPPED  = "skipped"
)
