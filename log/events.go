package log

// Inner log events.
const (
	EventMSShutdown        = "ms_shutdown"
	EventPanic             = "panic"
	EventStoreInit         = "store_init"
	EventStoreFailed       = "store_failed"
	EventLinkInit          = "link_init"
	EventComponentStarted  = "component_started"
	EventComponentShutdown = "component_shutdown"
	EventWSConnAdded       = "ws_conn_added"
	EventWSConnRemoved     = "ws_conn_removed"
	EventMsgMalformed      = "msg_malformed"
	EventMsgDropped        = "msg_dropped"
	EventPresetAdded       = "preset_added"
	EventPresetDeleted     = "preset_deleted"
	EventPresetSelected    = "preset_selected"
	EventReadingIngested   = "reading_ingested"
	EventUpstreamFailed    = "upstream_failed"
	EventUpdConsulStatus   = "upd_consul_status"
)
