package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonASRInsert    ReasonCode = "asr_insert"
	ReasonASRFinish    ReasonCode = "asr_finish"
	ReasonASRModelSwap ReasonCode = "asr_model_swap"

	ReasonLLMComplete  ReasonCode = "llm_complete"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	ReasonNoActiveMode       ReasonCode = "no_active_mode"
	ReasonUnknownMode        ReasonCode = "unknown_mode"
	ReasonUnknownMessageType ReasonCode = "unknown_message_type"
	ReasonMalformedControl   ReasonCode = "malformed_control"

	ReasonHistoryWrite  ReasonCode = "history_write"
	ReasonTransportSend ReasonCode = "transport_send"
)
