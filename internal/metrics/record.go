package metrics

// Usage carries authoritative token counts reported by a provider. When nil
// or zero, counts are estimated from the text instead.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Input is the caller-supplied portion of a metrics record. The store fills
// in everything else (id, timestamp, token counts, host utilization,
// hallucination classification, sizes) at append time.
type Input struct {
	UserID         string // defaults to "anonymous"
	ConversationID string // defaults to "unknown"
	ModelID        string
	Prompt         string
	Response       string
	Error          string // empty on success
	LatencyMs      int64
	Usage          *Usage
	Notes          string // appended after the hallucination note, if any
}

// column order is the on-disk schema. Appends always write exactly these
// twenty columns; changing the order breaks existing workbooks.
var columns = []struct {
	Header string
	Width  float64
}{
	{"ID", 36},
	{"Timestamp (UTC)", 25},
	{"User ID", 15},
	{"Conversation ID", 36},
	{"Prompt", 40},
	{"Input Tokens", 15},
	{"Model Name", 25},
	{"Status Code", 12},
	{"Latency (ms)", 15},
	{"Response Text", 40},
	{"Output Tokens", 15},
	{"Error", 20},
	{"Throughput (t/s)", 18},
	{"CPU %", 12},
	{"RAM (MB)", 15},
	{"Hallucination Flag", 18},
	{"Hallucination Rate", 18},
	{"Req Size (Bytes)", 15},
	{"Res Size (Bytes)", 15},
	{"Notes", 20},
}
