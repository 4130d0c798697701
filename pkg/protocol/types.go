package protocol

// Endpoint paths
const (
	PathOpenPage       = "/open_page"
	PathPageTitle      = "/page_title"
	PathPageURL        = "/page_url"
	PathClick          = "/click"
	PathFillInput      = "/fill_input"
	PathExtractText    = "/extract_text"
	PathExtractAllText = "/extract_all_text"
	PathWaitForElement = "/wait_for_element"
	PathGetAttribute   = "/get_attribute"
	PathEvaluate       = "/evaluate"
	PathPageSource     = "/page_source"
	PathHealth         = "/health"
	PathReset          = "/reset"
	PathRun            = "/run"
	PathMetrics        = "/metrics"
)

// Health statuses
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ErrorResponse is the structured error payload
type ErrorResponse struct {
	OK        bool      `json:"ok"`
	ErrorKind ErrorKind `json:"error_kind"`
	Message   string    `json:"message"`
}

// OKResponse acknowledges a mutating operation
type OKResponse struct {
	OK bool `json:"ok"`
}

type OpenPageRequest struct {
	URL string `json:"url"`
}

type OpenPageResponse struct {
	OK     bool   `json:"ok"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Status int    `json:"status"`
}

type TitleResponse struct {
	Title string `json:"title"`
}

type URLResponse struct {
	URL string `json:"url"`
}

type SelectorRequest struct {
	Selector string `json:"selector"`
}

type FillInputRequest struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type TextsResponse struct {
	Texts []string `json:"texts"`
}

// WaitRequest carries the wait timeout in seconds
type WaitRequest struct {
	Selector string  `json:"selector"`
	Timeout  float64 `json:"timeout"`
}

type WaitResponse struct {
	Found bool `json:"found"`
}

type AttributeRequest struct {
	Selector  string `json:"selector"`
	Attribute string `json:"attribute"`
}

// AttributeResponse holds a nil Value when the attribute is absent
type AttributeResponse struct {
	Value *string `json:"value"`
}

type EvaluateRequest struct {
	Script string `json:"script"`
}

type EvaluateResponse struct {
	Value   interface{} `json:"value"`
	Console []string    `json:"console,omitempty"`
}

type PageSourceResponse struct {
	HTML string `json:"html"`
}

// HealthResponse reports driver state; the endpoint always answers 200
type HealthResponse struct {
	Status            string  `json:"status"`
	DriverActive      bool    `json:"driver_active"`
	SessionID         string  `json:"session_id,omitempty"`
	CurrentURL        *string `json:"current_url"`
	LastError         *string `json:"last_error"`
	NavigationCircuit string  `json:"navigation_circuit,omitempty"`
}

// RunRequest is the legacy single-endpoint dispatch body
type RunRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

type RunResponse struct {
	Result interface{} `json:"result"`
	Title  string      `json:"title,omitempty"`
}
