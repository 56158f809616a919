package api

// Error is the body returned when a probe (or the recovery boundary) fails.
// Probe-level errors are served with HTTP 200; only the last-resort recovery
// path uses 500.
type Error struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Capability reports an expected "not provisioned" state for an account,
// e.g. GuardDuty with no detector or Security Hub not enabled.
type Capability struct {
	Enabled bool `json:"enabled"`
}

type DailyCost struct {
	Date string  `json:"date"`
	USD  float64 `json:"usd"`
}

type ServiceCost struct {
	Service string  `json:"service"`
	USD     float64 `json:"usd"`
}

// CostSummary is the month-to-date cost picture. ForecastUSD is null when the
// forecast call failed; Daily and TopServices are empty on their calls'
// failure.
type CostSummary struct {
	MTDUSD      float64       `json:"mtdUSD"`
	ForecastUSD *float64      `json:"forecastUSD"`
	Daily       []DailyCost   `json:"daily"`
	TopServices []ServiceCost `json:"topServices"`
}

type RootCause struct {
	Service       string `json:"service,omitempty"`
	Region        string `json:"region,omitempty"`
	LinkedAccount string `json:"linkedAccount,omitempty"`
	UsageType     string `json:"usageType,omitempty"`
}

type Anomaly struct {
	Start      string      `json:"start"`
	End        *string     `json:"end"`
	ImpactUSD  float64     `json:"impactUSD"`
	Score      float64     `json:"score"`
	RootCauses []RootCause `json:"rootCauses"`
}

type AnomalyReport struct {
	Anomalies []Anomaly `json:"anomalies"`
}

type SeverityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

type ThreatFinding struct {
	Title    string  `json:"title"`
	Severity float64 `json:"severity"`
	LastSeen string  `json:"lastSeen"`
}

// ThreatSummary is the GuardDuty digest: severity-bucketed counts over the
// last week plus the five most recently seen findings.
type ThreatSummary struct {
	Enabled bool            `json:"enabled"`
	Counts  SeverityCounts  `json:"counts"`
	Latest  []ThreatFinding `json:"latest"`
}

type StandardFailures struct {
	Standard string `json:"standard"`
	Count    int    `json:"count"`
}

type ComplianceSummary struct {
	Enabled          bool               `json:"enabled"`
	FailedByStandard []StandardFailures `json:"failedByStandard"`
}

type OldKey struct {
	User string `json:"user"`
	Key  string `json:"key"`
}

type IdentityHygiene struct {
	PasswordPolicy string   `json:"passwordPolicy"`
	NoMFA          []string `json:"noMFA"`
	OldKeys        []OldKey `json:"oldKeys"`
}

// OpenRule is one world-open ingress rule. A nil From means the rule covers
// all ports. The Error variant is an inline sentinel emitted when security
// group enumeration itself failed.
type OpenRule struct {
	Group string `json:"group,omitempty"`
	From  *int32 `json:"from,omitempty"`
	To    *int32 `json:"to,omitempty"`
	Error string `json:"error,omitempty"`
}

type NetworkExposure struct {
	OpenSecurityGroups []OpenRule `json:"openSecurityGroups"`
	PublicBucketsCount int        `json:"publicBucketsCount"`
}

type Discovery struct {
	Endpoints []string `json:"endpoints"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history,omitempty"`
}

type ChatReply struct {
	Reply string `json:"reply"`
}
