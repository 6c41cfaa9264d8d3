package config

// Config is the top-level configuration for autorevert. Connection secrets
// may reference environment variables with ${VAR} syntax; the loader
// expands them so the rest of the program never touches the environment.
type Config struct {
	Logging    Logging    `yaml:"logging"`
	Store      Store      `yaml:"store"`
	ClickHouse ClickHouse `yaml:"clickhouse"`
	GitHub     GitHub     `yaml:"github"`
	Detection  Detection  `yaml:"detection"`
	Restart    Restart    `yaml:"restart"`
	Watch      Watch      `yaml:"watch"`
	Hooks      Hooks      `yaml:"hooks"`
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stderr", "stdout", "discard", or a file path
}

// Store configures persistence of detection-run history.
type Store struct {
	Driver string `yaml:"driver"` // "bbolt" or "json"
	Path   string `yaml:"path"`   // file path for the store
}

// ClickHouse holds the CI results warehouse connection settings.
type ClickHouse struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Secure   bool   `yaml:"secure"`
}

// GitHub holds the settings for workflow re-dispatch.
type GitHub struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Token string `yaml:"token"`
}

// Detection configures the pattern detector.
type Detection struct {
	Workflows     []string `yaml:"workflows"`      // priority order; first wins dedup ties
	Branch        string   `yaml:"branch"`         // tracked branch
	LookbackHours int      `yaml:"lookback_hours"` // data fetch window
	WindowHours   int      `yaml:"window_hours"`   // lookback/lookahead window around a target
}

// Restart configures workflow re-dispatch for flagged commits.
type Restart struct {
	// WorkflowFiles maps a workflow name to its dispatchable workflow file,
	// e.g. trunk -> trunk.yml.
	WorkflowFiles map[string]string `yaml:"workflow_files"`
	DaysBack      int               `yaml:"days_back"` // bulk restart lookback
}

// Watch configures scheduled detection.
type Watch struct {
	Schedule string `yaml:"schedule"` // cron expression or "every <n><unit>"
	Addr     string `yaml:"addr"`     // status server address, empty disables it
	Dispatch bool   `yaml:"dispatch"` // re-dispatch workflows for flagged commits
}

// Hooks configures notification agents run on detection events.
type Hooks struct {
	AgentPaths  []string `yaml:"agent_paths"`
	TimeoutSec  int      `yaml:"timeout_sec"`
	FailOnError bool     `yaml:"fail_on_error"`
	OnPattern   []Agent  `yaml:"on_pattern"`
	OnRevert    []Agent  `yaml:"on_revert"`
	OnDispatch  []Agent  `yaml:"on_dispatch"`
}

// Agent is one executable notification hook.
type Agent struct {
	Agent string         `yaml:"agent"` // agent executable name
	With  map[string]any `yaml:"with"`  // configuration passed to the agent
}
