package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Retention policy
	RetentionHours     int
	RetentionMode      string
	GracePeriodMinutes int
	Schedule           string
	JobTimeoutMinutes  int

	// Invocation
	RunOnce bool
	DryRun  bool

	// HTTP surface
	Port         string
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
