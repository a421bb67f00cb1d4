package cli

var (
	verbose    bool
	configPath string

	// for server start command
	maxSessions int

	// for classify and try commands
	thresholdMs int
	singleTap   bool
	noSuppress  bool
	noDoubleTap bool

	// for classify command
	tapsFlag string
)
