package model

// Flags represents the command line flags shared by every subcommand.
type Flags struct {
	Profile      string
	Region       string
	StoreBackend string
	SQLitePath   string
	Table        string
	HTTPAddr     string
	MaxParallel  int
	Output       string
	LogLevel     string
	Args         []string
}
