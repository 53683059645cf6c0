package internal

// Option is a functional option for configuring the pipeline run.
type Option func(*application)

type application struct {
	config *Config

	reportPath string

	yamlPath     string
	testcasePath string
	testrunPath  string
	storePath    string

	watch bool
}

// WithConfig sets the pipeline configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithReportPath sets the path of the test report to read.
func WithReportPath(path string) Option {
	return func(a *application) {
		a.reportPath = path
	}
}

// WithYAMLOutput enables the YAML output document at the given path.
func WithYAMLOutput(path string) Option {
	return func(a *application) {
		a.yamlPath = path
	}
}

// WithTestcaseOutput enables the testcase import document at the given path.
func WithTestcaseOutput(path string) Option {
	return func(a *application) {
		a.testcasePath = path
	}
}

// WithTestrunOutput enables the testrun import document at the given path.
func WithTestrunOutput(path string) Option {
	return func(a *application) {
		a.testrunPath = path
	}
}

// WithStorePath enables persisting assembled records to a SQLite database
// at the given path.
func WithStorePath(path string) Option {
	return func(a *application) {
		a.storePath = path
	}
}

// WithWatch keeps the process running and regenerates outputs whenever the
// report file changes.
func WithWatch(enabled bool) Option {
	return func(a *application) {
		a.watch = enabled
	}
}
