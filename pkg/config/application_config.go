package config

// ApplicationConfiguration contains settings of the tool itself.
type ApplicationConfiguration struct {
	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`
	// Prometheus exposes store operation metrics while the command runs.
	Prometheus BasicService `yaml:"Prometheus"`
}
