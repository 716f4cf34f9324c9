package config

// ConfigDiff describes what changed between two configs. Only the log
// settings can be applied to a running pipeline; every other changed section
// is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the changed sections that only take effect when
	// the pipeline is rebuilt, in schema order.
	RestartRequired []string
}

// Empty reports whether the diff holds no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	sections := []struct {
		name    string
		changed bool
	}{
		{"log_format", old.LogFormat != new.LogFormat},
		{"metrics", old.Metrics != new.Metrics},
		{"encoder", old.Encoder != new.Encoder},
		{"decoder", old.Decoder != new.Decoder},
		{"runner", old.Runner != new.Runner},
	}
	for _, s := range sections {
		if s.changed {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}

	return d
}
