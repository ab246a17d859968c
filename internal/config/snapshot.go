package config

// Snapshot is the configuration one submission unit runs with. It is built
// once by the parent and handed to every unit explicitly; units never read
// process-wide state after they start.
type Snapshot struct {
	Settings     Settings       `json:"settings"`
	Debug        bool           `json:"debug"`
	DebugWorkDir string         `json:"debugWorkDir,omitempty"`
	Storage      *StorageConfig `json:"storage,omitempty"`
}

// Snapshot freezes s. In debug mode execution goes to scratchDir and remote
// storage is disabled.
func (s Settings) Snapshot(debug bool, scratchDir string) Snapshot {
	snap := Snapshot{Settings: s.clone(), Debug: debug}
	if debug {
		snap.DebugWorkDir = scratchDir
		if s.DebugWorkDir != "" {
			snap.DebugWorkDir = s.DebugWorkDir
		}
		return snap
	}
	if s.Storage.Enabled() {
		storage := s.Storage
		snap.Storage = &storage
	}
	return snap
}

// StorageEnabled reports whether artifacts go to remote storage
func (s Snapshot) StorageEnabled() bool { return s.Storage != nil }

func (s Settings) clone() Settings {
	out := s
	out.UploadPackages = append([]string{}, s.UploadPackages...)
	if s.Labels != nil {
		out.Labels = make(map[string]string, len(s.Labels))
		for k, v := range s.Labels {
			out.Labels[k] = v
		}
	}
	out.Machine = cloneMap(s.Machine)
	out.Resources = cloneMap(s.Resources)
	out.Task = cloneMap(s.Task)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
