package model

import "strings"

const redactedValue = "******"

// secretKeys are substrings marking a map key as a credential
var secretKeys = []string{"password", "secret", "token"}

// ExecutorDescriptor describes where and how a step's workload runs.
// A nil descriptor means local execution.
type ExecutorDescriptor struct {
	BatchType       string         `yaml:"batchType,omitempty" json:"batchType,omitempty"`
	ContextType     string         `yaml:"contextType" json:"contextType"`
	Host            string         `yaml:"host,omitempty" json:"host,omitempty"`
	Port            int            `yaml:"port,omitempty" json:"port,omitempty"`
	Username        string         `yaml:"username,omitempty" json:"username,omitempty"`
	Password        string         `yaml:"password,omitempty" json:"password,omitempty"`
	PrivateKeyFile  string         `yaml:"privateKeyFile,omitempty" json:"privateKeyFile,omitempty"`
	QueueName       string         `yaml:"queueName,omitempty" json:"queueName,omitempty"`
	RemoteRoot      string         `yaml:"remoteRoot,omitempty" json:"remoteRoot,omitempty"`
	Image           string         `yaml:"image,omitempty" json:"image,omitempty"`
	ImagePullPolicy string         `yaml:"imagePullPolicy,omitempty" json:"imagePullPolicy,omitempty"`
	Machine         map[string]any `yaml:"machine,omitempty" json:"machine,omitempty"`
	Resources       map[string]any `yaml:"resources,omitempty" json:"resources,omitempty"`
	Task            map[string]any `yaml:"task,omitempty" json:"task,omitempty"`
}

// Redacted returns a copy safe to print or persist. The host password and
// every credential key in the nested maps, at any depth, are masked.
func (d *ExecutorDescriptor) Redacted() *ExecutorDescriptor {
	if d == nil {
		return nil
	}
	out := *d
	if out.Password != "" {
		out.Password = redactedValue
	}
	out.Machine = redactMap(d.Machine)
	out.Resources = redactMap(d.Resources)
	out.Task = redactMap(d.Task)
	return &out
}

func redactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSecretKey(k) {
			if s, ok := v.(string); ok && s == "" {
				out[k] = s
				continue
			}
			out[k] = redactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch c := v.(type) {
	case map[string]any:
		return redactMap(c)
	case []any:
		items := make([]any, len(c))
		for i, item := range c {
			items[i] = redactValue(item)
		}
		return items
	}
	return v
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
