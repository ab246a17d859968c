package executor

import (
	"strings"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/model"
)

// Profile is a named remote platform whose machine template is filled from
// settings before user overrides are merged on top.
type Profile struct {
	Name     string
	Required func(s config.Settings) []string
	Template func(s config.Settings) map[string]any
}

// Bohrium builds container jobs on the Bohrium platform
var Bohrium = Profile{
	Name: "Bohrium",
	Required: func(s config.Settings) []string {
		var missing []string
		if s.Email == "" {
			missing = append(missing, "email")
		}
		if s.Password == "" {
			missing = append(missing, "password")
		}
		if s.ProgramID == 0 {
			missing = append(missing, "program_id")
		}
		return missing
	},
	Template: func(s config.Settings) map[string]any {
		return map[string]any{
			"batch_type":   s.BatchType,
			"context_type": s.ContextType,
			"remote_profile": map[string]any{
				"email":      s.Email,
				"password":   s.Password,
				"program_id": s.ProgramID,
				"input_data": map[string]any{
					"job_type":   "container",
					"platform":   "ali",
					"scass_type": s.GPUScassType,
				},
			},
		}
	},
}

var profiles = map[string]Profile{
	strings.ToLower(Bohrium.Name): Bohrium,
}

// sshContexts need a reachable host to dispatch through
var sshContexts = map[string]bool{
	"sshcontext": true,
}

// Resolve builds the executor descriptor from settings. It returns nil when
// no remote context is configured, which means local execution.
func Resolve(s config.Settings) (*model.ExecutorDescriptor, error) {
	if s.ContextType == "" {
		return nil, nil
	}

	machine := s.Machine
	profileName := s.RemoteProfile
	if profileName == "" {
		profileName = s.ContextType
	}
	if profile, ok := profiles[strings.ToLower(profileName)]; ok {
		if missing := profile.Required(s); len(missing) > 0 {
			return nil, model.Configf("context %s requires %s", profile.Name, strings.Join(missing, ", "))
		}
		machine = DeepMerge(profile.Template(s), s.Machine)
	} else if s.RemoteProfile != "" {
		return nil, model.Configf("unknown remote profile %q", s.RemoteProfile)
	}

	if sshContexts[strings.ToLower(s.ContextType)] && s.Host == "" {
		return nil, model.Configf("context %s requires host", s.ContextType)
	}
	if s.Host != "" && s.Username == "" {
		return nil, model.Configf("host %s requires username", s.Host)
	}

	return &model.ExecutorDescriptor{
		BatchType:       s.BatchType,
		ContextType:     s.ContextType,
		Host:            s.Host,
		Port:            s.Port,
		Username:        s.Username,
		Password:        s.HostPassword,
		PrivateKeyFile:  s.PrivateKeyFile,
		QueueName:       s.QueueName,
		RemoteRoot:      s.RemoteRoot,
		Image:           s.DispatcherImage,
		ImagePullPolicy: s.DispatcherImagePullPolicy,
		Machine:         copyOrNil(machine),
		Resources:       copyOrNil(s.Resources),
		Task:            copyOrNil(s.Task),
	}, nil
}

func copyOrNil(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return deepCopy(m)
}
