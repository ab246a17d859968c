package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourceplane/apexflow/internal/model"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the settings document looked up in the current directory
const DefaultFile = "global.json"

// Settings is the global settings document
type Settings struct {
	WorkDir      string `yaml:"work_dir" json:"work_dir"`
	DebugWorkDir string `yaml:"debug_workdir" json:"debug_workdir"`
	OutboxDir    string `yaml:"outbox_dir" json:"outbox_dir"`

	// Images and run commands. Calculator specific entries win over the
	// generic run_image_name / run_command.
	ApexImageName   string            `yaml:"apex_image_name" json:"apex_image_name"`
	RunImageName    string            `yaml:"run_image_name" json:"run_image_name"`
	RunCommand      string            `yaml:"run_command" json:"run_command"`
	LammpsImageName string            `yaml:"lammps_image_name" json:"lammps_image_name"`
	LammpsRunCmd    string            `yaml:"lammps_run_command" json:"lammps_run_command"`
	VaspImageName   string            `yaml:"vasp_image_name" json:"vasp_image_name"`
	VaspRunCmd      string            `yaml:"vasp_run_command" json:"vasp_run_command"`
	AbacusImageName string            `yaml:"abacus_image_name" json:"abacus_image_name"`
	AbacusRunCmd    string            `yaml:"abacus_run_command" json:"abacus_run_command"`
	GroupSize       int               `yaml:"group_size" json:"group_size"`
	PoolSize        int               `yaml:"pool_size" json:"pool_size"`
	UploadPackages  []string          `yaml:"upload_python_packages" json:"upload_python_packages"`
	Labels          map[string]string `yaml:"labels" json:"labels"`

	// Remote profile credentials
	Email         string `yaml:"email" json:"email"`
	Password      string `yaml:"password" json:"password"`
	ProgramID     int    `yaml:"program_id" json:"program_id"`
	CPUScassType  string `yaml:"cpu_scass_type" json:"cpu_scass_type"`
	GPUScassType  string `yaml:"gpu_scass_type" json:"gpu_scass_type"`
	BatchType     string `yaml:"batch_type" json:"batch_type"`
	ContextType   string `yaml:"context_type" json:"context_type"`
	RemoteProfile string `yaml:"remote_profile" json:"remote_profile"`

	// Dispatcher connection
	Host                      string         `yaml:"host" json:"host"`
	Port                      int            `yaml:"port" json:"port"`
	Username                  string         `yaml:"username" json:"username"`
	HostPassword              string         `yaml:"host_password" json:"host_password"`
	QueueName                 string         `yaml:"queue_name" json:"queue_name"`
	PrivateKeyFile            string         `yaml:"private_key_file" json:"private_key_file"`
	RemoteRoot                string         `yaml:"remote_root" json:"remote_root"`
	DispatcherImage           string         `yaml:"dispatcher_image" json:"dispatcher_image"`
	DispatcherImagePullPolicy string         `yaml:"dispatcher_image_pull_policy" json:"dispatcher_image_pull_policy"`
	Machine                   map[string]any `yaml:"machine" json:"machine"`
	Resources                 map[string]any `yaml:"resources" json:"resources"`
	Task                      map[string]any `yaml:"task" json:"task"`

	Engine  EngineConfig  `yaml:"engine" json:"engine"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
}

// EngineConfig locates the orchestration engine that accepts manifests
type EngineConfig struct {
	Host         string `yaml:"host" json:"host"`
	K8sAPIServer string `yaml:"k8s_api_server" json:"k8s_api_server"`
	Token        string `yaml:"token" json:"token"`
	Namespace    string `yaml:"namespace" json:"namespace"`
}

// StorageConfig locates remote artifact storage
type StorageConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Console  string `yaml:"console" json:"console"`
	RepoKey  string `yaml:"repo_key" json:"repo_key"`
	Bucket   string `yaml:"bucket" json:"bucket"`
}

// Enabled reports whether any remote storage is configured
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" || s.RepoKey != ""
}

// defaults returns Settings populated with the documented default values.
func defaults() Settings {
	return Settings{
		GroupSize:                 1,
		Port:                      22,
		Username:                  "root",
		DispatcherImagePullPolicy: "IfNotPresent",
		UploadPackages:            []string{},
	}
}

// Load reads a settings document (JSON or YAML) at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, model.Configf("settings file %s not found: prepare %s in the current directory or pass --config", path, DefaultFile)
		}
		return Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	s := defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, model.Configf("parsing settings file %s: %v", path, err)
	}
	s.applyEnv()

	if s.WorkDir == "" {
		s.WorkDir = filepath.Dir(path)
	}
	if s.UploadPackages == nil {
		s.UploadPackages = []string{}
	}
	if s.GroupSize <= 0 {
		s.GroupSize = 1
	}
	if s.PoolSize < 0 {
		return Settings{}, model.Configf("pool_size must not be negative, got %d", s.PoolSize)
	}
	return s, nil
}

// applyEnv fills empty credentials from the environment
func (s *Settings) applyEnv() {
	envs := []struct {
		key string
		dst *string
	}{
		{"APEX_EMAIL", &s.Email},
		{"APEX_PASSWORD", &s.Password},
		{"APEX_HOST_PASSWORD", &s.HostPassword},
		{"APEX_ENGINE_TOKEN", &s.Engine.Token},
		{"APEX_STORAGE_REPO_KEY", &s.Storage.RepoKey},
	}
	for _, e := range envs {
		if *e.dst == "" {
			*e.dst = os.Getenv(e.key)
		}
	}
}

// RunImage returns the Run phase image for calc
func (s Settings) RunImage(calc model.Calculator) string {
	var img string
	switch calc {
	case model.CalculatorLAMMPS:
		img = s.LammpsImageName
	case model.CalculatorVASP:
		img = s.VaspImageName
	case model.CalculatorABACUS:
		img = s.AbacusImageName
	}
	if img == "" {
		return s.RunImageName
	}
	return img
}

// RunCommandFor returns the Run phase command for calc
func (s Settings) RunCommandFor(calc model.Calculator) string {
	var cmd string
	switch calc {
	case model.CalculatorLAMMPS:
		cmd = s.LammpsRunCmd
	case model.CalculatorVASP:
		cmd = s.VaspRunCmd
	case model.CalculatorABACUS:
		cmd = s.AbacusRunCmd
	}
	if cmd == "" {
		return s.RunCommand
	}
	return cmd
}
