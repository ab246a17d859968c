package executor

import (
	"testing"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMerge_NestedOverrideKeepsSiblings(t *testing.T) {
	base := map[string]any{
		"remote_profile": map[string]any{
			"email": "a@b.c",
			"input_data": map[string]any{
				"platform":   "ali",
				"scass_type": "c4",
			},
		},
	}
	override := map[string]any{
		"remote_profile": map[string]any{"input_data": map[string]any{"scass_type": "X"}},
	}

	merged := DeepMerge(base, override)

	input := merged["remote_profile"].(map[string]any)["input_data"].(map[string]any)
	assert.Equal(t, "ali", input["platform"])
	assert.Equal(t, "X", input["scass_type"])
	assert.Equal(t, "a@b.c", merged["remote_profile"].(map[string]any)["email"])

	// inputs untouched
	baseInput := base["remote_profile"].(map[string]any)["input_data"].(map[string]any)
	assert.Equal(t, "c4", baseInput["scass_type"])
}

func TestDeepMerge_ScalarReplacesMapAndLaterKeysWin(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1}, "b": 1}
	merged := DeepMerge(base, map[string]any{"a": "flat", "b": 2, "c": 3})
	assert.Equal(t, map[string]any{"a": "flat", "b": 2, "c": 3}, merged)
}

func TestDeepMerge_ResultDoesNotAliasTemplate(t *testing.T) {
	template := map[string]any{"input_data": map[string]any{"platform": "ali"}}
	first := DeepMerge(template, nil)
	first["input_data"].(map[string]any)["platform"] = "aws"

	second := DeepMerge(template, nil)
	assert.Equal(t, "ali", second["input_data"].(map[string]any)["platform"])
}

func TestDeepMerge_AcceptsAnyKeyedMaps(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1, "y": 2}}
	merged := DeepMerge(base, map[string]any{"a": map[any]any{"y": 3}})
	assert.Equal(t, map[string]any{"x": 1, "y": 3}, merged["a"])
}

func TestResolve_NoContextMeansLocal(t *testing.T) {
	desc, err := Resolve(config.Settings{})
	require.NoError(t, err)
	assert.Nil(t, desc)
}

func TestResolve_BohriumMergesMachineOverrides(t *testing.T) {
	s := config.Settings{
		ContextType:  "Bohrium",
		BatchType:    "Bohrium",
		Email:        "a@b.c",
		Password:     "pw",
		ProgramID:    42,
		GPUScassType: "c8_g1",
		Machine: map[string]any{
			"remote_profile": map[string]any{"input_data": map[string]any{"scass_type": "X"}},
		},
	}

	desc, err := Resolve(s)
	require.NoError(t, err)
	require.NotNil(t, desc)

	profile := desc.Machine["remote_profile"].(map[string]any)
	input := profile["input_data"].(map[string]any)
	assert.Equal(t, "ali", input["platform"])
	assert.Equal(t, "container", input["job_type"])
	assert.Equal(t, "X", input["scass_type"])
	assert.Equal(t, 42, profile["program_id"])
	assert.Equal(t, "Bohrium", desc.Machine["batch_type"])
}

func TestResolve_MissingConnectionFields(t *testing.T) {
	tests := []struct {
		name string
		s    config.Settings
		want string
	}{
		{"bohrium without credentials", config.Settings{ContextType: "Bohrium"}, "email, password, program_id"},
		{"ssh without host", config.Settings{ContextType: "SSHContext", Username: "root"}, "requires host"},
		{"unknown profile", config.Settings{ContextType: "SSHContext", Host: "h", Username: "u", RemoteProfile: "nowhere"}, "unknown remote profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.s)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolve_SSHContextCarriesConnection(t *testing.T) {
	desc, err := Resolve(config.Settings{
		ContextType:  "SSHContext",
		BatchType:    "Slurm",
		Host:         "hpc.example",
		Port:         2222,
		Username:     "apex",
		HostPassword: "secret",
		QueueName:    "gpu",
		Resources:    map[string]any{"number_node": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "hpc.example", desc.Host)
	assert.Equal(t, 2222, desc.Port)
	assert.Equal(t, "gpu", desc.QueueName)
	assert.Equal(t, "secret", desc.Password)
	assert.Equal(t, "******", desc.Redacted().Password)
	assert.Equal(t, map[string]any{"number_node": 1}, desc.Resources)
}
