package cmd

import (
	"bytes"
	stdcontext "context"
	"errors"
	"testing"

	"github.com/shawn/slack-gpt-tenancy/internal/cli/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantGetCommand(t *testing.T) {
	temp := 0.2
	mockClient := &api.MockClient{
		GetConfigFunc: func(ctx stdcontext.Context, id string) (*api.TenantConfig, error) {
			assert.Equal(t, "T123", id)
			return &api.TenantConfig{TenantID: "T123", APIKey: "****abcd", Model: "gpt-4", Temperature: &temp}, nil
		},
	}

	cmd := newTenantGetCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"T123"})

	err := cmd.Execute()
	assert.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "T123")
	assert.Contains(t, output, "****abcd")
	assert.Contains(t, output, "gpt-4")
	assert.Contains(t, output, "0.2")
}

func TestTenantGetCommand_JSON(t *testing.T) {
	outputFormat = "json"
	defer func() { outputFormat = "" }()

	mockClient := &api.MockClient{
		GetConfigFunc: func(ctx stdcontext.Context, id string) (*api.TenantConfig, error) {
			return &api.TenantConfig{TenantID: id, APIKey: "****abcd"}, nil
		},
	}

	cmd := newTenantGetCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"T123"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"tenant_id": "T123"`)
	assert.NotContains(t, buf.String(), "model", "empty model is omitted")
}

func TestTenantGetCommand_NotFound(t *testing.T) {
	mockClient := &api.MockClient{
		GetConfigFunc: func(ctx stdcontext.Context, id string) (*api.TenantConfig, error) {
			return nil, api.ErrNotFound
		},
	}

	cmd := newTenantGetCmd(mockClient)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"T404"})

	err := cmd.Execute()
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Contains(t, errBuf.String(), "no stored configuration")
}

func TestTenantSetCommand(t *testing.T) {
	var got *api.SetConfigRequest
	mockClient := &api.MockClient{
		SetConfigFunc: func(ctx stdcontext.Context, id string, req *api.SetConfigRequest) (*api.TenantConfig, error) {
			assert.Equal(t, "T123", id)
			got = req
			return &api.TenantConfig{TenantID: id, APIKey: "****abcd", Model: req.Model}, nil
		},
	}

	cmd := newTenantSetCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"T123", "--api-key", "sk-abcd", "--model", "gpt-4"})

	require.NoError(t, cmd.Execute())
	require.NotNil(t, got)
	assert.Equal(t, "sk-abcd", got.APIKey)
	assert.Equal(t, "gpt-4", got.Model)
	assert.Nil(t, got.Temperature, "temperature is only sent when the flag is given")
	assert.Contains(t, buf.String(), "saved")
}

func TestTenantSetCommand_Temperature(t *testing.T) {
	var got *api.SetConfigRequest
	mockClient := &api.MockClient{
		SetConfigFunc: func(ctx stdcontext.Context, id string, req *api.SetConfigRequest) (*api.TenantConfig, error) {
			got = req
			return &api.TenantConfig{TenantID: id}, nil
		},
	}

	cmd := newTenantSetCmd(mockClient)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"T123", "--api-key", "sk-abcd", "--temperature", "0"})

	require.NoError(t, cmd.Execute())
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.0, *got.Temperature)
}

func TestTenantSetCommand_RequiresAPIKey(t *testing.T) {
	cmd := newTenantSetCmd(&api.MockClient{})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"T123"})

	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api-key")
}

func TestTenantSetCommand_ValidationError(t *testing.T) {
	mockClient := &api.MockClient{
		SetConfigFunc: func(ctx stdcontext.Context, id string, req *api.SetConfigRequest) (*api.TenantConfig, error) {
			return nil, errors.New("api_key: This API key seems to be invalid")
		},
	}

	cmd := newTenantSetCmd(mockClient)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"T123", "--api-key", "sk-bad"})

	assert.Error(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "seems to be invalid")
}

func TestTenantDeleteCommand(t *testing.T) {
	deleted := ""
	mockClient := &api.MockClient{
		DeleteConfigFunc: func(ctx stdcontext.Context, id string) error {
			deleted = id
			return nil
		},
	}

	cmd := newTenantDeleteCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"T123"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "T123", deleted)
	assert.Contains(t, buf.String(), "deleted")
}

func TestTenantCommand_Subcommands(t *testing.T) {
	cmd := newTenantCmd(&api.MockClient{})
	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"get", "set", "delete"}, names)
}
