package system

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

func TestGetSystemInfoThroughDispatcher(t *testing.T) {
	env := skills.Env{HostVersion: "5.2.1", AllowAdminChanges: false, ServiceVersion: "1.4.0"}
	catalog, err := skills.NewRegistry(nil, New(env)).Build(context.Background(), env)
	require.NoError(t, err)
	d := skills.NewDispatcher(catalog, nil, nil)
	name := skills.EncodeName(skills.BuiltinNamespace, "System", "getSystemInfo")

	ref, fn, err := d.Catalog().Resolve(name)
	require.NoError(t, err)
	assert.Equal(t, skills.BuiltinNamespace+".System", ref.Class())
	assert.Equal(t, "getSystemInfo", fn)

	res := d.Execute(context.Background(), name, `{}`)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Loaded system information.", res.Message)

	var info map[string]any
	require.NoError(t, json.Unmarshal(res.Response, &info))
	assert.Equal(t, "5.2.1", info["host_version"])
	assert.Equal(t, false, info["allow_admin_changes"])
	assert.Equal(t, "1.4.0", info["service_version"])
	assert.Equal(t, runtime.Version(), info["go_version"])
}
