package emitter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/shotty/pkg/resource"
)

func testVolumes() []resource.Volume {
	return []resource.Volume{
		{ID: "vol-1", InstanceID: "i-1", State: "in-use", SizeGiB: 8, Encrypted: true},
		{ID: "vol-22", InstanceID: "i-1", State: "in-use", SizeGiB: 100},
	}
}

func emitAll(t *testing.T, e Emitter, volumes []resource.Volume) {
	t.Helper()
	for _, v := range volumes {
		require.NoError(t, e.Emit(v))
	}
	require.NoError(t, e.Close())
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format: csv")
}

func TestNew_Formats(t *testing.T) {
	for _, format := range append(Formats, "") {
		e, err := New(&bytes.Buffer{}, format)
		require.NoError(t, err, format)
		assert.NotNil(t, e)
	}
}

func TestTextEmitter(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatText)
	require.NoError(t, err)

	emitAll(t, e, testVolumes())

	assert.Equal(t,
		"vol-1, i-1, in-use, 8GiB, Encrypted\n"+
			"vol-22, i-1, in-use, 100GiB, Not Encrypted\n",
		buf.String())
}

func TestTextEmitter_Streams(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatText)
	require.NoError(t, err)

	require.NoError(t, e.Emit(testVolumes()[0]))
	assert.NotEmpty(t, buf.String())
}

func TestTableEmitter(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatTable)
	require.NoError(t, err)

	emitAll(t, e, testVolumes())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "VOLUME"))
	assert.Contains(t, lines[1], "8.0 GiB")
	assert.Contains(t, lines[2], "100 GiB")
	assert.Equal(t, strings.Index(lines[0], "INSTANCE"), strings.Index(lines[1], "i-1"))
}

func TestTableEmitter_Empty(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatTable)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	assert.Empty(t, buf.String())
}

func TestJSONEmitter(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatJSON)
	require.NoError(t, err)

	emitAll(t, e, testVolumes())

	var got []resource.Volume
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, testVolumes(), got)
}

func TestJSONEmitter_Empty(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLEmitter(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatYAML)
	require.NoError(t, err)

	started := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	require.NoError(t, e.Emit(resource.Snapshot{ID: "snap-1", VolumeID: "vol-1", State: "completed", StartTime: started}))
	require.NoError(t, e.Close())

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "snap-1", got[0]["id"])
	assert.Equal(t, "vol-1", got[0]["volume_id"])
	assert.Equal(t, "completed", got[0]["state"])
}

func TestInstanceTagKeyNotSerialized(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(&buf, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, e.Emit(resource.Instance{ID: "i-1", TagKey: "Team"}))
	require.NoError(t, e.Close())

	assert.NotContains(t, buf.String(), "Team")
}
