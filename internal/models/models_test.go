package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMapScanValue(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"key":"value","n":3}`)))
	assert.Equal(t, "value", m["key"])
	assert.EqualValues(t, 3, m["n"])

	value, err := m.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"value","n":3}`, string(value.([]byte)))

	var empty JSONMap
	value, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)

	assert.Error(t, m.Scan("not bytes"))
}

func TestStringArrayScanValue(t *testing.T) {
	var a StringArray
	require.NoError(t, a.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringArray{"a", "b"}, a)

	value, err := a.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(value.([]byte)))

	var empty StringArray
	value, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)
}

func TestTaskMarkFinished(t *testing.T) {
	task := Task{Status: TaskStatusRunning}
	task.MarkFinished(TaskStatusFailed, "boom")

	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, "boom", task.ErrorMessage)
	require.NotNil(t, task.FinishedAt)
	assert.WithinDuration(t, time.Now(), *task.FinishedAt, time.Second)
}

func TestGatewayIsSuccessCode(t *testing.T) {
	gw := Gateway{}
	assert.True(t, gw.IsSuccessCode(200))
	assert.False(t, gw.IsSuccessCode(201))

	gw.SuccessResponseCodes = IntArray{200, 201, 202}
	assert.True(t, gw.IsSuccessCode(201))
	assert.False(t, gw.IsSuccessCode(500))
}

func TestGatewayWhatsappDefaults(t *testing.T) {
	gw := Gateway{Type: GatewayTypeWhatsapp}

	body := gw.GetBodyTemplate()
	assert.Contains(t, body, `"messaging_product":"whatsapp"`)
	assert.Contains(t, body, "{{mobile_number}}")

	headers := gw.GetHeaderTemplate()
	assert.Contains(t, headers, "Bearer {{token}}")

	// Explicit templates win over the defaults
	gw.BodyTemplate = JSONMap{"text": "{{message}}"}
	assert.Contains(t, gw.GetBodyTemplate(), "{{message}}")
	assert.NotContains(t, gw.GetBodyTemplate(), "messaging_product")
}

func TestGatewayNonWhatsappHasNoDefaults(t *testing.T) {
	gw := Gateway{Type: GatewayTypeSMS}
	assert.Equal(t, "{}", gw.GetBodyTemplate())
	assert.Equal(t, "{}", gw.GetHeaderTemplate())
}
