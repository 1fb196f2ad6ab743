package testcase

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeJSON(t *testing.T) {
	tc := New(Meta{Name: "report", Package: "orders", Author: "qa"})
	par := add(t, tc.Tree, Root(), Parallel{})
	add(t, tc.Tree, In(par), Fail{Message: "left"})
	add(t, tc.Tree, In(par), Log{Message: "right"})
	add(t, tc.Tree, Finally(), Fail{Message: "cleanup"})

	o := newTestExecutor(t, newEchoTransport()).Execute(context.Background(), tc)

	var buf bytes.Buffer
	require.NoError(t, o.WriteJSON(&buf))
	assert.Equal(t, buf.Bytes(), o.JSON())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "orders.report", doc["name"])
	assert.Equal(t, "qa", doc["author"])
	assert.NotContains(t, doc, "description")
	assert.Equal(t, "FAILURE", doc["status"])

	cause := doc["cause"].(map[string]interface{})
	assert.Equal(t, "ContainerAggregateFailure", cause["kind"])
	assert.Equal(t, "root/0", cause["path"])
	branches := cause["branches"].([]interface{})
	require.Len(t, branches, 1)
	assert.Equal(t, "left", branches[0].(map[string]interface{})["message"])

	secondary := doc["secondaryCauses"].([]interface{})
	require.Len(t, secondary, 1)
	assert.Equal(t, "cleanup", secondary[0].(map[string]interface{})["message"])

	results := doc["results"].([]interface{})
	require.Len(t, results, 3)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "root/0/0", first["path"])
	assert.Equal(t, "FAILED", first["status"])
	assert.Equal(t, "OK", results[1].(map[string]interface{})["status"])
}
