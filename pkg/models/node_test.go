package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Validation_MissingFields(t *testing.T) {
	testCases := []struct {
		name      string
		node      *Node
		fieldName string
	}{
		{
			name:      "missing id",
			node:      &Node{Type: NodeTypeGoal},
			fieldName: "ID",
		},
		{
			name:      "missing type",
			node:      &Node{ID: "n1"},
			fieldName: "Type",
		},
	}

	validate := validator.New()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Struct(tc.node)
			require.Error(t, err)

			var validationErrors validator.ValidationErrors
			require.ErrorAs(t, err, &validationErrors)
			assert.Equal(t, tc.fieldName, validationErrors[0].Field())
		})
	}
}

func TestNode_UnmarshalJSON_TypedPayloads(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected NodeData
	}{
		{
			name:     "outreach",
			input:    `{"id":"o1","type":"outreach","data":{"subject":"Hi","body":"Hello {{.Lead.Name}}"}}`,
			expected: OutreachData{Subject: "Hi", Body: "Hello {{.Lead.Name}}"},
		},
		{
			name:     "wait with days",
			input:    `{"id":"w1","type":"wait","data":{"days":5}}`,
			expected: WaitData{Days: 5},
		},
		{
			name:     "wait without data uses default",
			input:    `{"id":"w1","type":"wait"}`,
			expected: WaitData{Days: DefaultWaitDays},
		},
		{
			name:     "goal is always terminal",
			input:    `{"id":"g1","type":"goal","data":{"terminal":false,"book_meeting":true}}`,
			expected: GoalData{Terminal: true, BookMeeting: true},
		},
		{
			name:     "trigger with null data",
			input:    `{"id":"t1","type":"trigger","data":null}`,
			expected: TriggerData{Event: TriggerLeadApproved},
		},
		{
			name:     "unknown type keeps raw payload",
			input:    `{"id":"x1","type":"sms","data":{"to":"123"}}`,
			expected: UnknownData{Type: "sms", Raw: json.RawMessage(`{"to":"123"}`)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var node Node

			err := json.Unmarshal([]byte(tc.input), &node)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, node.Data)
			assert.Equal(t, tc.expected.NodeType(), node.Type)
		})
	}
}

func TestNode_UnmarshalJSON_InvalidPayload(t *testing.T) {
	var node Node

	err := json.Unmarshal([]byte(`{"id":"w1","type":"wait","data":{"days":"five"}}`), &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "w1")
}

func TestNode_JSONRoundTripKeepsShape(t *testing.T) {
	node := NewNode("o1", NodeTypeOutreach, "", Position{X: 10, Y: 20})
	node.Data = OutreachData{Subject: "Quick question"}

	raw, err := json.Marshal(node)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "outreach", generic["type"])
	assert.Equal(t, "Send email", generic["label"])
	assert.Equal(t, "Quick question", generic["data"].(map[string]any)["subject"])

	var decoded Node
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *node, decoded)
}

func TestWaitData_Duration(t *testing.T) {
	assert.Equal(t, 5*24*time.Hour, WaitData{Days: 5}.Duration())
	assert.Equal(t, 3*24*time.Hour, WaitData{}.Duration())
	assert.Equal(t, 3*24*time.Hour, WaitData{Days: -2}.Duration())
}

func TestNodeType_Valid(t *testing.T) {
	for _, nodeType := range NodeTypes {
		assert.True(t, nodeType.Valid(), nodeType)
	}

	assert.False(t, NodeType("sms").Valid())
	assert.False(t, NodeType("").Valid())
}

func TestNode_Ports(t *testing.T) {
	trigger := NewNode("t1", NodeTypeTrigger, "", Position{})
	decision := NewNode("d1", NodeTypeDecision, "", Position{})
	goal := NewNode("g1", NodeTypeGoal, "", Position{})

	assert.Equal(t, []Port{
		{ID: "t1:source", NodeID: "t1", Handle: HandleSource, Direction: PortDirectionOutput},
	}, trigger.Ports())

	assert.Equal(t, []Port{
		{ID: "d1:target", NodeID: "d1", Handle: HandleTarget, Direction: PortDirectionInput},
		{ID: "d1:source-yes", NodeID: "d1", Handle: HandleYes, Direction: PortDirectionOutput},
		{ID: "d1:source-no", NodeID: "d1", Handle: HandleNo, Direction: PortDirectionOutput},
	}, decision.Ports())

	assert.Equal(t, []Port{
		{ID: "g1:target", NodeID: "g1", Handle: HandleTarget, Direction: PortDirectionInput},
	}, goal.Ports())
}

func TestParsePortID(t *testing.T) {
	nodeID, handle, ok := ParsePortID("node:with:colons:source-yes")
	require.True(t, ok)
	assert.Equal(t, "node:with:colons", nodeID)
	assert.Equal(t, "source-yes", handle)

	_, _, ok = ParsePortID("no-separator")
	assert.False(t, ok)
}
