package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports/mocks"
)

const approvalYAML = `
id: approval
name: Purchase approval
variables:
  - name: amount
    required: true
  - name: limits
    default:
      manager: 1000
activities:
  - id: start
    type: start
    is_start: true
  - id: review
    type: human_task
    name: Manager review
    properties:
      assignmentStrategies: [role, group]
      role: manager
  - id: split
    type: fork
    properties:
      branches:
        - id: legal
          name: Legal
        - id: finance
          name: Finance
  - id: done
    type: end
transitions:
  - from: start
    to: review
  - id: rejected
    from: review
    to: done
    type: conditional
    condition: "decision == 'reject'"
  - from: review
    to: split
`

const approvalJSON = `{
  "id": "approval",
  "activities": [
    {"id": "start", "type": "start", "is_start": true},
    {"id": "done", "type": "end"}
  ],
  "transitions": [{"from": "start", "to": "done"}]
}`

func TestParseYAML(t *testing.T) {
	schema, err := Parse([]byte(approvalYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "approval", schema.ID)
	require.Len(t, schema.Activities, 4)
	assert.True(t, schema.Activities[0].IsStart)
	assert.Equal(t, "start", schema.Activities[0].Name)
	assert.Equal(t, domain.ActivityTypeHumanTask, schema.Activities[1].Type)
	assert.Equal(t, []interface{}{"role", "group"}, schema.Activities[1].Properties["assignmentStrategies"])

	branches, ok := schema.Activities[2].Properties["branches"].([]interface{})
	require.True(t, ok)
	first, ok := branches[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "legal", first["id"])

	require.Len(t, schema.Transitions, 3)
	assert.Equal(t, "start->review", schema.Transitions[0].ID)
	assert.Equal(t, domain.TransitionTypeNormal, schema.Transitions[0].Type)
	assert.True(t, schema.Transitions[1].IsConditional())

	assert.True(t, schema.Variables[0].Required)
	assert.Equal(t, map[string]interface{}{"manager": 1000}, schema.Variables[1].Default)
}

func TestParseJSON(t *testing.T) {
	schema, err := Parse([]byte(approvalJSON), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "approval", schema.ID)
	assert.Len(t, schema.Activities, 2)

	fromYAML, err := Parse([]byte(approvalJSON), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, schema.Activities, fromYAML.Activities)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":  "   ",
		"no id":  "name: nameless\n",
		"broken": "id: [unclosed",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), FormatYAML)
			assert.True(t, domain.IsValidationError(err))
		})
	}

	_, err := Parse([]byte(approvalJSON), Format("toml"))
	assert.True(t, domain.IsValidationError(err))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(approvalYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"),
		[]byte(`{"id":"other","activities":[{"id":"s","type":"start"}]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	schemas, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "other", schemas[0].ID)
	assert.Equal(t, "approval", schemas[1].ID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yml"), []byte(approvalYAML), 0o600))
	_, err = LoadDir(dir)
	assert.True(t, domain.IsValidationError(err))

	schemas, err = LoadDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, schemas)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, domain.IsValidationError(err))

	_, err = LoadFile(t.TempDir())
	assert.True(t, domain.IsValidationError(err))
}

func TestInstall(t *testing.T) {
	schema, err := Parse([]byte(approvalJSON), FormatJSON)
	require.NoError(t, err)

	store := mocks.NewMockSchemaStore(t)
	store.On("SaveSchema", context.Background(), schema).Return(nil).Once()

	require.NoError(t, Install(context.Background(), store, schema))
}
