package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDocumentStatementShapes(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     int
	}{
		{name: "list", document: `{"Version":"2012-10-17","Statement":[{"Effect":"Allow"},{"Effect":"Deny"}]}`, want: 2},
		{name: "single object", document: `{"Statement":{"Effect":"Allow","Action":"s3:GetObject"}}`, want: 1},
		{name: "missing", document: `{"Version":"2012-10-17"}`, want: 0},
		{name: "null", document: `{"Statement":null}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc PolicyDocument
			require.NoError(t, json.Unmarshal([]byte(tt.document), &doc))
			assert.Len(t, doc.Statement, tt.want)
		})
	}
}

func TestPolicyDocumentRejectsScalarStatement(t *testing.T) {
	var doc PolicyDocument
	err := json.Unmarshal([]byte(`{"Statement":"Allow"}`), &doc)
	assert.Error(t, err)
}

func TestStatementConditions(t *testing.T) {
	var doc PolicyDocument
	require.NoError(t, json.Unmarshal([]byte(`{"Statement":[
		{"Effect":"Allow","Condition":{"StringEquals":{"aws:PrincipalOrgID":"o-abc"}}},
		{"Effect":"Allow"}
	]}`), &doc))

	block, err := doc.Statement[0].Conditions()
	require.NoError(t, err)
	assert.JSONEq(t, `"o-abc"`, string(block["StringEquals"]["aws:PrincipalOrgID"]))

	block, err = doc.Statement[1].Conditions()
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestAssessmentTypeValid(t *testing.T) {
	assert.True(t, AssessmentResourceBasedPolicy.Valid())
	assert.False(t, AssessmentType("UNKNOWN").Valid())
	assert.True(t, JobStatusSucceededWithFailedTasks.Terminal())
	assert.False(t, JobStatusActive.Terminal())
}
