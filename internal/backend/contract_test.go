package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptext/internal/testutil"
)

func TestContract_Check(t *testing.T) {
	contract, err := LoadContract(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name    string
		op      string
		body    string
		wantErr bool
	}{
		{"process success", OpProcess, `{"status":"success","result":"ok"}`, false},
		{"process bad status", OpProcess, `{"status":"done","result":"ok"}`, true},
		{"process missing status", OpProcess, `{"result":"ok"}`, true},
		{"preview success", OpPreview, `{"status":"success","preview":"<table></table>","rows_count":3,"columns":["a"]}`, false},
		{"preview negative rows", OpPreview, `{"status":"success","rows_count":-1}`, true},
		{"preview columns not strings", OpPreview, `{"status":"success","columns":[1,2]}`, true},
		{"batch success", OpBatch, `{"status":"success","rows_processed":42,"download_url":"/files/out.csv"}`, false},
		{"batch rows as string", OpBatch, `{"status":"success","rows_processed":"42"}`, true},
		{"unknown op accepted", OpDownload, `anything`, false},
		{"malformed", OpBatch, `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := contract.Check(tt.op, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_StrictContract(t *testing.T) {
	contract, err := LoadContract(context.Background())
	require.NoError(t, err)

	fake := testutil.NewFakeBackend(t)
	fake.OnBatch(testutil.Reply{Body: map[string]any{"status": "success", "rows_processed": "many"}})
	c := newTestClient(t, fake, func(cfg *Config) { cfg.Contract = contract })

	_, err = c.Batch(context.Background(), BatchRequest{File: File{Name: "a.csv", Content: []byte("x")}, Column: "text"})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.Contract)
	assert.Contains(t, err.Error(), "violates contract")
}
