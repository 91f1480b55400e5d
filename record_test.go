package sbeams_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sbeams "github.com/systemsbiology/sbeams-core"
)

func TestParseRecordStatus(t *testing.T) {
	tests := map[string]sbeams.RecordStatus{
		"":           sbeams.StatusNormal,
		"N":          sbeams.StatusNormal,
		"l":          sbeams.StatusLocked,
		"Locked":     sbeams.StatusLocked,
		"M":          sbeams.StatusModifiable,
		"modifyable": sbeams.StatusModifiable,
	}
	for in, want := range tests {
		got, err := sbeams.ParseRecordStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := sbeams.ParseRecordStatus("D")
	assert.True(t, sbeams.IsInvalidStatusErr(err))
}

func TestRecord_IsNew(t *testing.T) {
	assert.True(t, sbeams.Record{TableGroup: "MicroarrayCore"}.IsNew())
	assert.False(t, sbeams.Record{ModifiedBy: "edeutsch"}.IsNew())
	assert.False(t, sbeams.Record{CreatedBy: "edeutsch"}.IsNew())
}
