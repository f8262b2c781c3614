package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gaenroll/internal/errors"
	"gaenroll/pkg/contracts/domain"
)

func TestVerifyPayload(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		dataset domain.Dataset
		wantErr bool
	}{
		{
			name:    "valid subgroup header",
			data:    []byte("SCHOOL_DSTRCT_CD,INSTN_NUMBER,ENROLL_TOTAL\n601,0,1500\n"),
			dataset: domain.DatasetSubgroup,
		},
		{
			name:    "valid grade header",
			data:    []byte("SCHOOL_DSTRCT_CD,GRADE_LEVEL,ENROLLMENT_COUNT\n601,K,40\n"),
			dataset: domain.DatasetGrade,
		},
		{
			name:    "valid header with BOM and CRLF",
			data:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("ENROLL_TOTAL\r\n100\r\n")...),
			dataset: domain.DatasetSubgroup,
		},
		{
			name:    "empty payload",
			data:    nil,
			dataset: domain.DatasetSubgroup,
			wantErr: true,
		},
		{
			name:    "html error page served with 200",
			data:    []byte("<!DOCTYPE html>\n<html><body>Service temporarily unavailable</body></html>"),
			dataset: domain.DatasetSubgroup,
			wantErr: true,
		},
		{
			name:    "html fragment",
			data:    []byte("<html><head><title>404</title></head></html>"),
			dataset: domain.DatasetGrade,
			wantErr: true,
		},
		{
			name:    "header missing token",
			data:    []byte("ALPHA,BETA\n1,2\n"),
			dataset: domain.DatasetGrade,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPayload(tt.data, tt.dataset)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
		})
	}
}

func TestVerifyPayload_UnknownDataset(t *testing.T) {
	err := VerifyPayload([]byte("ENROLL_TOTAL\n1\n"), domain.Dataset("bogus"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}
