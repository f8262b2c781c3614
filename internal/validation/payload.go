package validation

import (
	"bytes"
	"fmt"
	"strings"

	apperrors "gaenroll/internal/errors"
	"gaenroll/pkg/contracts/domain"
)

// headerTokens are the column-name fragments each dataset's header line
// must carry. The portal occasionally serves HTML error pages with a 200
// status; a real CSV header always contains its dataset's token.
var headerTokens = map[domain.Dataset]string{
	domain.DatasetSubgroup: "ENROLL",
	domain.DatasetGrade:    "GRADE_LEVEL",
}

// VerifyPayload checks that downloaded bytes look like the expected CSV
// before they are cached: non-empty, first line is not markup, and the
// header carries the dataset's expected token. Verification failures are
// parsing errors, fatal for the requesting year.
func VerifyPayload(data []byte, dataset domain.Dataset) error {
	if len(data) == 0 {
		return apperrors.NewParsingError("payload is empty", nil).
			WithContext("dataset", dataset.String())
	}

	header := firstLine(data)
	if strings.HasPrefix(header, "<") {
		return apperrors.NewParsingError("payload looks like markup, not CSV", nil).
			WithContext("dataset", dataset.String()).
			WithContext("first_line", truncate(header, 120))
	}

	token, ok := headerTokens[dataset]
	if !ok {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("unknown dataset %q", dataset))
	}
	if !strings.Contains(header, token) {
		return apperrors.NewParsingError(
			fmt.Sprintf("payload header missing expected token %q", token), nil).
			WithContext("dataset", dataset.String()).
			WithContext("first_line", truncate(header, 120))
	}

	return nil
}

// firstLine extracts the header line, tolerating a UTF-8 BOM and CRLF
// endings.
func firstLine(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	return strings.TrimSpace(strings.TrimSuffix(string(data), "\r"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
