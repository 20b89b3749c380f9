//go:build !docprims

package resume

import "errors"

var errOfficeUnsupported = errors.New("docx extraction requires a build with the docprims tag")

func extractOffice(string, []byte) (string, error) {
	return "", errOfficeUnsupported
}

// ExtractorVersion returns the docprims version, empty when not built in.
func ExtractorVersion() string {
	return ""
}
